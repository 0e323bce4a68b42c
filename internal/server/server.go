package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/formulary-dev/formulary/internal/engine"
	"github.com/formulary-dev/formulary/internal/pricing"
	"github.com/formulary-dev/formulary/internal/store"
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int
	// MaxSessions bounds concurrent live pricing sessions
	MaxSessions     int
	Timeout         time.Duration
	EnableMetrics   bool
	EnableCORS      bool
	ProductFiles    []string
	ProductDir      string
	Tax             pricing.TaxSettings
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		MaxSessions:     100,
		Timeout:         10 * time.Second,
		EnableMetrics:   true,
		EnableCORS:      true,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ProductRegistry holds the prepared engine of every loaded product
type ProductRegistry struct {
	engines map[int]*engine.Engine
	mu      sync.RWMutex
}

// NewProductRegistry creates an empty product registry
func NewProductRegistry() *ProductRegistry {
	return &ProductRegistry{
		engines: make(map[int]*engine.Engine),
	}
}

// Register adds or replaces the engine of a product
func (r *ProductRegistry) Register(e *engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Product.ID] = e
}

// Get retrieves the engine of a product
func (r *ProductRegistry) Get(id int) (*engine.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.engines[id]
	return e, exists
}

// List returns all product ids in ascending order
func (r *ProductRegistry) List() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Count returns the number of registered products
func (r *ProductRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Server serves authoritative price recomputation for carts and live pricing for storefronts
type Server struct {
	config   *Config
	registry *ProductRegistry
	manager  *SessionManager
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
}

// New creates a new server
func New(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Tax.Rate < 0 {
		return nil, fmt.Errorf("tax rate must not be negative, got %v", config.Tax.Rate)
	}

	server := &Server{
		config:   config,
		registry: NewProductRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return config.EnableCORS
			},
		},
	}

	return server, nil
}

// initializeManager initializes the session manager if not already set
func (s *Server) initializeManager() {
	if s.manager == nil {
		s.manager = NewSessionManager(s.config.MaxSessions)
	}
}

// AddProduct prepares a product and registers it
func (s *Server) AddProduct(doc *store.Document) *engine.Engine {
	s.initializeManager()

	e := engine.Prepare(doc.Product)
	e.OnFailure = s.manager.FormulaFailed
	s.registry.Register(e)

	invalid := 0
	for _, c := range e.Compiled {
		if !c.Valid() {
			invalid++
			log.Warn().
				Int("product_id", doc.Product.ID).
				Int("option_id", c.OptionID).
				Str("error", c.ValidationError).
				Msg("Formula does not compile and will contribute 0")
		}
	}

	log.Info().
		Int("product_id", doc.Product.ID).
		Str("file", doc.SourceFile).
		Str("version", doc.Version).
		Int("formulas", len(e.Compiled)).
		Int("invalid_formulas", invalid).
		Msg("Product loaded")
	return e
}

// LoadProducts loads and validates product documents from the configuration
func (s *Server) LoadProducts() error {
	var docs []*store.Document
	for _, file := range s.config.ProductFiles {
		doc, err := store.LoadFile(file)
		if err != nil {
			return fmt.Errorf("failed to load product %s: %w", file, err)
		}
		docs = append(docs, doc)
	}

	if s.config.ProductDir != "" {
		dirDocs, failed, err := store.LoadDir(s.config.ProductDir)
		if err != nil {
			return fmt.Errorf("failed to scan product directory: %w", err)
		}
		for file, err := range failed {
			log.Error().Err(err).Str("file", file).Msg("Product document rejected")
		}
		docs = append(docs, dirDocs...)
	}

	if len(docs) == 0 {
		return fmt.Errorf("no product documents specified")
	}

	log.Info().Msg("Loading products...")
	for _, doc := range docs {
		s.AddProduct(doc)
	}
	return nil
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	s.initializeManager()

	router := mux.NewRouter()

	if s.config.EnableCORS {
		router.Use(s.corsMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	api.HandleFunc("/products", s.listProducts).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", s.getProduct).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}/calculate", s.calculate).Methods("POST")
	api.HandleFunc("/products/{id:[0-9]+}/recompute", s.recompute).Methods("POST")
	api.HandleFunc("/products/{id:[0-9]+}/live", s.live).Methods("GET")

	if s.config.EnableCORS {
		api.Methods("OPTIONS").HandlerFunc(s.handleOptions)
	}

	if s.config.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.HandleFunc("/health", s.healthCheck)
	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Addr:         listener.Addr().String(),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", s.server.Addr).
		Int("products", s.registry.Count()).
		Int("max_sessions", s.config.MaxSessions).
		Bool("metrics", s.config.EnableMetrics).
		Bool("tax_adjustment", s.config.Tax.NeedsAdjustment()).
		Msg("Starting formulary server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Info().Msg("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or SIGTERM
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer shutdownCancel()

		if err := s.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}

		cancel()
	}()

	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
	return nil
}

// GetAddr returns the address the server listens on
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// GetProductCount returns the number of loaded products
func (s *Server) GetProductCount() int {
	return s.registry.Count()
}

// handleOptions handles CORS preflight requests
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
