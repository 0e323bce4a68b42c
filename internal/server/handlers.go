package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/formulary-dev/formulary/internal/engine"
	"github.com/formulary-dev/formulary/internal/option"
)

// maxBodyBytes bounds request bodies and live messages
const maxBodyBytes = 1 << 20

// ProductSummary is one entry of the product listing
type ProductSummary struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Options  int     `json:"options"`
	Formulas int     `json:"formulas"`
	// InvalidFormulas counts formulas that do not compile and always contribute 0
	InvalidFormulas int `json:"invalid_formulas"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{"error": fmt.Sprintf(format, args...)})
}

// lookup resolves the {id} route variable to a registered engine
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id %q", mux.Vars(r)["id"])
		return nil, false
	}
	e, exists := s.registry.Get(id)
	if !exists {
		writeError(w, http.StatusNotFound, "Product '%d' not found", id)
		return nil, false
	}
	return e, true
}

func summarize(e *engine.Engine) ProductSummary {
	sum := ProductSummary{
		ID:       e.Product.ID,
		Name:     e.Product.Name,
		Price:    e.Product.Price,
		Options:  len(e.Options()),
		Formulas: len(e.Compiled),
	}
	for _, c := range e.Compiled {
		if !c.Valid() {
			sum.InvalidFormulas++
		}
	}
	return sum
}

// listProducts returns all loaded products
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products := make([]ProductSummary, 0, s.registry.Count())
	for _, id := range s.registry.List() {
		e, _ := s.registry.Get(id)
		products = append(products, summarize(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// getProduct returns the product definition with the compile result of every formula
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	compiled := make([]*engine.Compiled, 0, len(e.Compiled))
	for _, o := range e.Options() {
		if c, ok := e.Compiled[o.ID]; ok {
			compiled = append(compiled, c)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product":  e.Product,
		"formulas": compiled,
	})
}

// calculate prices one snapshot of selections
func (s *Server) calculate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var state option.State
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: %v", err)
		return
	}

	calc := e.Calculate(&state)
	s.manager.Calculated(strconv.Itoa(e.Product.ID), "calculate")
	writeJSON(w, http.StatusOK, calc)
}

// recompute re-evaluates the formulas of a cart item from the bindings captured at
// add-to-cart time. The formula text never comes from the request.
func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req engine.RecomputeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: %v", err)
		return
	}
	if req.ProductID == 0 {
		req.ProductID = e.Product.ID
	}
	if req.ProductID != e.Product.ID {
		writeError(w, http.StatusBadRequest, "product_id %d does not match the product in the path", req.ProductID)
		return
	}

	ctx := r.Context()
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := e.Recompute(ctx, req, s.config.Tax)
	productID := strconv.Itoa(e.Product.ID)
	s.manager.ObserveRecompute(productID, time.Since(start))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "recompute aborted: %v", err)
		return
	}
	s.manager.Calculated(productID, "recompute")

	writeJSON(w, http.StatusOK, results)
}

// live keeps a WebSocket open on which every message is a selection state and every reply the
// calculation for it
func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if !s.manager.OpenSession() {
		writeError(w, http.StatusServiceUnavailable, "Server at capacity, try again later")
		return
	}
	defer s.manager.CloseSession()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	productID := strconv.Itoa(e.Product.ID)
	for {
		var state option.State
		if err := conn.ReadJSON(&state); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				if werr := conn.WriteJSON(map[string]any{"error": fmt.Sprintf("Invalid JSON: %v", err)}); werr != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("product_id", productID).Msg("Live session ended")
			}
			return
		}

		calc := e.Calculate(&state)
		s.manager.Calculated(productID, "live")
		if err := conn.WriteJSON(calc); err != nil {
			log.Debug().Err(err).Str("product_id", productID).Msg("Live session write failed")
			return
		}
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"products_loaded": s.registry.Count(),
		"active_sessions": s.manager.ActiveSessions(),
		"timestamp":       time.Now(),
	})
}
