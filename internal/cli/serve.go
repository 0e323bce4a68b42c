package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/formulary-dev/formulary/internal/server"
	"github.com/formulary-dev/formulary/internal/style"
)

var (
	// Serve command flags
	servePort        int
	serveHost        string
	serveMaxSessions int
	serveTimeout     time.Duration
	serveProducts    []string
	serveProductDir  string
	serveMetrics     bool
	serveCORS        bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [product files...]",
	Short: "Start HTTP server for price calculation",
	Long: `Start an HTTP server that prices product configurations via REST API.

The server provides:
- Server-side recomputation of price formulas for cart submission
- Full price calculation for a set of customer selections
- WebSocket sessions that reprice on every selection change
- Prometheus metrics endpoint

Tax handling for product_price bindings is read from the tax.* configuration keys
(FORMULARY_TAX_RATE, FORMULARY_TAX_PRICES_INCLUDE_TAX, FORMULARY_TAX_DISPLAY_INCLUDING_TAX).

Examples:
  formulary serve banner.product.yaml                      # Serve single product
  formulary serve banner.product.yaml mug.product.json     # Serve multiple products
  formulary serve --product-dir ./products                 # Serve all products in directory
  formulary serve --port 8080 --host 0.0.0.0               # Custom host and port
  formulary serve --max-sessions 500 --product-dir ./products`,
	Run: func(cmd *cobra.Command, args []string) {
		runCtx := newRunContext(cmd)

		files := append(args, serveProducts...)
		if len(files) == 0 && serveProductDir == "" {
			style.Error(runCtx.StdErr, "No product documents specified. Use arguments or --product-dir")
			os.Exit(1)
		}

		if err := startServer(runCtx, files); err != nil {
			style.Error(runCtx.StdErr, err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "server port")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVar(&serveMaxSessions, "max-sessions", 100, "maximum concurrent live pricing sessions")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 10*time.Second, "recompute request timeout")

	// Product specification
	serveCmd.Flags().StringSliceVar(&serveProducts, "product", []string{}, "product documents to serve")
	serveCmd.Flags().StringVar(&serveProductDir, "product-dir", "", "directory containing product documents")

	// Features
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "enable Prometheus metrics endpoint")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "enable CORS headers")
}

// serverConfig builds the server configuration from flags and the tax settings
func serverConfig(files []string) *server.Config {
	config := server.DefaultConfig()
	config.Host = serveHost
	config.Port = servePort
	config.MaxSessions = serveMaxSessions
	config.Timeout = serveTimeout
	config.EnableMetrics = serveMetrics
	config.EnableCORS = serveCORS
	config.ProductFiles = files
	config.ProductDir = serveProductDir
	config.Tax = taxSettings()
	return config
}

func startServer(runCtx RunContext, files []string) error {
	srv, err := server.New(serverConfig(files))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.LoadProducts(); err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	if !viper.GetBool("quiet") {
		style.Success(runCtx, fmt.Sprintf("Formulary server starting at http://%s", srv.GetAddr()))
		fmt.Fprintf(runCtx, "Loaded products: %d\n", srv.GetProductCount())
		fmt.Fprintf(runCtx, "API: http://%s/api/v1/products\n", srv.GetAddr())
		if serveMetrics {
			fmt.Fprintf(runCtx, "Metrics: http://%s/metrics\n", srv.GetAddr())
		}
	}

	if err := srv.StartWithGracefulShutdown(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
