package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the face-auth web server.

Endpoints:
  POST /api/auth/register-face  {userId, faceDescriptor}
  POST /api/auth/face-login     {faceDescriptor}
  GET  /api/health

The identity store is chosen by DATABASE_DRIVER (memory by default, whose
contents are lost on restart).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5000, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
}

// saveHNSWIndex saves the HNSW index to disk during shutdown.
func saveHNSWIndex(index *database.HNSWIndex) {
	if index == nil || index.Path() == "" {
		return
	}
	if err := index.Save(); err != nil {
		fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
	} else {
		fmt.Println("HNSW index saved to disk")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}

	obs := newObserver(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Opening %s identity store...\n", cfg.Database.Driver)
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	index, hnswIndex, err := selectIndex(ctx, cfg, store)
	if err != nil {
		return err
	}

	if cfg.Auth.RegisterToken == "" {
		obs.Log().Warn().Msg("REGISTER_TOKEN is not set: anyone can register faces")
	}

	service := newService(cfg, store, index, obs)
	server := web.NewServer(cfg, service, obs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting face-auth on http://%s (strategy %s, threshold %g)\n",
		cfg.Web.Addr(), cfg.Auth.Strategy, cfg.Auth.Threshold)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	// Start returns as soon as Shutdown begins; wait for in-flight requests.
	<-shutdownDone
	saveHNSWIndex(hnswIndex)
	return nil
}
