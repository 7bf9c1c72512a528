package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwinters/loreboard/internal/api"
	"github.com/mwinters/loreboard/internal/config"
	"github.com/mwinters/loreboard/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the campaign HTTP API",
	Long: `Serve the campaign API over HTTP for a local frontend.

With a file argument the campaign is opened immediately; otherwise the
frontend opens one through POST /api/campaign/open. Only one campaign is
open at a time.

Configuration comes from flags, LOREBOARD_* environment variables, and
an optional loreboard.yaml file, in that order of precedence.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadServe(cmd.Flags())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}

		logger := log.New(cfg.LogWriter(), "", log.LstdFlags)

		manager := session.NewManager(&session.Config{
			WatchFiles: true,
			Logger:     logger,
		})
		defer manager.Close()

		if len(args) == 1 {
			if _, err := manager.Open(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error opening campaign: %v\n", err)
				os.Exit(1)
			}
		}

		srv := api.NewServer(manager, logger)
		srv.Start()
		defer srv.Stop()

		httpServer := &http.Server{
			Addr:         cfg.Listen,
			Handler:      srv.Handler(cfg.CORSOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Printf("serving campaign API on %s", cfg.Listen)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			os.Exit(1)
		case <-ctx.Done():
		}

		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:7321", "address to bind the API server to")
	serveCmd.Flags().String("log-file", "", "log to a rotating file instead of stderr")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed browser origins (default: any)")
	rootCmd.AddCommand(serveCmd)
}
