// Package main provides the CLI wrapper for the violation analysis
// pipeline, restating the teacher's flag-driven cmd/miface/main.go as
// cobra subcommands (HM4704-proxima's dependency of choice for
// multi-command CLIs in the retrieval pack).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/annotate"
	"github.com/scoopguard/violation-pipeline/internal/clients"
	"github.com/scoopguard/violation-pipeline/internal/config"
	"github.com/scoopguard/violation-pipeline/internal/pipeline"
	"github.com/scoopguard/violation-pipeline/internal/server"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "scoopguard",
		Short: "Hygiene-violation analysis pipeline for food-prep video",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML configuration file")
	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newValidateConfigCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scoopguard version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "scoopguard version %s\n", version)
			return nil
		},
	}
}

func newValidateConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a configuration file without starting the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: rich_mode=%v detector=%s roi_store=%s\n",
				cfg.Policy.RichModeEnabled, cfg.Clients.DetectorURL, cfg.Clients.ROIStoreURL)
			return nil
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		listen            string
		detectorURL       string
		roiStoreURL       string
		violationStoreURL string
		brokerURL         string
		richMode          bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the violation analysis pipeline's HTTP ingest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if detectorURL != "" {
				cfg.Clients.DetectorURL = detectorURL
			}
			if roiStoreURL != "" {
				cfg.Clients.ROIStoreURL = roiStoreURL
			}
			if violationStoreURL != "" {
				cfg.Clients.ViolationStoreURL = violationStoreURL
			}
			if brokerURL != "" {
				cfg.Clients.BrokerURL = brokerURL
			}
			if cmd.Flags().Changed("rich-mode") {
				cfg.Policy.RichModeEnabled = richMode
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			log := logger.Sugar()

			httpClient := &http.Client{}
			detector := clients.NewDetectorClient(cfg.Clients.DetectorURL, httpClient, log)
			roiStore := clients.NewROIStoreClient(cfg.Clients.ROIStoreURL, httpClient, log)
			violationStore := clients.NewViolationStoreClient(cfg.Clients.ViolationStoreURL, httpClient, log)
			broker := clients.NewBrokerPublisher(cfg.Clients.BrokerURL, httpClient, log)
			persister := annotate.NewPersister(annotate.NewFileStorage(cfg.Storage.FrameDir))

			pl := pipeline.New(cfg, log, detector, roiStore, violationStore, broker, persister)
			defer pl.Close() //nolint:errcheck

			srv := server.New(pl, log)
			httpServer := &http.Server{Addr: listen, Handler: srv}

			drainCtx, cancelDrain := context.WithCancel(context.Background())
			defer cancelDrain()
			go runRetryDrainLoop(drainCtx, violationStore, log)

			errCh := make(chan error, 1)
			go func() {
				log.Infow("starting ingest server", "addr", listen)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				log.Infow("received shutdown signal", "signal", sig.String())
			case err := <-errCh:
				log.Errorw("ingest server failed", "error", err)
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "address to listen on for frame ingest, metrics, and health checks")
	cmd.Flags().StringVar(&detectorURL, "detector-url", "", "override the object detector base URL")
	cmd.Flags().StringVar(&roiStoreURL, "roi-store-url", "", "override the ROI store base URL")
	cmd.Flags().StringVar(&violationStoreURL, "violation-store-url", "", "override the violation store base URL")
	cmd.Flags().StringVar(&brokerURL, "broker-url", "", "override the message broker base URL")
	cmd.Flags().BoolVar(&richMode, "rich-mode", false, "use the rich-evidence scooper-usage classifier instead of the tiered-distance default")

	return cmd
}

// runRetryDrainLoop periodically flushes the violation store's
// background retry buffer, spec.md §7's bounded-retry taxonomy entry.
func runRetryDrainLoop(ctx context.Context, violationStore *clients.ViolationStoreClient, log *zap.SugaredLogger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := violationStore.DrainRetryBuffer(ctx, time.Now()); err != nil {
				log.Errorw("violation store retry buffer exhausted", "error", err)
			}
		}
	}
}
