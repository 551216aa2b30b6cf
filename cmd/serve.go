package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orakle-ai/orakle/config"
	"github.com/orakle-ai/orakle/internal/capability"
	"github.com/orakle-ai/orakle/internal/mcp"
	"github.com/orakle-ai/orakle/internal/search"
	srv "github.com/orakle-ai/orakle/internal/server"
	"github.com/orakle-ai/orakle/internal/skills"
	"github.com/orakle-ai/orakle/internal/telemetry"
	"github.com/orakle-ai/orakle/provider"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the capability middleware server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(log.Writer(), "[ORAKLE] ", log.LstdFlags)

			var metrics *telemetry.Telemetry
			if cfg.Telemetry.Enabled {
				metrics = telemetry.New()
			}

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				if !errors.Is(err, provider.ErrNotConfigured) {
					return err
				}
				logger.Printf("no LLM configured, llm fusion will fall back to weighted")
				llm = nil
			}

			registry := search.NewRegistry(cfg.Search)
			orchestrator := search.NewOrchestrator(registry, cfg.Search.Meta, llm, metrics)
			cache := search.NewCache(cfg.Storage.Redis, cfg.Search.CacheTTL)

			manager := mcp.NewConnectionManager(cfg.MCP, metrics)

			caps := capability.NewRegistry(metrics)
			caps.RegisterSkill(skills.NewWebSearchSkill(orchestrator, cache))
			caps.RegisterSkill(skills.NewWebFetchSkill())
			caps.AttachManager(manager)

			initCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := caps.Refresh(initCtx); err != nil {
				logger.Printf("initial capability refresh failed: %v", err)
			}
			cancel()

			sched := srv.NewScheduler(caps, cfg.Server.RefreshCron)
			sched.Start()

			server := srv.New(cfg.Server, caps, metrics)
			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				logger.Printf("received %s, shutting down", sig)
			case err := <-errCh:
				if err != nil {
					logger.Printf("server stopped: %v", err)
				}
			}

			close(sched.Stop)
			manager.Shutdown()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			return server.Shutdown(shutdownCtx)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
