package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/haloctl/halo/pkg/bus"
	"github.com/haloctl/halo/pkg/channels"
	"github.com/haloctl/halo/pkg/cron"
	"github.com/haloctl/halo/pkg/health"
	"github.com/haloctl/halo/pkg/logger"
	"github.com/haloctl/halo/pkg/memory"
	"github.com/spf13/cobra"
)

func newGatewayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gateway",
		Short:   "Run chat channel ingress, the hygiene scheduler, and the readiness server",
		Long:    "Start channel adapters that forward chat turns into the memory runtime, a cron-driven hygiene sweep, and an HTTP readiness endpoint.",
		Example: "  halo gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway()
		},
	}
}

func runGateway() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := health.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntimeWithRegistry(ctx, cfg, registry)
	if err != nil {
		return fmt.Errorf("build memory runtime: %w", err)
	}
	defer rt.Deinit()

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	enabled := channelManager.GetEnabledChannels()
	if len(enabled) == 0 {
		fmt.Println("no chat channels configured; ingress will only see internally published turns")
	} else {
		fmt.Printf("channels enabled: %v\n", enabled)
	}

	ingest := channels.NewMemoryIngest(msgBus, rt)
	go ingest.Run(ctx)

	cronStorePath := filepath.Join(cfg.WorkspacePath(), "cron", "jobs.json")
	cronService := cron.NewCronService(cronStorePath, func(jobID string, err error) {
		logger.ErrorCF("cron", "job failed", logger.Fields{"job": jobID, "error": err.Error()})
	})
	_ = cronService.AddJob(cron.CronJob{
		ID:       "hygiene",
		Name:     "memory hygiene sweep",
		Schedule: cron.CronSchedule{Expr: "0 * * * *"},
		Fn: func(ctx context.Context) error {
			hygienic, ok := rt.Backend().(memory.Hygienic)
			if !ok {
				return nil
			}
			interval := time.Duration(cfg.Memory.PurgeAfterDays) * 24 * time.Hour
			if !memory.HygieneDue(cfg.WorkspacePath(), interval) {
				return nil
			}
			_, err := memory.RunHygiene(ctx, hygienic, memory.HygieneConfig{
				ArchiveAfterDays:      cfg.Memory.ArchiveAfterDays,
				PurgeAfterDays:        cfg.Memory.PurgeAfterDays,
				ConversationRetention: cfg.Memory.ConversationRetentionDays,
			})
			if err != nil {
				return err
			}
			return memory.MarkHygieneRun(cfg.WorkspacePath())
		},
	})
	go func() {
		ticker := time.NewTicker(cronTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cronService.RunDue(ctx)
			}
		}
	}()

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	healthServer := health.NewServer(registry, cfg.Gateway.Host, cfg.Gateway.Port)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("health", "health server error", logger.Fields{"error": err.Error()})
		}
	}()
	fmt.Printf("readiness endpoint at http://%s:%d/readyz\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nshutting down...")
	cancel()
	return channelManager.StopAll(context.Background())
}

const cronTickInterval = 60 * time.Second
