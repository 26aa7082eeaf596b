package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/haloctl/halo/pkg/memory"
	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or hydrate a whole-state snapshot",
	}
	root.AddCommand(newSnapshotExportCommand())
	root.AddCommand(newSnapshotHydrateCommand())
	return root
}

func newSnapshotExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "export",
		Short:   "Serialize the current entry set to the workspace snapshot file",
		Example: "  halo snapshot export",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Memory.SnapshotEnabled = true

			ctx := context.Background()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return fmt.Errorf("build memory runtime: %w", err)
			}
			defer rt.Deinit()

			if err := rt.Snapshot(ctx); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			fmt.Println("snapshot exported")
			return nil
		},
	}
}

func newSnapshotHydrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "hydrate",
		Short:   "Restore entries from the workspace snapshot if the store is empty",
		Long:    "Hydration runs automatically at runtime init when auto_hydrate is enabled and the store is empty; this forces that check on demand.",
		Example: "  halo snapshot hydrate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Memory.AutoHydrate = true

			ctx := context.Background()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return fmt.Errorf("build memory runtime: %w", err)
			}
			defer rt.Deinit()

			count, err := rt.Backend().Count(ctx)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			fmt.Printf("store now has %d entries\n", count)
			return nil
		},
	}
}

func newHygieneCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hygiene",
		Short: "Run archive/purge/trim maintenance",
	}
	root.AddCommand(newHygieneRunCommand())
	return root
}

func newHygieneRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		Short:   "Force a hygiene sweep now, ignoring the due-check marker",
		Example: "  halo hygiene run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// The runtime's own init-time sweep is marker-gated; disable
			// it here so this command's forced run is the only one.
			cfg.Memory.HygieneEnabled = false

			ctx := context.Background()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return fmt.Errorf("build memory runtime: %w", err)
			}
			defer rt.Deinit()

			hygienic, ok := rt.Backend().(memory.Hygienic)
			if !ok {
				return fmt.Errorf("backend %s does not support hygiene", rt.Backend().Name())
			}

			report, err := memory.RunHygiene(ctx, hygienic, memory.HygieneConfig{
				ArchiveAfterDays:      cfg.Memory.ArchiveAfterDays,
				PurgeAfterDays:        cfg.Memory.PurgeAfterDays,
				ConversationRetention: cfg.Memory.ConversationRetentionDays,
			})
			if err != nil {
				return fmt.Errorf("hygiene: %w", err)
			}
			if err := memory.MarkHygieneRun(cfg.WorkspacePath()); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to record hygiene marker: %v\n", err)
			}
			fmt.Printf("archived=%d purged=%d conversations_trimmed=%d\n", report.Archived, report.Purged, report.ConversationsTrimmed)
			return nil
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Short:   "Print the readiness rollup for the memory runtime's components",
		Example: "  halo health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := context.Background()
			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return fmt.Errorf("build memory runtime: %w", err)
			}
			defer rt.Deinit()

			readiness := rt.Health().Ready()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(readiness); err != nil {
				return fmt.Errorf("encode readiness: %w", err)
			}
			if readiness.Status != "ready" {
				os.Exit(1)
			}
			return nil
		},
	}
}
