package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haloctl/halo/pkg/memory"
	"github.com/spf13/cobra"
)

func newRememberCommand() *cobra.Command {
	var (
		key      string
		category string
		session  string
	)

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Store a memory entry in the primary backend",
		Args:  cobra.MinimumNArgs(1),
		Example: strings.Join([]string{
			`  halo remember "the deploy window is Tuesdays 2-4pm"`,
			`  halo remember --key deploy-window --category core "Tuesdays 2-4pm"`,
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if strings.TrimSpace(key) == "" {
				key = defaultKey(content)
			}

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

			entry, err := rt.Store(ctx, key, content, memory.ParseCategory(category), session)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			fmt.Printf("remembered %s (%s)\n", entry.Key, entry.Category)
			return nil
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Explicit key (default: derived from content)")
	cmd.Flags().StringVarP(&category, "category", "c", "core", "Category: core, daily, conversation, archive, or a custom name")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id to scope this entry to")
	return cmd
}

func newRecallCommand() *cobra.Command {
	var (
		session string
		limit   int
	)

	cmd := &cobra.Command{
		Use:     "recall <query>",
		Short:   "Search memory for entries relevant to a query",
		Args:    cobra.MinimumNArgs(1),
		Example: `  halo recall "deploy window" --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

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

			candidates, err := rt.Search(ctx, query, session)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if limit > 0 && len(candidates) > limit {
				candidates = candidates[:limit]
			}
			printCandidates(candidates)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Restrict search to a session (default: all sessions)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Cap the number of results printed (0 = runtime default)")
	return cmd
}

func newForgetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "forget <key>",
		Short:   "Remove an entry by key",
		Args:    cobra.ExactArgs(1),
		Example: "  halo forget deploy-window",
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

			removed, err := rt.Forget(ctx, args[0])
			if err != nil {
				return fmt.Errorf("forget: %w", err)
			}
			if removed {
				fmt.Printf("forgot %s\n", args[0])
			} else {
				fmt.Printf("%s not found\n", args[0])
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	var (
		category string
		session  string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List entries, optionally filtered by category and/or session",
		Example: "  halo list --category conversation --session cli:default",
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

			hasCategory := strings.TrimSpace(category) != ""
			entries, err := rt.Backend().List(ctx, memory.ParseCategory(category), hasCategory, session)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			for _, e := range entries {
				fmt.Printf("%-24s [%s] %s\n", e.Key, e.Category, truncateLine(e.Content, 80))
			}
			fmt.Fprintf(os.Stderr, "%d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Filter by session id")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Short:   "Show entry count and primary backend liveness",
		Example: "  halo stats",
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

			count, err := rt.Backend().Count(ctx)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			healthy := rt.Backend().HealthCheck(ctx)
			caps := rt.Backend().Capabilities()

			fmt.Printf("backend:      %s\n", rt.Backend().Name())
			fmt.Printf("entries:      %d\n", count)
			fmt.Printf("healthy:      %t\n", healthy)
			fmt.Printf("session store: %t\n", caps.SupportsSessionStore)
			fmt.Printf("keyword rank: %t\n", caps.SupportsKeywordRank)
			fmt.Printf("transactions: %t\n", caps.SupportsTransactions)
			fmt.Printf("outbox:       %t\n", caps.SupportsOutbox)
			return nil
		},
	}
}

func printCandidates(candidates []memory.RetrievalCandidate) {
	if len(candidates) == 0 {
		fmt.Println("no results")
		return
	}
	for i, c := range candidates {
		fmt.Printf("%d. %-24s [%s] score=%.3f rank=%d source=%s\n", i+1, c.Key, c.Category, c.FinalScore, c.KeywordRank, c.Source)
		fmt.Printf("   %s\n", truncateLine(c.Snippet, 120))
	}
}

func truncateLine(s string, n int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

func defaultKey(content string) string {
	words := strings.Fields(content)
	if len(words) > 6 {
		words = words[:6]
	}
	slug := strings.ToLower(strings.Join(words, "-"))
	slug = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, slug)
	if slug == "" {
		slug = "entry"
	}
	return slug
}
