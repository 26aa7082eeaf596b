package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/haloctl/halo/pkg/memory"
	"github.com/spf13/cobra"
)

func newReplCommand() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:     "repl",
		Short:   "Interactive session: lines beginning \"remember:\" store, anything else recalls",
		Example: "  halo repl --session cli:default",
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

			return runRepl(ctx, rt, session)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "cli:default", "Session id for continuity")
	return cmd
}

func runRepl(ctx context.Context, rt *memory.MemoryRuntime, session string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".halo_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("halo interactive session (Ctrl+C or \"exit\" to quit)")

	ordinal := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\ngoodbye")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("goodbye")
			return nil
		}

		if rest, ok := cutFold(input, "remember:"); ok {
			ordinal++
			key := fmt.Sprintf("%s:repl:%d", session, ordinal)
			if _, err := rt.Store(ctx, key, strings.TrimSpace(rest), memory.CategoryConversation, session); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("remembered")
			continue
		}

		candidates, err := rt.Search(ctx, input, session)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if len(candidates) == 0 {
			fmt.Println("no relevant memories found")
			continue
		}
		for i, c := range candidates {
			fmt.Printf("%d. %s\n", i+1, c.Snippet)
		}
	}
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
