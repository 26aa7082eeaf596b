package cli

import "testing"

func TestBuildRootCommandRegistersExpectedSubcommands(t *testing.T) {
	root := buildRootCommand()

	want := []string{"remember", "recall", "forget", "list", "stats", "snapshot", "hygiene", "health", "gateway", "repl", "version"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q to be registered, got err=%v", name, err)
		}
	}
}

func TestSnapshotCommandHasExportAndHydrate(t *testing.T) {
	root := buildRootCommand()

	for _, args := range [][]string{{"snapshot", "export"}, {"snapshot", "hydrate"}} {
		if cmd, _, err := root.Find(args); err != nil || cmd.Name() != args[1] {
			t.Fatalf("expected %v to resolve, got err=%v", args, err)
		}
	}
}

func TestHygieneCommandHasRun(t *testing.T) {
	root := buildRootCommand()
	if cmd, _, err := root.Find([]string{"hygiene", "run"}); err != nil || cmd.Name() != "run" {
		t.Fatalf("expected hygiene run to resolve, got err=%v", err)
	}
}

func TestDefaultKeyDerivesSlugFromContent(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"the deploy window is Tuesdays 2-4pm", "the-deploy-window-is-tuesdays-2-4pm"},
		{"   ", "entry"},
		{"Hello, World!", "hello-world"},
	}

	for _, tc := range tests {
		if got := defaultKey(tc.content); got != tc.want {
			t.Errorf("defaultKey(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestTruncateLineShortStringUnchanged(t *testing.T) {
	if got := truncateLine("short", 80); got != "short" {
		t.Fatalf("expected unchanged short string, got %q", got)
	}
}

func TestTruncateLineLongStringAddsEllipsis(t *testing.T) {
	s := "this is a rather long line of text that will certainly exceed the limit we chose"
	got := truncateLine(s, 10)
	if len(got) <= 10 {
		t.Fatalf("expected truncated string to be longer than limit due to ellipsis, got %q", got)
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateLineCollapsesNewlines(t *testing.T) {
	got := truncateLine("line one\nline two", 80)
	if got != "line one line two" {
		t.Fatalf("expected newlines collapsed to spaces, got %q", got)
	}
}
