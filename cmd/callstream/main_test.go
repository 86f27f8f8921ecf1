package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func find(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("subcommand %q not registered", name)
	return nil
}

func TestCommandTree(t *testing.T) {
	a := &app{}
	root := &cobra.Command{Use: "callstream"}
	root.AddCommand(a.ttsCmd(), a.streamCmd(), a.reconcileCmd())

	tts := find(t, root, "tts")
	if tts.Flags().Lookup("clean-failed") == nil {
		t.Error("tts: missing --clean-failed")
	}
	stream := find(t, root, "stream")
	if f := stream.Flags().Lookup("count"); f == nil || f.DefValue != "1" {
		t.Errorf("stream --count = %v", f)
	}
	rec := find(t, root, "reconcile")
	w, err := rec.Flags().GetDuration("window")
	if err != nil || w != 24*time.Hour {
		t.Errorf("reconcile --window = %v, %v", w, err)
	}
}

func TestStreamRequiresKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EVALUAGENT_API_KEY", "")
	a := &app{}
	if err := a.init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	cmd := a.streamCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without an API key")
	}
}
