package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"conversation-stream/internal/media"
	"conversation-stream/internal/types"
)

func TestClipNameRoundTrip(t *testing.T) {
	c := types.Clip{Index: 9, Role: types.RoleCustomer, Stage: types.StageStereo}
	name := ClipName(c)
	if name != "message_10_customer_stereo.mp3" {
		t.Errorf("ClipName = %q", name)
	}
	got, ok := ParseClipName(name)
	if !ok || got != c {
		t.Errorf("ParseClipName(%q) = %+v, %v", name, got, ok)
	}
}

func TestParseClipNameRejects(t *testing.T) {
	for _, name := range []string{
		"concat_list.txt",
		"message_0_agent_raw.mp3",
		"message_1_bot_raw.mp3",
		"message_1_agent_remapped.mp3",
		"message_x_agent_raw.mp3",
		"message_1_agent_raw.wav",
	} {
		if _, ok := ParseClipName(name); ok {
			t.Errorf("ParseClipName(%q) accepted", name)
		}
	}
}

func TestCollectSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	// written in lexicographic order on purpose
	for _, n := range []int{1, 10, 11, 2, 3, 4, 5, 6, 7, 8, 9} {
		c := At(types.Clip{Index: n - 1, Role: types.RoleAgent}, dir, types.StageMapped)
		if err := os.WriteFile(c.Path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// other stages and junk are ignored
	os.WriteFile(filepath.Join(dir, "message_1_agent_raw.mp3"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "concat_list.txt"), nil, 0o644)

	clips, err := Collect(dir, types.StageMapped)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(clips) != 11 {
		t.Fatalf("got %d clips, want 11", len(clips))
	}
	for i, c := range clips {
		if c.Index != i {
			t.Errorf("clips[%d].Index = %d (%s)", i, c.Index, filepath.Base(c.Path))
		}
	}
}

func TestSideFor(t *testing.T) {
	if s, _ := SideFor(types.RoleAgent); s != media.Left {
		t.Errorf("agent -> %s, want left", s)
	}
	if s, _ := SideFor(types.RoleCustomer); s != media.Right {
		t.Errorf("customer -> %s, want right", s)
	}
	if _, err := SideFor("supervisor"); err == nil {
		t.Error("expected error for unknown role")
	}
}
