package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conversation-stream/internal/logger"
)

func TestPanFilter(t *testing.T) {
	left, err := PanFilter(Left)
	if err != nil || left != "pan=stereo|c0=FL" {
		t.Errorf("PanFilter(Left) = %q, %v", left, err)
	}
	right, err := PanFilter(Right)
	if err != nil || right != "pan=stereo|c1=FL" {
		t.Errorf("PanFilter(Right) = %q, %v", right, err)
	}
	if _, err := PanFilter("centre"); err == nil {
		t.Error("expected error for unknown side")
	}
}

func TestPanFilterDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		a, _ := PanFilter(Right)
		b, _ := PanFilter(Right)
		if a != b {
			t.Fatalf("pan filter changed between calls: %q vs %q", a, b)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.345000\n", 12.345, false},
		{"  3 ", 3, false},
		{"N/A", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConcatListRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "message_1_agent_mapped.mp3"),
		filepath.Join(dir, "it's quoted", "message_2_customer_mapped.mp3"),
	}
	manifest := filepath.Join(dir, "concat_list.txt")
	if err := WriteConcatList(manifest, inputs); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}

	raw, _ := os.ReadFile(manifest)
	if !strings.Contains(string(raw), `it'\''s quoted`) {
		t.Errorf("manifest did not escape quote:\n%s", raw)
	}

	got, err := ReadConcatList(manifest)
	if err != nil {
		t.Fatalf("ReadConcatList: %v", err)
	}
	if len(got) != len(inputs) {
		t.Fatalf("got %d entries, want %d", len(got), len(inputs))
	}
	for i := range inputs {
		if got[i] != inputs[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], inputs[i])
		}
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-ffmpeg"), "", logger.Discard().Entry)
	err := f.ToStereo(context.Background(), "in.mp3", "out.mp3")
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *ToolError", err)
	}
	if !strings.Contains(te.Error(), "no-ffmpeg") {
		t.Errorf("error %q does not name the tool", te.Error())
	}
}
