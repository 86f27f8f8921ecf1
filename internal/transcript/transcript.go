// Package transcript loads ticket transcripts: JSON arrays of
// {"message": ..., "speaker_is_customer": ...} objects.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"conversation-stream/internal/types"
)

// ErrRead is returned (wrapped) for missing, unreadable or malformed files.
var ErrRead = errors.New("transcript read error")

// Read parses path and returns its utterances in file order. Message
// content is not validated.
func Read(path string) ([]types.Utterance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	var utts []types.Utterance
	if err := json.Unmarshal(data, &utts); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	if utts == nil {
		// a literal `null` document
		return nil, fmt.Errorf("%w: %s: not a list of utterances", ErrRead, path)
	}
	for i := range utts {
		utts[i].Index = i
	}
	return utts, nil
}

// BaseName is the transcript file name without directory or extension;
// the rendered call is named after it.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// List returns the .json tickets in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
