package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"conversation-stream/internal/media"
	"conversation-stream/internal/types"
)

const clipExt = ".mp3"

// message_<n>_<role>_<stage>.mp3, n is one-based
var clipName = regexp.MustCompile(`^message_(\d+)_(agent|customer)_(raw|stereo|mapped)\.mp3$`)

// ClipName encodes index, role and stage so later stages can recover them
// from a directory listing alone.
func ClipName(c types.Clip) string {
	return fmt.Sprintf("message_%d_%s_%s%s", c.Index+1, c.Role, c.Stage, clipExt)
}

// ParseClipName is the inverse of ClipName.
func ParseClipName(name string) (types.Clip, bool) {
	m := clipName.FindStringSubmatch(name)
	if m == nil {
		return types.Clip{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return types.Clip{}, false
	}
	return types.Clip{
		Index: n - 1,
		Role:  types.Role(m[2]),
		Stage: types.Stage(m[3]),
	}, true
}

// At returns the clip moved to stage inside dir.
func At(c types.Clip, dir string, stage types.Stage) types.Clip {
	c.Stage = stage
	c.Path = filepath.Join(dir, ClipName(c))
	return c
}

// SortClips orders clips by utterance index numerically.
func SortClips(clips []types.Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].Index != clips[j].Index {
			return clips[i].Index < clips[j].Index
		}
		return clips[i].Role < clips[j].Role
	})
}

// Collect lists the clips of one stage in dir, sorted by index.
func Collect(dir string, stage types.Stage) ([]types.Clip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []types.Clip
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		c, ok := ParseClipName(e.Name())
		if !ok || c.Stage != stage {
			continue
		}
		c.Path = filepath.Join(dir, e.Name())
		out = append(out, c)
	}
	SortClips(out)
	return out, nil
}

// SideFor is the fixed role to channel mapping: agents left, customers right.
func SideFor(r types.Role) (media.Side, error) {
	switch r {
	case types.RoleAgent:
		return media.Left, nil
	case types.RoleCustomer:
		return media.Right, nil
	default:
		return "", fmt.Errorf("unknown role %q", r)
	}
}
