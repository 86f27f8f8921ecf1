package media

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteConcatList writes an ffmpeg concat-demuxer manifest listing inputs
// in the given order. Paths are made absolute so the manifest location
// does not matter.
func WriteConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("concat list: %w", err)
		}
		b.WriteString("file ")
		b.WriteString(quote(abs))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ReadConcatList returns the file entries of a manifest written by
// WriteConcatList.
func ReadConcatList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rest, ok := strings.CutPrefix(line, "file ")
		if !ok {
			return nil, fmt.Errorf("concat list: unexpected line %q", line)
		}
		out = append(out, unquote(strings.TrimSpace(rest)))
	}
	return out, sc.Err()
}

// quote escapes for the concat demuxer: single quotes close the string,
// emit an escaped quote, and reopen.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `'\''`, "'")
}
