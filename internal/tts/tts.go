package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Voice selects the speaker accent; Language is the translate_tts "tl" code.
type Voice struct {
	Name     string `json:"name" yaml:"name"`
	Language string `json:"language" yaml:"language"`
}

// maxChunk is the longest text the endpoint accepts per request.
const maxChunk = 100

var ErrEmptyText = errors.New("no text to speak")

// Client renders speech through the Google translate_tts endpoint and
// writes the MP3 stream to disk.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

// New builds a client; perSecond <= 0 disables throttling.
func New(endpoint string, perSecond float64, timeout time.Duration, log *logrus.Entry) *Client {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Client{
		url:     endpoint,
		http:    &http.Client{Timeout: timeout},
		limiter: lim,
		log:     log.WithField("component", "tts"),
	}
}

// Synthesize writes the spoken text to out. A failed request removes the
// partial file.
func (c *Client) Synthesize(ctx context.Context, text string, voice Voice, out string) (err error) {
	chunks := Chunk(text)
	if len(chunks) == 0 {
		return ErrEmptyText
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out)
		}
	}()

	for i, chunk := range chunks {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.fetch(ctx, f, chunk, voice, i, len(chunks)); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	c.log.WithFields(logrus.Fields{"voice": voice.Language, "chunks": len(chunks), "file": out}).Debug("audio segment saved")
	return nil
}

func (c *Client) fetch(ctx context.Context, w io.Writer, text string, voice Voice, idx, total int) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", voice.Language)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))
	q.Set("client", "tw-ob")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("tts returned empty audio")
	}
	return nil
}

// Chunk splits text into pieces of at most maxChunk runes, breaking on
// whitespace where possible. Blank text yields no chunks.
func Chunk(text string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > maxChunk {
			flush()
			out = append(out, string(w[:maxChunk]))
			w = w[maxChunk:]
		}
		need := len(w)
		if len(cur) > 0 {
			need++
		}
		if len(cur)+need > maxChunk {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()
	return out
}
