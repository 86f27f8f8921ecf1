package evaluagent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"conversation-stream/internal/types"
)

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("evaluagent %s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to the evaluagent v1 API with a pre-shared key. Every
// call is a single attempt.
type Client struct {
	base string
	key  string
	http *http.Client
	log  *logrus.Entry
}

func New(baseURL, apiKey string, log *logrus.Entry) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		key:  apiKey,
		http: &http.Client{Timeout: 60 * time.Second},
		log:  log.WithField("component", "evaluagent"),
	}
}

type resource struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Attributes    json.RawMessage `json:"attributes"`
	Relationships map[string]struct {
		Data []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"data"`
	} `json:"relationships"`
}

type document struct {
	Data     []resource `json:"data"`
	Included []resource `json:"included"`
}

// Agents returns active users holding the "agent" role that have an email.
func (c *Client) Agents(ctx context.Context) ([]types.Agent, error) {
	var roles document
	if err := c.get(ctx, "/org/roles", nil, &roles); err != nil {
		return nil, err
	}
	roleID := ""
	for _, r := range roles.Data {
		var attr struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r.Attributes, &attr); err == nil && attr.Name == "agent" {
			roleID = r.ID
			break
		}
	}
	if roleID == "" {
		return nil, fmt.Errorf("agent role not found in %d roles", len(roles.Data))
	}

	var users document
	if err := c.get(ctx, "/org/users", nil, &users); err != nil {
		return nil, err
	}
	var out []types.Agent
	for _, u := range users.Data {
		var attr struct {
			Fullname string `json:"fullname"`
			Email    string `json:"email"`
			Active   bool   `json:"active"`
		}
		if err := json.Unmarshal(u.Attributes, &attr); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", u.ID, err)
		}
		if !attr.Active || attr.Email == "" {
			continue
		}
		for _, r := range u.Relationships["roles"].Data {
			if r.ID == roleID {
				out = append(out, types.Agent{ID: u.ID, Name: attr.Fullname, Email: attr.Email})
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no active agents found")
	}
	c.log.WithField("agents", len(out)).Info("agents loaded")
	return out, nil
}

// UploadAudio posts a recording and returns the storage path the platform
// assigns it.
func (c *Client) UploadAudio(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("audio_file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/quality/imported-contacts/upload-audio", nil, &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		Path string `json:"path"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.Path == "" {
		return "", fmt.Errorf("upload failed: no path returned")
	}
	c.log.WithField("path_to_audio", resp.Path).Info("audio uploaded")
	return resp.Path, nil
}

// ImportResult is the platform's answer to an imported contact.
type ImportResult struct {
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// SendContact posts one contact template (chat or call).
func (c *Client) SendContact(ctx context.Context, contact any) (ImportResult, error) {
	body, err := json.Marshal(contact)
	if err != nil {
		return ImportResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/quality/imported-contacts", nil, bytes.NewReader(body))
	if err != nil {
		return ImportResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res ImportResult
	if err := c.doJSON(req, &res); err != nil {
		return ImportResult{}, err
	}
	if len(res.Errors) > 0 && string(res.Errors) != "null" {
		return res, fmt.Errorf("contact rejected: %s", string(res.Errors))
	}
	return res, nil
}

// Evaluation is a published evaluation and the contacts it covers.
type Evaluation struct {
	ID                string
	Outcome           string
	PublishedAt       time.Time
	ContactReferences []string
}

// Evaluations lists evaluations published in [from, to], newest first.
func (c *Client) Evaluations(ctx context.Context, from, to time.Time) ([]Evaluation, error) {
	q := url.Values{}
	q.Set("filter[published_at;between]", from.Format(time.RFC3339)+","+to.Format(time.RFC3339))
	q.Set("sort", "-published_at")
	q.Set("include", "contacts")

	var doc document
	if err := c.get(ctx, "/quality/evaluations", q, &doc); err != nil {
		return nil, err
	}

	refs := map[string]string{}
	for _, inc := range doc.Included {
		if inc.Type != "contacts" {
			continue
		}
		var attr struct {
			Reference string `json:"reference"`
		}
		if err := json.Unmarshal(inc.Attributes, &attr); err == nil && attr.Reference != "" {
			refs[inc.ID] = attr.Reference
		}
	}

	out := make([]Evaluation, 0, len(doc.Data))
	for _, d := range doc.Data {
		var attr struct {
			Outcome     string    `json:"outcome"`
			PublishedAt time.Time `json:"published_at"`
		}
		if err := json.Unmarshal(d.Attributes, &attr); err != nil {
			return nil, fmt.Errorf("decode evaluation %s: %w", d.ID, err)
		}
		ev := Evaluation{ID: d.ID, Outcome: attr.Outcome, PublishedAt: attr.PublishedAt}
		for _, rel := range d.Relationships["contacts"].Data {
			if ref, ok := refs[rel.ID]; ok {
				ev.ContactReferences = append(ev.ContactReferences, ref)
			}
		}
		out = append(out, ev)
	}
	c.log.WithField("evaluations", len(out)).Debug("evaluations fetched")
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, target)
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.key)))
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: req.Method, Path: req.URL.Path, Status: resp.StatusCode, Body: string(body)}
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, string(body))
	}
	return nil
}
