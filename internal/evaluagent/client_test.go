package evaluagent

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conversation-stream/internal/logger"
)

const key = "id:secret"

func newServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(key))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != wantAuth {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v1", key, logger.Discard().Entry)
}

func TestAgents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/org/roles", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":"r1","attributes":{"name":"admin"}},{"id":"r2","attributes":{"name":"agent"}}]}`)
	})
	mux.HandleFunc("/v1/org/users", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[
			{"id":"u1","attributes":{"fullname":"Ann","email":"ann@x.io","active":true},"relationships":{"roles":{"data":[{"id":"r2"}]}}},
			{"id":"u2","attributes":{"fullname":"Bob","email":"bob@x.io","active":false},"relationships":{"roles":{"data":[{"id":"r2"}]}}},
			{"id":"u3","attributes":{"fullname":"Cat","email":"","active":true},"relationships":{"roles":{"data":[{"id":"r2"}]}}},
			{"id":"u4","attributes":{"fullname":"Dan","email":"dan@x.io","active":true},"relationships":{"roles":{"data":[{"id":"r1"}]}}}
		]}`)
	})
	c := newServer(t, mux)

	agents, err := c.Agents(context.Background())
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "u1" || agents[0].Email != "ann@x.io" {
		t.Errorf("agents = %+v", agents)
	}
}

func TestAgentsNoRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/org/roles", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[]}`)
	})
	c := newServer(t, mux)
	if _, err := c.Agents(context.Background()); err == nil {
		t.Fatal("expected error when agent role is missing")
	}
}

func TestUploadAudio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quality/imported-contacts/upload-audio", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("audio_file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if string(b) != "ID3data" || hdr.Filename != "call.mp3" {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"path":"uploads/abc/call.mp3"}`)
	})
	c := newServer(t, mux)

	p := filepath.Join(t.TempDir(), "call.mp3")
	os.WriteFile(p, []byte("ID3data"), 0o644)
	got, err := c.UploadAudio(context.Background(), p)
	if err != nil {
		t.Fatalf("UploadAudio: %v", err)
	}
	if got != "uploads/abc/call.mp3" {
		t.Errorf("path = %q", got)
	}
}

func TestSendContactErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quality/imported-contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "ct", http.StatusUnsupportedMediaType)
			return
		}
		b, _ := io.ReadAll(r.Body)
		if strings.Contains(string(b), "bad") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"errors":["agent_id invalid"]}`)
			return
		}
		io.WriteString(w, `{"message":"Contact imported"}`)
	})
	c := newServer(t, mux)

	res, err := c.SendContact(context.Background(), map[string]string{"reference": "good"})
	if err != nil || res.Message != "Contact imported" {
		t.Fatalf("SendContact = %+v, %v", res, err)
	}

	_, err = c.SendContact(context.Background(), map[string]string{"reference": "bad"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want APIError 422", err)
	}
}

func TestEvaluations(t *testing.T) {
	from := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quality/evaluations", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter[published_at;between]") != "2026-10-15T10:00:00Z,2026-10-16T10:00:00Z" || q.Get("include") != "contacts" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{
			"data":[{"id":"e1","attributes":{"outcome":"Pass","published_at":"2026-10-16T09:00:00Z"},
			         "relationships":{"contacts":{"data":[{"id":"c1","type":"contacts"}]}}}],
			"included":[{"id":"c1","type":"contacts","attributes":{"reference":"ref-1"}}]
		}`)
	})
	c := newServer(t, mux)

	evs, err := c.Evaluations(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Evaluations: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d evaluations", len(evs))
	}
	ev := evs[0]
	if ev.Outcome != "Pass" || len(ev.ContactReferences) != 1 || ev.ContactReferences[0] != "ref-1" {
		t.Errorf("evaluation = %+v", ev)
	}
}

func TestUnauthorized(t *testing.T) {
	c := newServer(t, http.NewServeMux())
	c.key = "wrong"
	_, err := c.Agents(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
}
