package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"conversation-stream/internal/logger"
	"conversation-stream/internal/types"
)

func TestLedgerRoundTrip(t *testing.T) {
	var patched map[string]string
	var patchQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/contacts" || r.Header.Get("apikey") != "k" || r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.Method {
		case http.MethodPost:
			var rec types.ContactRecord
			json.NewDecoder(r.Body).Decode(&rec)
			rec.ID = 7
			json.NewEncoder(w).Encode([]types.ContactRecord{rec})
		case http.MethodGet:
			if r.URL.Query().Get("outcome") != "is.null" {
				http.Error(w, "missing filter", http.StatusBadRequest)
				return
			}
			io.WriteString(w, `[{"id":7,"reference":"ref-1","filename":"t1","channel":"Chat","outcome":null}]`)
		case http.MethodPatch:
			patchQuery = r.URL.RawQuery
			json.NewDecoder(r.Body).Decode(&patched)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "k", logger.Discard().Entry)
	ctx := context.Background()

	rec, err := c.Insert(ctx, types.ContactRecord{Reference: "ref-1", Filename: "t1", Channel: "Chat"})
	if err != nil || rec.ID != 7 {
		t.Fatalf("Insert = %+v, %v", rec, err)
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Outcome != nil {
		t.Fatalf("pending = %+v", pending)
	}

	if err := c.UpdateOutcome(ctx, 7, "Pass"); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}
	if patchQuery != "id=eq.7" || patched["outcome"] != "Pass" {
		t.Errorf("patch query=%q body=%v", patchQuery, patched)
	}
}

func TestUpdateOutcomeNeedsID(t *testing.T) {
	c := New("http://127.0.0.1:0", "k", logger.Discard().Entry)
	if err := c.UpdateOutcome(context.Background(), 0, "Pass"); err == nil {
		t.Fatal("expected error for zero id")
	}
}

func TestLedgerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"JWT expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := New(srv.URL, "k", logger.Discard().Entry)
	if _, err := c.Pending(context.Background()); err == nil {
		t.Fatal("expected error on 401")
	}
}
