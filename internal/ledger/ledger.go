// Package ledger stores one row per contact sent for evaluation in a
// PostgREST "contacts" table and records the outcome once it is known.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"conversation-stream/internal/types"
)

const table = "/rest/v1/contacts"

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
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.WithField("component", "ledger"),
	}
}

// Insert adds a record and returns it as stored.
func (c *Client) Insert(ctx context.Context, rec types.ContactRecord) (types.ContactRecord, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return types.ContactRecord{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, nil, bytes.NewReader(body))
	if err != nil {
		return types.ContactRecord{}, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []types.ContactRecord
	if err := c.do(req, &rows); err != nil {
		return types.ContactRecord{}, err
	}
	if len(rows) == 0 {
		return rec, nil
	}
	c.log.WithFields(logrus.Fields{"id": rows[0].ID, "reference": rec.Reference}).Info("ledger record inserted")
	return rows[0], nil
}

// Pending returns records that have no outcome yet, oldest first.
func (c *Client) Pending(ctx context.Context) ([]types.ContactRecord, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("outcome", "is.null")
	q.Set("order", "id.asc")
	req, err := c.newRequest(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	var rows []types.ContactRecord
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateOutcome sets the outcome of record id.
func (c *Client) UpdateOutcome(ctx context.Context, id int64, outcome string) error {
	if id == 0 {
		return fmt.Errorf("ledger: record has no id")
	}
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	body, _ := json.Marshal(map[string]string{"outcome": outcome})
	req, err := c.newRequest(ctx, http.MethodPatch, q, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"id": id, "outcome": outcome}).Debug("outcome updated")
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger %s: status=%d body=%s", req.Method, resp.StatusCode, string(body))
	}
	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("ledger decode: %w", err)
	}
	return nil
}
