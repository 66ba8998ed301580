// Package store persists tracked time to a Supabase project over the
// PostgREST API.
//
// Two tables back the system: "identities" maps an external account ID to an
// internal row ID, and "time_entries" holds one row per tracked interval.
// The store is the system of record: the daemon's in-memory session is a
// cache over the active entry's row.
//
// Transport-level retries live here, below the store boundary, so callers
// see a single success or a single classified failure per operation. The
// retry count comes from config (store.retry_max) and 0 disables retries.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/timecord/internal/fault"
)

// Table names in the Supabase project.
const (
	identitiesTable = "identities"
	entriesTable    = "time_entries"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Entry is a persisted tracked interval. Timestamps travel as ISO-8601
// strings; use [FormatTime] and [ParseTime] at the boundary.
type Entry struct {
	ID            int64   `json:"id,omitempty"`
	UserID        int64   `json:"user_id"`
	StartTime     string  `json:"start_time"`
	EndTime       *string `json:"end_time,omitempty"`
	IsActive      bool    `json:"is_active"`
	LastActive    string  `json:"last_active"`
	WorkspaceName string  `json:"workspace_name"`
	StopReason    *string `json:"stop_reason,omitempty"`
}

// EntryPatch is a partial update. Nil fields are left untouched by the store.
type EntryPatch struct {
	EndTime    *string `json:"end_time,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	LastActive *string `json:"last_active,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`
}

// identityRow mirrors the identities table.
type identityRow struct {
	ID          int64  `json:"id,omitempty"`
	ExternalID  int64  `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// ///////////////////////////////////////////////
// Time Helpers
// ///////////////////////////////////////////////

// FormatTime renders t as the UTC ISO-8601 wire string.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a wire timestamp. PostgREST may render timestamptz with
// fractional seconds, so both forms are accepted.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Options configures a [Client].
type Options struct {
	// URL is the Supabase project root, e.g. https://xyz.supabase.co.
	URL string
	// Key is the project API key sent as both apikey and bearer token.
	Key string
	// RetryMax is the transport retry count. 0 disables retries.
	RetryMax int
	// Timeout bounds each attempt.
	Timeout time.Duration
}

// Client talks to the PostgREST endpoint of a Supabase project.
type Client struct {
	base string
	key  string
	http *retryablehttp.Client
}

// NewClient builds a client from options.
func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil // suppress retryablehttp's default logging
	// Hand back the final response after retries run out so status-based
	// classification still applies to persistent 5xx answers.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{
		base: strings.TrimRight(opts.URL, "/") + "/rest/v1",
		key:  opts.Key,
		http: rc,
	}
}

// ///////////////////////////////////////////////
// Identity Operations
// ///////////////////////////////////////////////

// FindIdentity looks up the internal row ID for an external account.
// The second return is false when no row exists.
func (c *Client) FindIdentity(ctx context.Context, externalID int64) (int64, bool, error) {
	query := fmt.Sprintf("%s?external_id=eq.%d&select=id&limit=1", identitiesTable, externalID)
	var rows []identityRow
	if err := c.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return 0, false, fmt.Errorf("find identity: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].ID, true, nil
}

// CreateIdentity inserts an identity row and returns its ID.
func (c *Client) CreateIdentity(ctx context.Context, externalID int64, displayName string) (int64, error) {
	row := identityRow{ExternalID: externalID, DisplayName: displayName}
	var created []identityRow
	if err := c.do(ctx, http.MethodPost, identitiesTable, row, &created); err != nil {
		return 0, fmt.Errorf("create identity: %w", err)
	}
	if len(created) == 0 {
		return 0, fault.Newf(fault.Unknown, "store.create_identity", "insert returned no row")
	}
	return created[0].ID, nil
}

// ///////////////////////////////////////////////
// Entry Operations
// ///////////////////////////////////////////////

// CreateEntry inserts a new entry row and returns its ID.
func (c *Client) CreateEntry(ctx context.Context, e Entry) (int64, error) {
	var created []Entry
	if err := c.do(ctx, http.MethodPost, entriesTable, e, &created); err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}
	if len(created) == 0 {
		return 0, fault.Newf(fault.Unknown, "store.create_entry", "insert returned no row")
	}
	return created[0].ID, nil
}

// UpdateEntry applies a partial update to one entry.
func (c *Client) UpdateEntry(ctx context.Context, entryID int64, patch EntryPatch) error {
	query := fmt.Sprintf("%s?id=eq.%d", entriesTable, entryID)
	if err := c.do(ctx, http.MethodPatch, query, patch, nil); err != nil {
		return fmt.Errorf("update entry %d: %w", entryID, err)
	}
	return nil
}

// FindActiveEntry returns the entry still marked active for a user, or nil
// when there is none. At most one is expected; extras are ignored in favor
// of the newest.
func (c *Client) FindActiveEntry(ctx context.Context, userID int64) (*Entry, error) {
	query := fmt.Sprintf("%s?user_id=eq.%d&is_active=eq.true&order=start_time.desc&limit=1", entriesTable, userID)
	var rows []Entry
	if err := c.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return nil, fmt.Errorf("find active entry: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FindRecentEntries returns up to limit entries, newest first.
func (c *Client) FindRecentEntries(ctx context.Context, limit int) ([]Entry, error) {
	query := fmt.Sprintf("%s?order=start_time.desc&limit=%d", entriesTable, limit)
	var rows []Entry
	if err := c.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return nil, fmt.Errorf("find recent entries: %w", err)
	}
	return rows, nil
}

// ///////////////////////////////////////////////
// Transport
// ///////////////////////////////////////////////

// do issues one PostgREST request. body (when non-nil) is sent as JSON; out
// (when non-nil) receives the decoded response. Mutating requests ask
// PostgREST to return the affected rows so inserts can report their IDs.
func (c *Client) do(ctx context.Context, method, query string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+"/"+query, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.New(fault.Network, "store."+strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fault.New(fault.Network, "store.read", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyResponse(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
