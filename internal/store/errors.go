package store

import (
	"encoding/json"
	"net/http"

	"tools.zach/dev/timecord/internal/fault"
)

// postgrestError is the structured error body PostgREST returns alongside
// non-2xx statuses. Code carries the PostgreSQL SQLSTATE or a PGRST code.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// SQLSTATE codes surfaced by PostgREST that the daemon branches on.
const (
	codeUndefinedTable  = "42P01"
	codeInsufficientPrv = "42501"
)

// classifyResponse maps a non-2xx PostgREST response to a classified error.
// Classification reads the status code and the structured error code, never
// the message text.
func classifyResponse(status int, body []byte) error {
	var pe postgrestError
	// Body may be empty or non-JSON on proxy-level failures.
	_ = json.Unmarshal(body, &pe)

	kind := fault.Unknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = fault.Permission
	case pe.Code == codeInsufficientPrv:
		kind = fault.Permission
	case pe.Code == codeUndefinedTable:
		kind = fault.Schema
	case status == http.StatusNotFound && pe.Code != "":
		// PostgREST reports a missing table as 404 with a PGRST code.
		kind = fault.Schema
	}

	msg := pe.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := fault.Newf(kind, "store.request", "status %d: %s", status, msg)
	if pe.Hint != "" {
		err = err.WithHint(pe.Hint)
	}
	return err
}
