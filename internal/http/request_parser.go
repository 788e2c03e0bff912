// This file implements helpers for reading identifiers, dates and JSON
// bodies from requests.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"budgetcal/internal/core"
)

const (
	// HeaderUserID selects the user a request acts for.
	HeaderUserID = "X-User-ID"

	maxBodyBytes = 1 << 20
)

// UserID returns the user named by the X-User-ID header, or fallback when the
// header is absent.
func UserID(r *http.Request, fallback int64) (int64, error) {
	v := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if v == "" {
		return fallback, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s header %q", HeaderUserID, v)
	}
	return id, nil
}

// PathID parses the {name} path value as a positive id.
func PathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}

// QueryDate parses an ISO date from the query. A missing value yields the
// zero date.
func QueryDate(r *http.Request, key string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// QueryInt parses an integer from the query, returning fallback when the
// value is missing.
func QueryInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies larger than 1 MiB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
