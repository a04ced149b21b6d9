package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// ErrEmptyBody is returned by DecodeJSON when the request has no body
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON reads exactly one JSON value from r into dest
func DecodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// ParseJSONOrError decodes the body into dest. On failure it writes 413 for
// bodies over the LimitBody cap and 400 otherwise.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	err := DecodeJSON(r, dest)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteErrorMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	WriteBadRequest(w, "invalid JSON: "+err.Error())
	return false
}

// PathParam returns the trimmed route variable name, or "" when unset
func PathParam(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}

// ParseQueryInt reads a non-negative integer query parameter, returning def
// when it is absent
func ParseQueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

// Page is a limit/offset window taken from the query string
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset. A zero or oversized limit is clamped to max.
func ParsePage(r *http.Request, defaultLimit, max int) (Page, error) {
	limit, err := ParseQueryInt(r, "limit", defaultLimit)
	if err != nil {
		return Page{}, err
	}
	offset, err := ParseQueryInt(r, "offset", 0)
	if err != nil {
		return Page{}, err
	}
	if limit == 0 || limit > max {
		limit = max
	}
	return Page{Limit: limit, Offset: offset}, nil
}

// RequireNonEmpty writes a 400 naming field when value is blank
func RequireNonEmpty(w http.ResponseWriter, value, field string) bool {
	if strings.TrimSpace(value) != "" {
		return true
	}
	WriteBadRequest(w, field+" is required")
	return false
}
