package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParseJSON decodes the request body into v
func ParseJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes the body into v, writing a 400 response on
// failure. Returns false when the error response was written.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := ParseJSON(r, v); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 extracts an int64 path variable registered with mux
func ParsePathInt64(r *http.Request, name string) (int64, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, fmt.Errorf("missing path parameter %q", name)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid path parameter %q: %w", name, err)
	}
	return value, nil
}

// ParsePathInt64OrError extracts an int64 path variable, writing a 400
// response on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	value, err := ParsePathInt64(r, name)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return value, true
}

// ParseQueryInt reads an integer query parameter, falling back to
// defaultValue when absent or malformed
func ParseQueryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseQueryString reads a string query parameter with a default
func ParseQueryString(r *http.Request, name, defaultValue string) string {
	if raw := r.URL.Query().Get(name); raw != "" {
		return raw
	}
	return defaultValue
}

// ParseQueryBool reads a boolean query parameter with a default
func ParseQueryBool(r *http.Request, name string, defaultValue bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
