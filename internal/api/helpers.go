package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// WriteJSONResponse marshals the value before touching the ResponseWriter
// so an encoding failure produces a clean 500 instead of a partial body.
// Returns false when the response could not be written.
func WriteJSONResponse(w http.ResponseWriter, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		return false
	}
	return true
}

// WriteJSONStatus is WriteJSONResponse with an explicit status code.
func WriteJSONStatus(w http.ResponseWriter, status int, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		return false
	}
	return true
}

// DecodeJSONBody decodes the request body into dst and writes a 400 on
// malformed input. Returns false when decoding failed.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// ParseListParams parses limit and offset query parameters, falling back
// to the defaults when they are missing or invalid.
func ParseListParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
