// Package handlers implements the HTTP endpoints of the expense bot API.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
)

// maxBodyBytes bounds JSON request bodies and webhook payloads.
const maxBodyBytes = 1 << 20

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// resolveUser returns the authenticated subject when auth is on, otherwise
// the caller-supplied id.
func resolveUser(r *http.Request, supplied string) (string, bool) {
	if sub := middleware.SubjectFromContext(r.Context()); sub != "" {
		return sub, true
	}
	supplied = strings.TrimSpace(supplied)
	return supplied, supplied != ""
}

func queryUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := resolveUser(r, r.URL.Query().Get("user_id"))
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
	}
	return userID, ok
}

func queryDate(r *http.Request, key string) (*civil.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s format, want YYYY-MM-DD", key)
	}
	return &d, nil
}

func queryInt(r *http.Request, key string) (*int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s, want an integer", key)
	}
	return &n, nil
}

func queryString(r *http.Request, key string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	return &raw
}
