package handlers

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/bpc-regimens/logging"
)

// Minimum response size to consider compression (1KB)
const compressionThreshold = 1024

// ErrorResponse is the body of every non 2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Label   string `json:"label,omitempty"`
}

// RespondWithJSON writes payload as JSON, gzipped when large and accepted
func RespondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.Header().Add("Vary", "Accept-Encoding")

	acceptsGzip := r != nil && strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip")
	if len(data) < compressionThreshold || !acceptsGzip {
		w.WriteHeader(code)
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(code)
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := gz.Write(data); err != nil {
		logging.Warn("Failed to write compressed response", "error", err)
	}
}

// RespondWithError writes an ErrorResponse
func RespondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	RespondWithJSON(w, r, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
