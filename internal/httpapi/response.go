package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kengreim/vnas-stats/internal/logger"
)

// Response is the standard envelope for both binaries' health endpoints.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("failed to encode health response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func healthyResponse(data interface{}) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(data interface{}, errMsg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Data: data, Error: errMsg}
}
