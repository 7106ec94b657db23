package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// MaxBodyBytes caps every JSON request body
const MaxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON document from the request body into v
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// WriteJSON marshals v and writes it with the given status code
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		zap.S().Errorw("failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Response":{"Message":"failed to marshal response","Error":""}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
