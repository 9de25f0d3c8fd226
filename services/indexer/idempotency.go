package indexer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"lukechampine.com/blake3"
)

const (
	// HeaderIdempotencyKey carries the client chosen replay key.
	HeaderIdempotencyKey = "Idempotency-Key"
	maxKeyLength         = 128
	maxBodyBytes         = 1 << 20
)

// Fingerprint hashes the parts of a request that must match on replay.
func Fingerprint(method, path string, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Reusing a key for a different request is rejected with 422. Only 2xx
// responses are remembered so a failed call may be retried.
func (s *Store) Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLength {
			http.Error(w, "idempotency key too long", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		fingerprint := Fingerprint(r.Method, r.URL.Path, body)

		var record IdempotencyKey
		err = s.db.WithContext(r.Context()).First(&record, "key = ?", key).Error
		switch {
		case err == nil:
			if record.Fingerprint != fingerprint {
				http.Error(w, "idempotency key reused with a different request", http.StatusUnprocessableEntity)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(record.Status)
			_, _ = io.WriteString(w, record.Response)
			return
		case !errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status < 200 || recorder.status >= 300 {
			return
		}
		payload := IdempotencyKey{
			Key:         key,
			Fingerprint: fingerprint,
			RequestID:   uuid.NewString(),
			Method:      r.Method,
			Path:        r.URL.Path,
			Status:      recorder.status,
			Response:    recorder.buf.String(),
			CreatedAt:   s.now().UTC(),
		}
		if err := s.db.WithContext(r.Context()).Create(&payload).Error; err != nil {
			s.logger.Warn("store idempotency key", "error", err.Error())
		}
	})
}

type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
