package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const RequestIDKey ContextKey = "request_id"

// HeaderRequestID is read from callers and echoed on every response.
const HeaderRequestID = "X-Request-ID"

// Completion describes a finished request.
type Completion struct {
	RequestID  string
	ClientIP   string
	StatusCode int
	Duration   time.Duration
}

// Observer receives every finished request, e.g. for metrics and the access log.
type Observer func(r *http.Request, c Completion)

type Middleware struct {
	extractIP func(*http.Request) string
	observe   Observer
}

func NewMiddleware(extractIP func(*http.Request) string, observe Observer) *Middleware {
	return &Middleware{extractIP: extractIP, observe: observe}
}

// Middleware assigns a request ID and reports request completion to the observer.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if m.observe != nil {
			m.observe(r, Completion{
				RequestID:  requestID,
				ClientIP:   clientIP,
				StatusCode: rw.statusCode,
				Duration:   time.Since(start),
			})
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func GenerateRequestID() string {
	return uuid.NewString()
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
