package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// It also implements http.Hijacker to support WebSocket connections.
type responseWriter struct {
	http.ResponseWriter
	status   int
	size     int
	hijacked bool
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack implements http.Hijacker interface to support WebSocket upgrades.
// This delegates to the underlying ResponseWriter if it supports hijacking.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	conn, buf, err := h.Hijack()
	if err == nil {
		rw.hijacked = true
	}
	return conn, buf, err
}

// Flush implements http.Flusher interface for streaming responses.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// quietPaths are polled by container health checks and dashboards; they are
// logged only at -v=2.
var quietPaths = map[string]bool{
	"/api/health": true,
	"/api/status": true,
}

type severity int

const (
	sevVerbose severity = iota
	sevInfo
	sevWarning
	sevError
)

func classify(path string, status int) severity {
	switch {
	case status >= http.StatusInternalServerError:
		return sevError
	case status >= http.StatusBadRequest:
		return sevWarning
	case quietPaths[path]:
		return sevVerbose
	default:
		return sevInfo
	}
}

// Logging is middleware that logs HTTP requests. A hijacked connection is a
// live listing view and is logged as such.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		if wrapped.hijacked {
			glog.Infof("WebSocket view opened for %s (upgrade took %s)", r.RemoteAddr, duration)
			return
		}

		line := fmt.Sprintf("%s %s %d %dB %s", r.Method, r.URL.RequestURI(), wrapped.status, wrapped.size, duration)
		switch classify(r.URL.Path, wrapped.status) {
		case sevError:
			glog.Errorf("%s", line)
		case sevWarning:
			glog.Warningf("%s", line)
		case sevInfo:
			glog.Infof("%s", line)
		default:
			glog.V(2).Infof("%s", line)
		}
	})
}
