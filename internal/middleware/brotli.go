package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// brotliMinLength is the response size below which compression is skipped;
// tiny JSON envelopes grow under brotli framing overhead.
const brotliMinLength = 1024

type brotliWriter struct {
	gin.ResponseWriter
	bw        *brotli.Writer
	pending   []byte
	headerSet sync.Once
	encoding  bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	w.pending = append(w.pending, data...)
	if len(w.pending) < brotliMinLength {
		return len(data), nil
	}

	w.headerSet.Do(func() {
		w.encoding = true
		w.ResponseWriter.Header().Set("Content-Encoding", "br")
		w.ResponseWriter.Header().Del("Content-Length")
	})
	n, err := w.bw.Write(w.pending)
	w.pending = w.pending[:0]
	return n, err
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush is invoked by streaming endpoints (the SSE monitor). Anything still
// buffered goes out uncompressed so the event reaches the client now.
func (w *brotliWriter) Flush() {
	w.drain()
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) drain() {
	if len(w.pending) == 0 {
		return
	}
	_, _ = w.ResponseWriter.Write(w.pending)
	w.pending = w.pending[:0]
}

// Brotli compresses responses for clients that advertise br support.
// Small responses pass through untouched, as do SSE and WebSocket
// requests where buffering would break the protocol.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if streamingRequest(c) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		w := &brotliWriter{
			ResponseWriter: c.Writer,
			bw:             brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}
		defer func() {
			w.drain()
			if w.encoding {
				w.bw.Close()
			}
		}()

		c.Writer = w
		c.Next()
	}
}

func streamingRequest(c *gin.Context) bool {
	// SSE needs every event on the wire immediately.
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// A wrapped writer breaks the WebSocket upgrade handshake.
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
