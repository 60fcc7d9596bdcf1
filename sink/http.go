package sink

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/tapline/mysqlwire/event"
)

// DefaultTimeout is the per-POST deadline when none is configured
// (spec.md §4.7: "a short timeout (default 500 ms)").
const DefaultTimeout = 500 * time.Millisecond

// HTTPSink posts ORDER events to a configured URL. Only ORDER events are
// sent; everything else is silently dropped, since the endpoint exists
// for operators watching business events, not raw protocol traffic.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates an HTTPSink posting to url with the given timeout
// (DefaultTimeout if zero).
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Emit posts ev to the configured URL if it's an ORDER event. Failures
// are logged but never returned or retried (spec.md §7 error kind 4):
// a slow or unreachable sink must never block the decoder.
func (s *HTTPSink) Emit(ev event.Event) {
	if ev.Kind != event.Order {
		return
	}
	body, err := json.Marshal(toJSONLine(ev))
	if err != nil {
		log.Printf("sink: marshal order event for http post: %v", err)
		return
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("sink: post to %s: %v", s.url, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("sink: post to %s: status %d", s.url, resp.StatusCode)
	}
}

// Close is a no-op; HTTPSink holds no resources worth flushing.
func (s *HTTPSink) Close() error { return nil }
