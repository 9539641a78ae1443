// Invalidation stream.
//
//   - GET /events?topic=cart-changed&topic=...   (Server-Sent Events)
//
// Each bus broadcast becomes one event named after its topic. Events carry
// no payload beyond the topic; subscribers re-read the store.
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-client/internal/bus"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 15 * time.Second
)

// Events streams bus topics until the client disconnects. Without a topic
// parameter every topic is streamed.
func (h *Handlers) Events(c *gin.Context) {
	topics, okTopics := requestedTopics(c.QueryArray("topic"))
	if !okTopics {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown topic")
		return
	}

	// A full buffer drops the signal; a queued one already asks for a re-read.
	ch := make(chan bus.Topic, eventBuffer)
	for _, t := range topics {
		unsubscribe := h.svc.Events.Subscribe(t, func(t bus.Topic) {
			select {
			case ch <- t:
			default:
			}
		})
		defer unsubscribe()
	}

	hdr := c.Writer.Header()
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	c.SSEvent("ready", names)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(io.Writer) bool {
		select {
		case t := <-ch:
			c.SSEvent(string(t), string(t))
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		case <-done:
			return false
		}
	})
}

func requestedTopics(raw []string) ([]bus.Topic, bool) {
	all := bus.Topics()
	if len(raw) == 0 {
		return all, true
	}
	known := make(map[bus.Topic]bool, len(all))
	for _, t := range all {
		known[t] = true
	}
	seen := map[bus.Topic]bool{}
	out := make([]bus.Topic, 0, len(raw))
	for _, r := range raw {
		t := bus.Topic(r)
		if !known[t] {
			return nil, false
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, true
}
