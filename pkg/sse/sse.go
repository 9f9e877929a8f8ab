// Package sse fans state-change events out to in-process subscribers and to
// browser consoles over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event is one published message. Data is JSON.
type Event struct {
	ID    uint64
	Topic string
	Name  string
	Data  json.RawMessage
}

// Decode unmarshals Data into v.
func (e Event) Decode(v interface{}) error { return json.Unmarshal(e.Data, v) }

// Subscription receives events of the topics it joined. Slow readers drop
// events rather than block publishers.
type Subscription struct {
	id     string
	hub    *Hub
	topics map[string]bool
	ch     chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) ID() string            { return s.id }
func (s *Subscription) Events() <-chan Event  { return s.ch }
func (s *Subscription) Done() <-chan struct{} { return s.done }
func (s *Subscription) Close()                { s.hub.remove(s) }

type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	topics   map[string]map[string]bool // topic -> subscription id set
	seq      uint64
	interval time.Duration
	retryMs  int
	buffer   int
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		subs:     make(map[string]*Subscription),
		topics:   make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
		buffer:   64,
	}
}

// Subscribe joins topics. No topics means every topic.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		topics: make(map[string]bool),
		ch:     make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s.id] = s
	if len(topics) == 0 {
		topics = []string{"*"}
	}
	for _, t := range topics {
		s.topics[t] = true
		if h.topics[t] == nil {
			h.topics[t] = make(map[string]bool)
		}
		h.topics[t][s.id] = true
	}
	return s
}

func (h *Hub) remove(s *Subscription) {
	s.once.Do(func() {
		h.mu.Lock()
		for t := range s.topics {
			delete(h.topics[t], s.id)
		}
		delete(h.subs, s.id)
		h.mu.Unlock()
		close(s.done)
	})
}

// Count returns the number of open subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish sends v to the subscribers of topic and to catch-all subscribers.
func (h *Hub) Publish(topic, name string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.seq++
	ev := Event{ID: h.seq, Topic: topic, Name: name, Data: b}
	targets := make([]*Subscription, 0)
	for _, set := range []map[string]bool{h.topics[topic], h.topics["*"]} {
		for id := range set {
			if s := h.subs[id]; s != nil {
				targets = append(targets, s)
			}
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func format(ev Event) string {
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, ev.Data)
}

// Serve streams the topics named by ?topic= (repeatable, default all) until
// the client disconnects.
func (h *Hub) Serve(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %s\n\n", strconv.Itoa(h.retryMs))
	flusher.Flush()

	sub := h.Subscribe(c.QueryArray("topic")...)
	defer sub.Close()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case ev := <-sub.Events():
			fmt.Fprint(c.Writer, format(ev))
			flusher.Flush()
		}
	}
}
