package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/s3conform/pkg/domain"
)

// allServices is the topic every event is also broadcast to.
const allServices = ""

// StreamManager handles active SSE connections, keyed by service.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(service string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[service]; !ok {
		sm.subscribers[service] = make(map[chan<- string]struct{})
	}
	sm.subscribers[service][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[service]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, service)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(service string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, topic := range []string{service, allServices} {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				slog.Warn("SSE: client buffer full, dropping message", "service", service)
			}
		}
		if service == allServices {
			break
		}
	}
}

type streamEvent struct {
	Kind  string `json:"kind"`
	Event any    `json:"event"`
	Error string `json:"error,omitempty"`
}

// Hooks returns lifecycle hooks that broadcast run progress to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	send := func(service string, ev streamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		sm.Broadcast(service, string(data))
	}
	return domain.LifecycleHooks{
		OnSuiteStart: func(_ context.Context, e *domain.SuiteEvent) {
			send(e.Service, streamEvent{Kind: "suite_start", Event: e})
		},
		OnSuiteFinish: func(_ context.Context, e *domain.SuiteEvent) {
			send(e.Service, streamEvent{Kind: "suite_finish", Event: e})
		},
		OnCaseFinish: func(_ context.Context, e *domain.CaseEvent) {
			ev := streamEvent{Kind: "case_finish", Event: e}
			if e.Err != nil {
				ev.Error = e.Err.Error()
			}
			send(e.Service, ev)
		},
	}
}

// SubscribeEvents handles the GET /events request (SSE). The optional
// service query parameter narrows the stream to one service.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	service := r.URL.Query().Get("service")
	ch, cancel := s.Streams.Subscribe(service)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "service", service)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
