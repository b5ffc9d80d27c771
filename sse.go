package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	subscriberBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// subscriber is one connected browser, over SSE or WebSocket.
type subscriber struct {
	ch      chan string
	sheetID string
}

// Broadcaster fans render events out to the subscribers of each sheet.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Subscribe adds a subscriber for a sheet.
func (b *Broadcaster) Subscribe(sheetID string) *subscriber {
	sub := &subscriber{
		ch:      make(chan string, subscriberBuffer),
		sheetID: sheetID,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Broadcast sends data to every subscriber of a sheet. Subscribers whose
// buffer is full miss the message; the next render replaces it anyway.
func (b *Broadcaster) Broadcast(sheetID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.sheetID != sheetID {
			continue
		}
		select {
		case sub.ch <- data:
		default:
		}
	}
}

// SubscriberCount returns the number of subscribers of a sheet.
func (b *Broadcaster) SubscriberCount(sheetID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for sub := range b.subs {
		if sub.sheetID == sheetID {
			n++
		}
	}
	return n
}

// ServeSSE streams the messages of a sheet until the request ends.
// initial, when non-empty, is sent first.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, sheetID, initial string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := b.Subscribe(sheetID)
	defer b.Unsubscribe(sub)

	if initial != "" {
		fmt.Fprintf(w, "data: %s\n\n", initial)
		flusher.Flush()
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
