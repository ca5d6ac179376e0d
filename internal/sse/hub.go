// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse fans out server-sent events to connected operators.
package sse

import (
	"slices"
	"sync"
)

// clientBuffer is the number of events queued per client before events
// are dropped for that client.
const clientBuffer = 16

// Hub tracks connected clients per operator. Multiple tabs and browsers
// of the same operator each get their own channel.
type Hub struct {
	clients map[int64][]chan string
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64][]chan string),
	}
}

// Register adds a client for the operator and returns its event channel.
func (h *Hub) Register(userID int64) chan string {
	ch := make(chan string, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[userID] = append(h.clients[userID], ch)
	return ch
}

// Unregister removes and closes a client channel.
func (h *Hub) Unregister(userID int64, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	chans := slices.DeleteFunc(h.clients[userID], func(c chan string) bool {
		return c == ch
	})
	if len(chans) == 0 {
		delete(h.clients, userID)
	} else {
		h.clients[userID] = chans
	}

	close(ch)
}

// SendToUser sends a message to all clients of the operator.
func (h *Hub) SendToUser(userID int64, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[userID] {
		trySend(ch, message)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, chans := range h.clients {
		for _, ch := range chans {
			trySend(ch, message)
		}
	}
}

// Publish formats a named event and broadcasts it. It never blocks, so
// the onboarding pipeline can call it inline.
func (h *Hub) Publish(event, data string) {
	h.Broadcast(FormatEvent(event, data))
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, chans := range h.clients {
		n += len(chans)
	}
	return n
}

// UserCount returns the number of operators with active connections.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func trySend(ch chan string, message string) {
	select {
	case ch <- message:
	default:
		// Channel full, skip
	}
}
