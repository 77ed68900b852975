// Package ws is the chat transport: websocket clients attach to a channel,
// their text feeds the game engine, and announcements fan out to everyone
// attached to that channel.
package ws

import (
	"context"
	"encoding/json"
	"sync"
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type announcementPayload struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type client struct {
	channel string
	send    chan []byte
}

// Hub is the channel-keyed broadcast registry. It implements the engine's
// Publisher collaborator.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish fans an announcement out to every client attached to the channel.
// Sends never block: a client whose queue stays full drops its oldest queued
// message, and if the slot is stolen by a concurrent publisher the new
// message is dropped for that client instead.
func (h *Hub) Publish(_ context.Context, channel, text string) error {
	data, err := json.Marshal(outboundMessage{
		Type:    "announcement",
		Payload: announcementPayload{Channel: channel, Text: text},
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.channel != channel {
			continue
		}
		select {
		case c.send <- data:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
