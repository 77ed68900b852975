package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mitjasha/Qui3zBot/internal/domain"
	"github.com/mitjasha/Qui3zBot/internal/game"
)

const defaultRounds = 10

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

// Handler upgrades websocket connections and routes inbound answers and
// slash commands into the engine.
type Handler struct {
	engine   *game.Engine
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(engine *game.Engine, hub *Hub) *Handler {
	return &Handler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS attaches a client to a channel. Required query parameters:
// channel, userId, name.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	userID := r.URL.Query().Get("userId")
	name := r.URL.Query().Get("name")
	if channel == "" || userID == "" {
		http.Error(w, "channel and userId are required", http.StatusBadRequest)
		return
	}
	if name == "" {
		name = userID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade: %v", err)
		return
	}

	c := &client{channel: channel, send: make(chan []byte, 16)}
	h.hub.add(c)

	go func() {
		for data := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	defer func() {
		h.hub.remove(c)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		var body textPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &body); err != nil {
				continue
			}
		}
		ctx := r.Context()
		switch msg.Type {
		case "answer":
			if _, err := h.engine.Submit(ctx, channel, userID, name, body.Text); err != nil {
				log.Printf("ws: submit: %v", err)
			}
		case "command":
			h.handleCommand(ctx, channel, body.Text)
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, channel, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]
	// Accept both "/top game" and "/top_game" spellings.
	if cmd == "top" && len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "game", "day", "week":
			cmd = "top_" + strings.ToLower(args[0])
			args = args[1:]
		}
	}

	if cmd == "bind" {
		if err := h.engine.Bind(ctx, channel); err != nil {
			log.Printf("ws: bind: %v", err)
			h.reply(ctx, channel, "Could not bind to this channel, try again.")
			return
		}
		h.reply(ctx, channel, "✅ Bound to this channel. Games run here now.")
		return
	}

	bound := h.engine.Channel()
	if bound == "" {
		h.reply(ctx, channel, "I am not bound to a channel yet. Send /bind first.")
		return
	}
	if channel != bound {
		return
	}

	switch cmd {
	case "start":
		h.startGame(ctx, channel, args)
	case "stop":
		if err := h.engine.StopGame(ctx); err != nil {
			if errors.Is(err, domain.ErrNoGame) {
				h.reply(ctx, channel, "No game is running.")
				return
			}
			log.Printf("ws: stop: %v", err)
		}
	case "skip":
		if err := h.engine.Skip(ctx); err != nil && !errors.Is(err, domain.ErrNoGame) {
			log.Printf("ws: skip: %v", err)
		}
	case "tags":
		h.reply(ctx, channel, listing("📚 Tags", append([]string{"all"}, h.engine.Tags()...)))
	case "categories":
		h.reply(ctx, channel, listing("🗂 Categories", h.engine.Categories()))
	case "top":
		h.board(ctx, channel, h.engine.LifetimeBoard)
	case "top_game":
		board, err := h.engine.GameBoard(ctx)
		if errors.Is(err, domain.ErrNoGame) {
			h.reply(ctx, channel, "No game is running.")
			return
		}
		if err != nil {
			log.Printf("ws: board: %v", err)
			return
		}
		h.reply(ctx, channel, board)
	case "top_day":
		h.board(ctx, channel, h.engine.DayBoard)
	case "top_week":
		h.board(ctx, channel, h.engine.WeekBoard)
	case "help":
		h.reply(ctx, channel, helpText)
	}
}

func (h *Handler) startGame(ctx context.Context, channel string, args []string) {
	scope := "all"
	rounds := defaultRounds
	if len(args) > 0 {
		scope = args[0]
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			rounds = n
		}
	}
	sc, err := h.engine.ResolveScope(scope)
	if err != nil {
		h.reply(ctx, channel, "Unknown tag or category. See /tags and /categories.")
		return
	}
	err = h.engine.StartGame(ctx, sc, rounds)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGameRunning):
		h.reply(ctx, channel, "A game is already running. /stop it first.")
	default:
		log.Printf("ws: start: %v", err)
		h.reply(ctx, channel, "Could not start the game.")
	}
}

func (h *Handler) board(ctx context.Context, channel string, fn func(context.Context) (string, error)) {
	board, err := fn(ctx)
	if err != nil {
		log.Printf("ws: board: %v", err)
		return
	}
	h.reply(ctx, channel, board)
}

func (h *Handler) reply(ctx context.Context, channel, text string) {
	if err := h.hub.Publish(ctx, channel, text); err != nil {
		log.Printf("ws: reply: %v", err)
	}
}

func listing(title string, names []string) string {
	if len(names) == 0 {
		return title + ": none"
	}
	return title + ": " + strings.Join(names, ", ")
}

const helpText = `Commands:
/start [tag|category] [rounds] start a game
/stop stop the current game
/skip skip the current question
/tags list question tags
/categories list question categories
/top /top_game /top_day /top_week leaderboards`
