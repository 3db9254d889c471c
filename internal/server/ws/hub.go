// Package ws streams analysis progress to WebSocket clients and relays
// completed-analysis broadcasts from the signal bus.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Message types sent to clients.
const (
	TypeHello     = "hello"
	TypeEvent     = "event"
	TypeError     = "error"
	TypeBroadcast = "broadcast"
)

var errClientGone = errors.New("ws: client disconnected")

// Analyzer runs a single analysis, reporting progress through emit.
type Analyzer interface {
	Analyze(ctx context.Context, in service.Input, emit service.Emitter) (domain.Report, error)
}

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Payload any    `json:"payload"`
}

// request is the JSON frame a client sends. Action is "analyze",
// "subscribe" or "unsubscribe".
type request struct {
	Action      string             `json:"action"`
	MarketURL   string             `json:"market_url"`
	Depth       domain.Depth       `json:"depth"`
	Perspective domain.Perspective `json:"perspective"`
	Channels    []string           `json:"channels"`
}

// Config tunes the hub.
type Config struct {
	// Channels are the bus channels relayed to subscribed clients.
	Channels []string
	// AnalyzeTimeout bounds each analysis started over the socket.
	AnalyzeTimeout time.Duration
	// AllowedOrigins restricts the handshake Origin; empty or "*" allows all.
	AllowedOrigins []string
	// OnConnChange is called with +1/-1 as clients come and go.
	OnConnChange func(delta int)
}

// Hub tracks connected clients. Each client may run one analysis at a time
// and receives bus broadcasts for the channels it subscribed to.
type Hub struct {
	analyzer  Analyzer
	bus       domain.SignalBus
	cfg       Config
	upgrader  websocket.Upgrader
	clients   map[*client]bool
	broadcast chan broadcastMsg
	mu        sync.RWMutex
	logger    *slog.Logger
	startedAt time.Time
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// NewHub creates a Hub. bus may be nil, in which case nothing is relayed.
func NewHub(analyzer Analyzer, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{service.AnalysisChannel}
	}
	if cfg.OnConnChange == nil {
		cfg.OnConnChange = func(int) {}
	}
	h := &Hub{
		analyzer:  analyzer,
		bus:       bus,
		cfg:       cfg,
		clients:   make(map[*client]bool),
		broadcast: make(chan broadcastMsg, 256),
		logger:    logger.With(slog.String("component", "ws_hub")),
		startedAt: time.Now().UTC(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run relays bus messages until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range h.cfg.Channels {
			go h.subscribeToChannel(ctx, ch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
				h.cfg.OnConnChange(-1)
			}
			h.mu.Unlock()
			return ctx.Err()

		case msg := <-h.broadcast:
			frame, err := json.Marshal(Envelope{
				Type:    TypeBroadcast,
				Channel: msg.channel,
				Payload: json.RawMessage(msg.data),
			})
			if err != nil {
				h.logger.Warn("ws: dropping malformed broadcast",
					slog.String("channel", msg.channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.channel) {
					continue
				}
				select {
				case c.send <- frame:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribeToChannel forwards one bus channel into the broadcast loop.
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed to channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and starts the client pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		subs:   make(map[string]bool),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, ch := range h.cfg.Channels {
		c.subs[ch] = true
	}

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.cfg.OnConnChange(1)
	h.logger.Info("ws: client connected", slog.Int("total_clients", total))

	c.enqueue(Envelope{Type: TypeHello, Payload: map[string]any{
		"channels":       h.cfg.Channels,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
	}})

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.cfg.OnConnChange(-1)
		h.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// client
// ---------------------------------------------------------------------------

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	// done is closed once; send is never closed so late emitters cannot panic.
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.RWMutex
	subs      map[string]bool
	analyzing bool
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// readPump handles client requests until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var req request
		if err := json.Unmarshal(message, &req); err != nil {
			c.sendError("malformed request: " + err.Error())
			continue
		}
		c.handle(req)
	}
}

func (c *client) handle(req request) {
	switch req.Action {
	case "analyze":
		c.startAnalysis(service.Input{
			MarketURL:   req.MarketURL,
			Depth:       req.Depth,
			Perspective: req.Perspective,
		})
	case "subscribe":
		c.mu.Lock()
		for _, ch := range req.Channels {
			c.subs[ch] = true
		}
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		for _, ch := range req.Channels {
			delete(c.subs, ch)
		}
		c.mu.Unlock()
	default:
		c.sendError("unknown action " + `"` + req.Action + `"`)
	}
}

// startAnalysis runs one analysis in the background, streaming every event
// to the client. A second request while one is running is rejected.
func (c *client) startAnalysis(in service.Input) {
	c.mu.Lock()
	if c.analyzing {
		c.mu.Unlock()
		c.sendError("an analysis is already running on this connection")
		return
	}
	c.analyzing = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.analyzing = false
			c.mu.Unlock()
		}()

		ctx := c.ctx
		if t := c.hub.cfg.AnalyzeTimeout; t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}

		emit := service.EmitterFunc(func(ctx context.Context, evt service.Event) error {
			return c.deliver(ctx, Envelope{Type: TypeEvent, Payload: evt})
		})
		if _, err := c.hub.analyzer.Analyze(ctx, in, emit); err != nil {
			if errors.Is(err, errClientGone) {
				return
			}
			c.hub.logger.WarnContext(ctx, "ws: analysis failed",
				slog.String("market_url", in.MarketURL),
				slog.String("error", err.Error()),
			)
			c.sendError(err.Error())
		}
	}()
}

// deliver blocks until the frame is queued, the client leaves or ctx ends.
// Analysis events are never dropped, unlike broadcasts.
func (c *client) deliver(ctx context.Context, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClientGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue queues a frame without blocking.
func (c *client) enqueue(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) sendError(msg string) {
	c.enqueue(Envelope{Type: TypeError, Payload: map[string]string{"error": msg}})
}

// isSubscribed checks whether the client is subscribed to the given channel.
// A trailing "*" subscribes to a prefix.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

// writePump writes queued frames as text messages and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
