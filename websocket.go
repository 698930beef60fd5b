package lineproto

import (
	"net/http"

	"nhooyr.io/websocket"
)

// defaultWebSocketReadLimit caps a single WebSocket message.
const defaultWebSocketReadLimit = 1 << 20

// WebSocketOption configures the handler returned by WebSocketHandler.
type WebSocketOption func(*wsHandler)

// WebSocketOriginsOption sets the origin patterns accepted during the handshake.
// By default only same-origin requests are accepted.
func WebSocketOriginsOption(patterns ...string) WebSocketOption {
	return func(h *wsHandler) {
		h.origins = patterns
	}
}

// WebSocketReadLimitOption sets the maximum size of a single WebSocket message.
func WebSocketReadLimitOption(n int64) WebSocketOption {
	return func(h *wsHandler) {
		h.readLimit = n
	}
}

// WebSocketLoggerOption sets the logger used for handshake failures.
func WebSocketLoggerOption(logger Logger) WebSocketOption {
	return func(h *wsHandler) {
		h.logger = logger
	}
}

type wsHandler struct {
	handler   Handler
	origins   []string
	readLimit int64
	logger    Logger
}

// WebSocketHandler serves handler over WebSocket. The text messages of a
// WebSocket connection are concatenated into one byte stream, so frames may
// span or share messages exactly as they would span TCP segments.
// The request context is passed to handler; set http.Server.BaseContext to
// tie it to the server's lifetime.
func WebSocketHandler(handler Handler, opts ...WebSocketOption) http.Handler {
	h := &wsHandler{
		handler:   handler,
		readLimit: defaultWebSocketReadLimit,
		logger:    defaultLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket handshake failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	c.SetReadLimit(h.readLimit)

	ctx := r.Context()
	h.logger.Debug("accepted websocket connection", "remote_addr", r.RemoteAddr)
	h.handler.Handle(ctx, websocket.NetConn(ctx, c, websocket.MessageText))
}
