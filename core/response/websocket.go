package response

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/flowkit/core/handler"
)

type wsConfig struct {
	upgrader     *websocket.Upgrader
	onConnect    func(context.Context, *websocket.Conn) error
	onDisconnect func(context.Context, *websocket.Conn)
	onError      func(context.Context, error)
}

type WebSocketOption func(*wsConfig)

func WithWSReadBuffer(size int) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.ReadBufferSize = size
	}
}

func WithWSWriteBuffer(size int) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.WriteBufferSize = size
	}
}

func WithWSHandshakeTimeout(timeout time.Duration) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.HandshakeTimeout = timeout
	}
}

func WithWSOriginCheck(fn func(r *http.Request) bool) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

func WithWSSubprotocols(protocols ...string) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.Subprotocols = protocols
	}
}

func WithWSOnConnect(fn func(context.Context, *websocket.Conn) error) WebSocketOption {
	return func(c *wsConfig) {
		c.onConnect = fn
	}
}

func WithWSOnDisconnect(fn func(context.Context, *websocket.Conn)) WebSocketOption {
	return func(c *wsConfig) {
		c.onDisconnect = fn
	}
}

func WithWSErrorHandler(fn func(context.Context, error)) WebSocketOption {
	return func(c *wsConfig) {
		c.onError = fn
	}
}

// WebSocket creates a response that upgrades the connection and hands it to
// messageHandler. Header and status mutations made by the pipeline are
// forwarded as upgrade response headers.
func WebSocket(messageHandler func(context.Context, *websocket.Conn) error, opts ...WebSocketOption) *handler.Response {
	cfg := &wsConfig{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	resp := &handler.Response{Status: http.StatusSwitchingProtocols, Header: http.Header{}}
	resp.Render = func(w http.ResponseWriter, r *http.Request) error {
		var header http.Header
		if len(resp.Header) > 0 {
			header = resp.Header.Clone()
		}
		conn, err := cfg.upgrader.Upgrade(w, r, header)
		if err != nil {
			// Upgrade has already written an HTTP error
			if cfg.onError != nil {
				cfg.onError(r.Context(), err)
			}
			return nil
		}
		defer func() {
			_ = conn.Close()
			if cfg.onDisconnect != nil {
				cfg.onDisconnect(r.Context(), conn)
			}
		}()

		if cfg.onConnect != nil {
			if err := cfg.onConnect(r.Context(), conn); err != nil {
				if cfg.onError != nil {
					cfg.onError(r.Context(), err)
				}
				return nil
			}
		}

		if err := messageHandler(r.Context(), conn); err != nil && cfg.onError != nil {
			cfg.onError(r.Context(), err)
		}
		return nil
	}
	return resp
}

// EchoWebSocket upgrades the connection and echoes every message back.
func EchoWebSocket(opts ...WebSocketOption) *handler.Response {
	return WebSocket(func(ctx context.Context, conn *websocket.Conn) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					return err
				}
				return nil
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return err
			}
		}
	}, opts...)
}
