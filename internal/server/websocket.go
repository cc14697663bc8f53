package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Validate origin before accepting connection
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	// Origin was checked above against the configured allow list.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.hubCtx, cancel)
	defer stop()

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump(ctx)
	client.readPump(ctx)
}

// checkOrigin validates the request origin for security
func (s *PreviewServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Reject connections without origin header for security
		return false
	}
	return s.isAllowedOrigin(origin)
}

func (s *PreviewServer) isAllowedOrigin(origin string) bool {
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	// First check scheme - only allow http/https
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if slices.Contains(s.config.Server.AllowedOrigins, origin) {
		return true
	}

	hostname := originURL.Hostname()
	switch hostname {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	if s.config.Server.Host != "" && hostname == s.config.Server.Host {
		return true
	}

	// The listener may have been bound to an ephemeral port.
	if addr := s.Addr(); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host == hostname {
			return true
		}
	}
	return originURL.Host == fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// runWebSocketHub manages WebSocket connections
func (s *PreviewServer) runWebSocketHub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-s.register:
			s.clientsMutex.Lock()
			s.clients[client.conn] = client
			count := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(ctx, "WebSocket client connected", "clients", count)

		case conn := <-s.unregister:
			s.clientsMutex.Lock()
			if client, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				close(client.send)
			}
			count := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(ctx, "WebSocket client disconnected", "clients", count)

		case message := <-s.broadcast:
			s.clientsMutex.Lock()
			for conn, client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Slow clients are dropped rather than stalling the hub.
					delete(s.clients, conn)
					close(client.send)
					go conn.Close(websocket.StatusPolicyViolation, "client too slow")
				}
			}
			s.clientsMutex.Unlock()
		}
	}
}

// readPump drains client messages until the connection closes. Browsers
// never send anything meaningful, so reads only detect disconnects.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.server.unregister <- c.conn:
		case <-c.server.hubCtx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
