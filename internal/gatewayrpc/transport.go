package gatewayrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway RPC surface is reached over a local/trusted transport
	// (the CLI's path to the running gateway), not a browser — origin
	// checking is the caller's network layer's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a WebSocket and serves Requests on it,
// one JSON text frame in, one JSON text frame out, until the connection
// closes or a read/write deadline trips.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		resp := Response{}
		if err := json.Unmarshal(raw, &req); err != nil {
			resp = errorResponse("", CodeInvalidRequest, fmt.Sprintf("malformed request: %v", err))
		} else {
			resp = s.Dispatch(r.Context(), req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// Caller is the CLI-side face of the gateway RPC surface: call a method by
// name with typed params, decode the result into result. hydrate.go depends
// only on this interface so its logic can be tested without a real socket.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// WSConn is a Caller backed by a single WebSocket connection. Calls are
// serialized: one request is in flight at a time, matched to its response
// by ID, which is all a short-lived CLI invocation ever needs.
type WSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DialWS opens a WebSocket connection to a running gateway's RPC endpoint.
func DialWS(ctx context.Context, url string) (*WSConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("gatewayrpc: dial %s: %w", url, err)
	}
	return &WSConn{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// Call implements Caller.
func (c *WSConn) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("gatewayrpc: marshal params: %w", err)
	}
	req := Request{ID: uuid.NewString(), Method: method, Params: raw}
	reqRaw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("gatewayrpc: marshal request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, reqRaw); err != nil {
		return fmt.Errorf("gatewayrpc: write: %w", err)
	}

	for {
		if deadline, ok := ctx.Deadline(); ok {
			c.conn.SetReadDeadline(deadline)
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gatewayrpc: read: %w", err)
		}
		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("gatewayrpc: decode result: %w", err)
			}
		}
		return nil
	}
}
