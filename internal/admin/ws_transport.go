package admin

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voicewarden/internal/logging"
)

// adminConn adapts one accepted websocket into an MCP connection. Each
// control-plane client gets its own session; JSON-RPC frames map 1:1 onto
// websocket messages.
type adminConn struct {
	ws *websocket.Conn
	id string
}

func newAdminTransport(ws *websocket.Conn, sessionID string) mcp.Transport {
	return &adminConn{ws: ws, id: sessionID}
}

// Connect implements mcp.Transport. The websocket is already established by
// the HTTP upgrade, so the connection is itself.
func (c *adminConn) Connect(context.Context) (mcp.Connection, error) {
	return c, nil
}

func (c *adminConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	c.applyDeadline(ctx, c.ws.SetReadDeadline)
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeMessage(data)
}

func (c *adminConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.applyDeadline(ctx, c.ws.SetWriteDeadline)
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *adminConn) Close() error {
	logging.Debugw("admin client disconnected", "session_id", c.id)
	return c.ws.Close()
}

func (c *adminConn) SessionID() string { return c.id }

func (c *adminConn) applyDeadline(ctx context.Context, set func(time.Time) error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = set(dl)
	} else {
		_ = set(time.Time{})
	}
}
