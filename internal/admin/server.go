// Package admin exposes the runtime control plane as an MCP server over
// websocket: term-list mutation, cooldown clearing, and pipeline status.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/voicewarden/internal/detector"
	"github.com/voicewarden/internal/logging"
	"github.com/voicewarden/internal/moderation"
	"github.com/voicewarden/internal/voice"
)

// Server hosts the MCP control plane next to the bot.
type Server struct {
	addr      string
	detector  *detector.Detector
	cooldowns *moderation.Cooldowns
	scheduler *voice.Scheduler

	mcpServer *mcp.Server
	httpSrv   *http.Server
}

// NewServer wires the moderation state into MCP tools.
func NewServer(addr string, det *detector.Detector, cds *moderation.Cooldowns, sched *voice.Scheduler) *Server {
	s := &Server{
		addr:      addr,
		detector:  det,
		cooldowns: cds,
		scheduler: sched,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: "voicewarden-admin", Version: "v1"}, nil)
	s.registerTools()
	return s
}

type termsArgs struct {
	Terms []string `json:"terms" jsonschema:"terms to add or remove"`
}

type speakerArgs struct {
	SpeakerID string `json:"speaker_id" jsonschema:"speaker to clear"`
}

type emptyArgs struct{}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: "moderation_add_terms", Description: "add banned terms to the detector"},
		func(ctx context.Context, req *mcp.CallToolRequest, args termsArgs) (*mcp.CallToolResult, any, error) {
			s.detector.AddTerms(args.Terms...)
			logging.Infow("admin: terms added", "terms", args.Terms)
			return textResult(fmt.Sprintf("added %d terms", len(args.Terms))), nil, nil
		})

	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: "moderation_remove_terms", Description: "remove banned terms from the detector"},
		func(ctx context.Context, req *mcp.CallToolRequest, args termsArgs) (*mcp.CallToolResult, any, error) {
			s.detector.RemoveTerms(args.Terms...)
			logging.Infow("admin: terms removed", "terms", args.Terms)
			return textResult(fmt.Sprintf("removed %d terms", len(args.Terms))), nil, nil
		})

	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: "moderation_list_terms", Description: "list the current banned term set"},
		func(ctx context.Context, req *mcp.CallToolRequest, args emptyArgs) (*mcp.CallToolResult, any, error) {
			return textResult(strings.Join(s.detector.Terms(), "\n")), nil, nil
		})

	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: "cooldown_clear", Description: "clear a speaker's enforcement cooldown"},
		func(ctx context.Context, req *mcp.CallToolRequest, args speakerArgs) (*mcp.CallToolResult, any, error) {
			s.cooldowns.Clear(args.SpeakerID)
			logging.Infow("admin: cooldown cleared", "speaker_id", args.SpeakerID)
			return textResult("cleared"), nil, nil
		})

	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: "pipeline_status", Description: "scheduler and cooldown status snapshot"},
		func(ctx context.Context, req *mcp.CallToolRequest, args emptyArgs) (*mcp.CallToolResult, any, error) {
			status := map[string]any{
				"scheduler": s.scheduler.Stats(),
				"cooldowns": s.cooldowns.Snapshot(),
			}
			b, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return nil, nil, err
			}
			return textResult(string(b)), nil, nil
		})
}

// routes builds the control-plane mux: /health plus the MCP websocket
// endpoint. Sessions inherit ctx and end when it is cancelled.
func (s *Server) routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnw("ws upgrade failed", "err", err)
			return
		}
		t := newAdminTransport(conn, r.RemoteAddr)
		go func() {
			sess, err := s.mcpServer.Connect(ctx, t, nil)
			if err != nil {
				logging.Warnw("mcp connect error", "err", err)
				return
			}
			if err := sess.Wait(); err != nil {
				logging.Debugw("mcp session ended", "err", err)
			}
		}()
	})
	return mux
}

// Run serves the control plane until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.routes(ctx)}
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()
	logging.Infow("admin server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
