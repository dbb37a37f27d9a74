// Package mcp exposes the persona's spend, decisions and cache over the
// Model Context Protocol on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/models"
)

// SpendSource reads recorded budget charges.
type SpendSource interface {
	TotalSince(ctx context.Context, since time.Time) (int64, error)
	Summary(ctx context.Context, since time.Time) ([]models.SpendSummary, error)
}

// DecisionSource reads the decision log.
type DecisionSource interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.Decision, error)
	Stats(ctx context.Context) ([]models.AuditStat, error)
}

// CacheStatter provides cache statistics.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// Options wires a Server. Decisions and Cache may be nil.
type Options struct {
	Spend     SpendSource
	Decisions DecisionSource
	Cache     CacheStatter
	DailyCap  int64
	Version   string
	Log       *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server answers MCP requests line by line.
type Server struct {
	spend     SpendSource
	decisions DecisionSource
	cache     CacheStatter
	dailyCap  int64
	version   string
	log       *zap.Logger
	now       func() time.Time
}

// New creates a Server over the given sources.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		spend:     opts.Spend,
		decisions: opts.Decisions,
		cache:     opts.Cache,
		dailyCap:  opts.DailyCap,
		version:   opts.Version,
		log:       opts.Log.Named("mcp"),
		now:       opts.Now,
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, failure(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "persona", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return result(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return failure(req.ID, CodeInvalidParams, "invalid params")
		}
		handler, ok := toolHandlers[params.Name]
		if !ok {
			return result(req.ID, errorResult("unknown tool: "+params.Name))
		}
		return result(req.ID, handler(ctx, s, params.Arguments))
	default:
		return failure(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
