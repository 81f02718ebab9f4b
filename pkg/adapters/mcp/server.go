package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/s3conform/internal/expansion"
	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RunFunc executes a conformance run and returns one report per service.
type RunFunc func(ctx context.Context) ([]*domain.RunReport, error)

// SuiteInfo describes one authored suite file and its expansion.
type SuiteInfo struct {
	Service string   `json:"service" jsonschema_description:"Target service"`
	Name    string   `json:"name" jsonschema_description:"Suite file or sheet name"`
	Paths   []string `json:"paths" jsonschema_description:"Visible path of every linear suite"`
}

// ListSuitesResponse is the structured output of list_suites.
type ListSuitesResponse struct {
	Suites []SuiteInfo `json:"suites"`
}

// RunSummary is one service outcome of run_suites.
type RunSummary struct {
	ReportID string         `json:"report_id"`
	Service  string         `json:"service"`
	Summary  domain.Summary `json:"summary"`
}

// RunResponse is the structured output of run_suites.
type RunResponse struct {
	Runs []RunSummary `json:"runs"`
}

type listSuitesArgs struct {
	Service string `json:"service"`
}

// Server exposes suites and reports as an MCP Server.
type Server struct {
	loader    ports.SuiteLoader
	store     ports.ReportStore
	run       RunFunc
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. run may be nil, in which case
// run_suites is not registered.
func NewServer(loader ports.SuiteLoader, store ports.ReportStore, run RunFunc, version string) *Server {
	s := &Server{
		loader:    loader,
		store:     store,
		run:       run,
		mcpServer: server.NewMCPServer("s3conform-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		slog.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_suites
	s.mcpServer.AddTool(mcp.NewTool("list_suites",
		mcp.WithDescription("List authored suites and the linear paths they expand to."),
		mcp.WithString("service", mcp.Description("Only list suites of this service (optional)")),
		mcp.WithOutputSchema[ListSuitesResponse](),
	), mcp.NewStructuredToolHandler(s.handleListSuites))

	// TOOL: run_suites
	if s.run != nil {
		s.mcpServer.AddTool(mcp.NewTool("run_suites",
			mcp.WithDescription("Run every configured suite against the target service and store the reports."),
			mcp.WithOutputSchema[RunResponse](),
		), mcp.NewStructuredToolHandler(s.handleRunSuites))
	}

	// TOOL: get_report
	s.mcpServer.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Get a stored run report by ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Report ID")),
	), s.handleGetReport)
}

func (s *Server) handleListSuites(ctx context.Context, _ mcp.CallToolRequest, args listSuitesArgs) (ListSuitesResponse, error) {
	sources, err := s.loader.Load(ctx)
	if err != nil {
		return ListSuitesResponse{}, fmt.Errorf("load failed: %w", err)
	}
	out := ListSuitesResponse{Suites: []SuiteInfo{}}
	for _, src := range sources {
		if args.Service != "" && src.Service != args.Service {
			continue
		}
		info := SuiteInfo{Service: src.Service, Name: src.Name, Paths: []string{}}
		prefix := expansion.IDPrefix(src.Service, src.Name)
		for _, suite := range expansion.Linearize(prefix, src.Name, src.Definition) {
			info.Paths = append(info.Paths, suite.VisiblePath)
		}
		out.Suites = append(out.Suites, info)
	}
	return out, nil
}

func (s *Server) handleRunSuites(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (RunResponse, error) {
	reports, err := s.run(ctx)
	if err != nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	out := RunResponse{Runs: make([]RunSummary, 0, len(reports))}
	for _, r := range reports {
		out.Runs = append(out.Runs, RunSummary{ReportID: r.ID, Service: r.Service, Summary: r.Summary})
	}
	return out, nil
}

func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.store.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(report)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: s3conform://reports
	s.mcpServer.AddResource(mcp.NewResource("s3conform://reports", "Stored Run Reports",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", err)
		}
		sort.Strings(ids)
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "s3conform://reports",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
