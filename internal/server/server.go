// Package server exposes the live note graph and its derived hierarchy over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	nferrors "github.com/nestfold/nestfold/pkg/errors"
	"github.com/nestfold/nestfold/pkg/forest"
	"github.com/nestfold/nestfold/pkg/graph"
	"github.com/nestfold/nestfold/pkg/observability"
	"github.com/nestfold/nestfold/pkg/render"
)

// Config holds the server's collaborators.
type Config struct {
	Store     *graph.Store
	Processor *forest.Processor
	Addr      string
	Logger    *log.Logger
}

// Server serves the note graph API.
type Server struct {
	store     *graph.Store
	processor *forest.Processor
	addr      string
	logger    *log.Logger
}

// New creates a server. A nil logger falls back to log.Default().
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:     cfg.Store,
		processor: cfg.Processor,
		addr:      cfg.Addr,
		logger:    logger,
	}
}

// Routes builds the chi router. Exposed separately from Serve so tests can
// drive the handlers through httptest without binding a port.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Get("/graph.dot", s.handleGraphDOT)
		r.Get("/graph.svg", s.handleGraphSVG)
		r.Get("/nodes/{id}", s.handleNode)
		r.Post("/rebuild", s.handleRebuild)
	})
	return r
}

// Serve runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// observe logs each request and feeds the HTTP hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed", elapsed)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  s.store.Ready(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := graph.WriteGraph(s.store, w); err != nil {
		s.logger.Error("failed to write graph", "error", err)
	}
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	fmt.Fprint(w, render.ToDOT(s.store, render.Options{
		Detailed:       r.URL.Query().Get("detailed") == "true",
		ShowStructural: r.URL.Query().Get("structural") == "true",
	}))
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	dot := render.ToDOT(s.store, render.Options{})
	svg, err := render.RenderSVG(dot)
	if err != nil {
		s.logger.Error("failed to render SVG", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Snapshot so the node and its child list come from the same point
	// between rebuild batches.
	snap := s.store.Snapshot()
	n, ok := snap.NodeIndex()[id]
	if !ok {
		writeError(w, http.StatusNotFound, nferrors.New(nferrors.ErrCodeNodeNotFound, "node %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       n.ID,
		"path":     n.Path,
		"label":    n.DisplayLabel(),
		"parent":   n.Parent,
		"depth":    n.Depth,
		"tags":     n.Tags,
		"meta":     n.Meta,
		"children": snap.ChildIndex()[id],
	})
}

// rebuildResponse is the JSON shape of a build report. NodeError carries a
// raw error, so the report is flattened here instead of marshalled directly.
type rebuildResponse struct {
	BuildID      string            `json:"build_id"`
	Nodes        int               `json:"nodes"`
	Attached     int               `json:"attached"`
	Placeholders []string          `json:"placeholders"`
	TaggedEdges  int               `json:"tagged_edges"`
	Skipped      int               `json:"skipped"`
	Errors       map[string]string `json:"errors,omitempty"`
	Roots        int               `json:"roots"`
	MaxDepth     int               `json:"max_depth"`
	ElapsedMS    int64             `json:"elapsed_ms"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.processor.Process(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if nferrors.GetCode(err) == nferrors.ErrCodeReadyTimeout {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}

	resp := rebuildResponse{
		BuildID:      report.BuildID,
		Nodes:        report.Nodes,
		Attached:     report.Attached,
		Placeholders: report.Placeholders,
		TaggedEdges:  report.TaggedEdges,
		Skipped:      report.Skipped,
		Roots:        report.Depth.Roots,
		MaxDepth:     report.Depth.MaxDepth,
		ElapsedMS:    report.Elapsed.Milliseconds(),
	}
	if len(report.Errors) > 0 {
		resp.Errors = make(map[string]string, len(report.Errors))
		for _, ne := range report.Errors {
			resp.Errors[ne.NodeID] = nferrors.UserMessage(ne.Err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": nferrors.UserMessage(err),
		"code":  string(nferrors.GetCode(err)),
	})
}
