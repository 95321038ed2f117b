package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/atelierink/sketchd/cmdqueue"
	"github.com/atelierink/sketchd/dbopen"
	"github.com/atelierink/sketchd/history"
	"github.com/atelierink/sketchd/orchestrator"
	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/planner"
	"github.com/atelierink/sketchd/resolve"
	"github.com/atelierink/sketchd/scene"
	"github.com/atelierink/sketchd/scenestore"
	"github.com/atelierink/sketchd/shield"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging. Stdio MCP owns stdout, so logs always go to stderr.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Database.
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := shield.Init(db); err != nil {
		slog.Error("shield init", "error", err)
		os.Exit(1)
	}

	// Scene store.
	store := scenestore.New(db, scenestore.Options{
		Bounds: scene.Bounds{Width: cfg.CanvasWidth, Height: cfg.CanvasHeight},
		Logger: logger,
	})
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("scene schema", "error", err)
		os.Exit(1)
	}

	// Command history.
	hist := history.New(db, history.Options{Cap: cfg.HistoryCap})
	if err := hist.EnsureSchema(ctx); err != nil {
		slog.Error("history schema", "error", err)
		os.Exit(1)
	}

	// Reasoning service client.
	var plannerOpts []planner.Option
	if cfg.PlannerToken != "" {
		plannerOpts = append(plannerOpts, planner.WithToken(cfg.PlannerToken))
	}
	plannerOpts = append(plannerOpts, planner.WithLogger(logger))
	svc := planner.NewHTTP(cfg.PlannerURL, plannerOpts...)

	// Orchestrator.
	orch := orchestrator.New(orchestrator.Config{
		Service: svc,
		Mutator: store,
		History: hist,
		Logger:  logger,
	})

	// Async command queue.
	queue := cmdqueue.New(db, cmdqueue.Options{Logger: logger})
	if err := queue.EnsureSchema(ctx); err != nil {
		slog.Error("queue schema", "error", err)
		os.Exit(1)
	}
	go queue.Run(ctx, queueHandler(orch))

	// Optional MCP over stdio.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "sketchd",
			Version: "1.0.0",
		}, nil)
		orch.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(db) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthPassword != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AuthPassword), bcrypt.DefaultCost)
			if err != nil {
				slog.Error("hash auth password", "error", err)
				os.Exit(1)
			}
			r.Use(requirePassword(hash))
		}

		r.Post("/v1/commands", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Prompt string `json:"prompt"`
				Queued bool   `json:"queued"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if req.Queued {
				id, err := queue.Enqueue(r.Context(), req.Prompt)
				if err != nil {
					writeError(w, 500, err)
					return
				}
				writeJSON(w, 202, map[string]string{"job_id": id})
				return
			}
			outcome, err := orch.SubmitCommand(r.Context(), req.Prompt)
			if err != nil {
				writeCommandError(w, err)
				return
			}
			writeJSON(w, 200, outcome)
		})

		r.Get("/v1/jobs/{jobID}", func(w http.ResponseWriter, r *http.Request) {
			job, err := queue.Get(r.Context(), chi.URLParam(r, "jobID"))
			if errors.Is(err, cmdqueue.ErrNotFound) {
				writeError(w, 404, err)
				return
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, job)
		})

		r.Post("/v1/clarification", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Option string `json:"option"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			outcome, err := orch.ResolveClarification(r.Context(), req.Option)
			if err != nil {
				writeCommandError(w, err)
				return
			}
			writeJSON(w, 200, outcome)
		})

		r.Delete("/v1/clarification", func(w http.ResponseWriter, _ *http.Request) {
			if err := orch.CancelClarification(); err != nil {
				writeCommandError(w, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "cancelled"})
		})

		r.Get("/v1/shapes", func(w http.ResponseWriter, r *http.Request) {
			doc, err := store.Snapshot(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, doc)
		})

		r.Get("/v1/history", func(w http.ResponseWriter, r *http.Request) {
			filter := history.FilterAll
			switch r.URL.Query().Get("status") {
			case "success":
				filter = history.FilterSuccess
			case "failed":
				filter = history.FilterFailed
			}
			entries, err := hist.List(r.Context(), filter, r.URL.Query().Get("search"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, entries)
		})

		r.Delete("/v1/history/{entryID}", func(w http.ResponseWriter, r *http.Request) {
			if err := hist.Delete(r.Context(), chi.URLParam(r, "entryID")); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted"})
		})

		r.Delete("/v1/history", func(w http.ResponseWriter, r *http.Request) {
			if err := hist.Clear(r.Context()); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "cleared"})
		})

		r.Get("/v1/colors", func(w http.ResponseWriter, r *http.Request) {
			colors, err := hist.RecentColors(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, colors)
		})
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// queueHandler adapts the orchestrator to the async queue. A command that
// needs clarification cannot wait for a user on this path, so it fails
// terminally with code clarification_required.
func queueHandler(orch *orchestrator.Orchestrator) cmdqueue.Handler {
	return func(ctx context.Context, job *cmdqueue.Job) ([]byte, error) {
		outcome, err := orch.SubmitCommand(ctx, job.Prompt)
		if err != nil {
			if errors.Is(err, orchestrator.ErrBusy) {
				return nil, err // retried after the in-flight command finishes
			}
			var vErr *plan.ValidationError
			if errors.As(err, &vErr) {
				return nil, &cmdqueue.FailError{Code: "validation", Message: err.Error()}
			}
			return nil, &cmdqueue.FailError{Code: "execution", Message: err.Error()}
		}
		if outcome.Clarification != nil {
			_ = orch.CancelClarification()
			return nil, &cmdqueue.FailError{
				Code:    "clarification_required",
				Message: outcome.Clarification.Question,
			}
		}
		return json.Marshal(outcome)
	}
}

// requirePassword gates routes behind "Authorization: Bearer <password>".
func requirePassword(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				writeJSON(w, 401, map[string]string{"error": "authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeCommandError maps orchestrator errors to HTTP statuses.
func writeCommandError(w http.ResponseWriter, err error) {
	var vErr *plan.ValidationError
	var rErr *resolve.ResolutionError
	var sErr *planner.ServiceError
	switch {
	case errors.As(err, &vErr):
		writeError(w, 400, err)
	case errors.Is(err, orchestrator.ErrBusy):
		writeError(w, 409, err)
	case errors.Is(err, orchestrator.ErrNoClarification):
		writeError(w, 404, err)
	case errors.As(err, &rErr):
		writeError(w, 422, err)
	case errors.As(err, &sErr):
		switch sErr.Code {
		case planner.CodeAuthRequired:
			writeError(w, 401, err)
		case planner.CodeRateLimited:
			writeError(w, 429, err)
		default:
			writeError(w, 502, err)
		}
	default:
		writeError(w, 500, err)
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
