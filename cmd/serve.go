package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sightline-labs/visibility-cli/internal/model"
	"github.com/sightline-labs/visibility-cli/internal/schedule"
	"github.com/sightline-labs/visibility-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the recurrence sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched := schedule.New(env.Store, runTrigger(env), cfg.Schedule.SweepSpec)
		if err := sched.Start(ctx); err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/entities", func(r chi.Router) {
			r.Post("/", handleCreateEntity(env))
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", handleDeleteEntity(env))
				r.Post("/run", handleRun(ctx, env))
				r.Get("/status", handleStatus(env))
				r.Get("/leaderboard", handleLeaderboard(env))
				r.Get("/analysis", handleAnalysis(env))
				r.Get("/history", handleHistory(env))
				r.Post("/publish", handlePublish(env))
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func handleCreateEntity(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string `json:"name"`
			SourceURL   string `json:"source_url"`
			Category    string `json:"category"`
			Location    string `json:"location"`
			Tier        string `json:"tier"`
			AutoRefresh bool   `json:"auto_refresh"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" || req.SourceURL == "" {
			writeError(w, http.StatusBadRequest, "name and source_url are required")
			return
		}
		tier := model.Tier(req.Tier)
		if req.Tier == "" {
			tier = model.TierBasic
		}
		if !tier.Valid() {
			writeError(w, http.StatusBadRequest, "invalid tier")
			return
		}

		entity, err := env.Store.CreateEntity(r.Context(), model.TrackedEntity{
			Name:        req.Name,
			SourceURL:   req.SourceURL,
			Category:    req.Category,
			Location:    req.Location,
			Status:      model.EntityStatusPending,
			Tier:        tier,
			AutoRefresh: req.AutoRefresh,
		})
		if err != nil {
			serveError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entity)
	}
}

func handleDeleteEntity(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := env.Store.SoftDeleteEntity(r.Context(), chi.URLParam(r, "id")); err != nil {
			serveError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRun triggers the pipeline asynchronously; progress is polled through
// the status endpoint. The run outlives the request, so it gets the server
// context, not the request's.
func handleRun(ctx context.Context, env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := env.Store.GetEntity(r.Context(), id); err != nil {
			serveError(w, err)
			return
		}

		go func() {
			if _, err := env.Orchestrator.Run(ctx, id); err != nil {
				zap.L().Error("async run failed", zap.String("entity", id), zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"entity": id,
		})
	}
}

func handleStatus(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := env.Orchestrator.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleLeaderboard(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := env.Orchestrator.Leaderboard(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleAnalysis(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := env.Orchestrator.AnalysisView(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleHistory(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		history, err := env.Orchestrator.History(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			serveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func handlePublish(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := env.Orchestrator.Publish(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serveError(w, err)
			return
		}
		code := http.StatusOK
		if !result.Assessment.CanPublish {
			code = http.StatusUnprocessableEntity
		}
		writeJSON(w, code, result)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func serveError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
