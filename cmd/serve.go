package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/graph"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/news"
	"github.com/sells-group/connections-insights/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for status, settings, news and entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Api-Key"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", handleListStatus(env.Store))
	r.Delete("/status", handleClearStatus(env.Store))

	r.Get("/n", handleGetN(env.Store))
	r.Post("/n", handleSetN(env.Store))

	r.Get("/news", handleListNews(env.Store))
	r.Delete("/news", handlePurgeNews(env.Store))
	r.Post("/news/reprocess", handleReprocessNews(env.Store))

	r.Get("/entities", handleListEntities(env.Graph))
	r.Post("/entities/{id}/interested", handleUpdateInterested(env.Graph))

	return r
}

// statusView is one progress record with its derived fields, the shape the
// status page polls for.
type statusView struct {
	model.ProcessingStatus
	ProgressPercentage int    `json:"progress_percentage"`
	Status             string `json:"status"`
}

func handleListStatus(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses, err := st.ListStatuses(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		views := make([]statusView, 0, len(statuses))
		for _, s := range statuses {
			views = append(views, statusView{
				ProcessingStatus:   s,
				ProgressPercentage: s.Progress(),
				Status:             s.Status(),
			})
		}
		writeData(w, http.StatusOK, views)
	}
}

func handleClearStatus(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.ClearStatuses(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"message": "all records cleared"})
	}
}

func handleGetN(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := st.GetN(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]int{"N": n})
	}
}

func handleSetN(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			N *int `json:"N"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.N == nil || *body.N < 0 {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := st.SetN(r.Context(), *body.N); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"message": "N value updated successfully"})
	}
}

func handleListNews(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := st.ListNews(r.Context(), false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, records)
	}
}

func handlePurgeNews(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.PurgeNews(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"message": "news purged"})
	}
}

func handleReprocessNews(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := news.ReprocessAll(r.Context(), st)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]int{"queued": count})
	}
}

func handleListEntities(gc *graph.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := gc.Entities(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, entities)
	}
}

func handleUpdateInterested(gc *graph.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Interested string `json:"interested"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		flag := body.Interested
		if flag != graph.InterestedYes && flag != graph.InterestedNo {
			writeErrorMessage(w, http.StatusBadRequest, "interested must be YES or NO")
			return
		}
		id := chi.URLParam(r, "id")
		if err := gc.UpdateInterested(r.Context(), id, flag); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id, "interested": flag})
	}
}

// envelope is the uniform API response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, err error) {
	zap.L().Error("serve: request failed", zap.Error(err))
	writeJSON(w, code, envelope{Success: false, Error: err.Error()})
}

func writeErrorMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response failed", zap.Error(err))
	}
}
