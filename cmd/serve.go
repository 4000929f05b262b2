package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/usage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dossier HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
		var subject model.Subject
		if err := json.NewDecoder(req.Body).Decode(&subject); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if subject.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if subject.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if subject.Type == "" {
			subject.Type = model.SubjectOwner
		}

		result := env.Pipeline.Run(req.Context(), subject)
		env.Journal.Flush()

		zap.L().Info("api enrichment finished",
			zap.String("run_id", result.RunID),
			zap.String("subject", subject.Name),
			zap.String("status", string(result.Status)),
		)
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
		records, err := env.Store.ListRuns(req.Context(), store.RunFilter{
			Status:    model.RunStatus(req.URL.Query().Get("status")),
			SubjectID: req.URL.Query().Get("subject"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "runID"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/dossiers/{subjectID}", func(w http.ResponseWriter, req *http.Request) {
		d, err := env.Store.GetDossier(req.Context(), chi.URLParam(req, "subjectID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get dossier failed")
			return
		}
		if d == nil {
			writeError(w, http.StatusNotFound, "dossier not found")
			return
		}
		writeJSON(w, http.StatusOK, d)
	})

	r.Get("/usage", func(w http.ResponseWriter, req *http.Request) {
		type row struct {
			Counter  usage.Counter `json:"counter"`
			SpendUSD float64       `json:"spend_usd"`
			State    string        `json:"state"`
		}
		out := make(map[string]row)
		for name, c := range env.Ledger.Snapshot() {
			out[name] = row{
				Counter:  c,
				SpendUSD: env.Ledger.SpendUSD(name),
				State:    string(env.Ledger.State(name)),
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
