package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hpumc/family-mapper/internal/config"
	"github.com/hpumc/family-mapper/internal/dataset"
	"github.com/hpumc/family-mapper/internal/job"
	"github.com/hpumc/family-mapper/internal/tabular"
	"github.com/hpumc/family-mapper/pkg/geocode"
)

// maxUploadBytes caps multipart upload parsing.
const maxUploadBytes = 32 << 20

// serverEnv bundles the dependencies the HTTP handlers need.
type serverEnv struct {
	store    *dataset.Store
	registry *job.Registry
	linkBase string
	baseCtx  context.Context

	// newGeocoder builds a fresh rate-limited client per job: the backoff
	// wrapper carries per-job state and each job is limited independently.
	newGeocoder func() geocode.Client
}

// newServerEnv wires the environment from configuration. Jobs launched by
// handlers run on baseCtx.
func newServerEnv(cfg *config.Config, baseCtx context.Context) *serverEnv {
	geocodeCfg := cfg.Geocode
	return &serverEnv{
		store:    dataset.NewStore(cfg.Store.Root),
		registry: job.NewRegistry(),
		linkBase: cfg.Links.PersonBase,
		baseCtx:  baseCtx,
		newGeocoder: func() geocode.Client {
			base := geocode.NewClient(
				geocode.WithBaseURL(geocodeCfg.BaseURL),
				geocode.WithUserAgent(geocodeCfg.UserAgent),
				geocode.WithTimeout(geocodeCfg.Timeout()),
				geocode.WithMinDelay(geocodeCfg.MinDelay()),
			)
			return geocode.NewThrottled(base, geocode.BackoffConfig{
				TransientCooldown:      geocodeCfg.TransientCooldown(),
				MaxConsecutiveFailures: geocodeCfg.MaxConsecutiveFailures,
				FailureCooldown:        geocodeCfg.FailureCooldown(),
			})
		},
	}
}

// newRouter builds the HTTP API.
func (env *serverEnv) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/upload", env.handleUpload)
	r.Get("/progress/{id}", env.handleProgress)
	r.Post("/cancel_geocoding/{id}", env.handleCancel)

	r.Route("/datasets", func(r chi.Router) {
		r.Get("/", env.handleListDatasets)
		r.Post("/clear", env.handleClearDatasets)
		r.Route("/{name}", func(r chi.Router) {
			r.Delete("/", env.handleDeleteDataset)
			r.Get("/addresses", env.handleAddresses)
			r.Post("/export", env.handleExport)
			r.Get("/failed", env.handleDownload(dataset.FailedFile, "failed_addresses"))
			r.Get("/original", env.handleDownload(dataset.OriginalFile, "original"))
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleUpload admits an upload, saves it to a temp file, and launches the
// geocoding job. The response carries the job id for progress polling.
func (env *serverEnv) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("dataset_name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "dataset name is required")
		return
	}
	if !dataset.ValidName(name) {
		writeError(w, http.StatusBadRequest, "invalid dataset name")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file selected")
		return
	}
	defer file.Close() //nolint:errcheck

	if !tabular.AllowedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "only CSV and XLSX files are allowed")
		return
	}

	if env.store.Exists(name) {
		writeError(w, http.StatusBadRequest, "dataset name already exists")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmpPath, err := env.store.SaveTemp(file, ext)
	if err != nil {
		zap.L().Error("failed to save upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot save uploaded file")
		return
	}

	jobID := env.registry.NewJob()
	runner := job.NewRunner(env.store, env.newGeocoder(), env.registry, env.linkBase)
	// Jobs outlive the upload request; they run on the server's context so
	// shutdown interrupts an in-flight geocode call.
	go runner.Run(env.baseCtx, jobID, name, tmpPath)

	zap.L().Info("geocoding job started",
		zap.String("job_id", jobID),
		zap.String("dataset", name),
		zap.String("file", header.Filename),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"progress_id": jobID})
}

// handleProgress returns the snapshot for a job id, or a not_found status.
func (env *serverEnv) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := env.registry.Snapshot(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(job.StatusNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCancel flags a job for cancellation. The dataset name doubles as a
// confirmation that the caller is canceling what it thinks it is.
func (env *serverEnv) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		DatasetName string `json:"dataset_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DatasetName) == "" {
		writeError(w, http.StatusBadRequest, "dataset name is required")
		return
	}

	env.registry.RequestCancel(id)
	zap.L().Info("cancellation requested",
		zap.String("job_id", id),
		zap.String("dataset", req.DatasetName),
	)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "cancellation request sent"})
}

func (env *serverEnv) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	infos, err := env.store.List()
	if err != nil {
		zap.L().Error("failed to list datasets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot list datasets")
		return
	}
	if infos == nil {
		infos = []dataset.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": infos})
}

func (env *serverEnv) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !dataset.ValidName(name) {
		writeError(w, http.StatusBadRequest, "invalid dataset name")
		return
	}
	if err := env.store.Remove(name); err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dataset not found")
			return
		}
		zap.L().Error("failed to delete dataset", zap.String("dataset", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot delete dataset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (env *serverEnv) handleClearDatasets(w http.ResponseWriter, _ *http.Request) {
	if err := env.store.Clear(); err != nil {
		zap.L().Error("failed to clear datasets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot clear datasets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAddresses serves the valid-coordinate records of a dataset for the
// map client.
func (env *serverEnv) handleAddresses(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	records, err := env.store.LoadValid(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"addresses": records,
		"count":     len(records),
	})
}

// handleExport returns the records inside a circular region as a CSV
// attachment.
func (env *serverEnv) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Center []float64 `json:"center"` // [lat, lng]
		Radius float64   `json:"radius"` // meters
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Center) != 2 || req.Radius <= 0 {
		writeError(w, http.StatusBadRequest, "center [lat,lng] and positive radius are required")
		return
	}

	records, err := env.store.LoadValid(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}

	selected := dataset.SelectWithin(records, req.Center[0], req.Center[1], req.Radius)
	data, err := dataset.MarshalExport(selected, env.linkBase)
	if err != nil {
		zap.L().Error("failed to build export", zap.String("dataset", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cannot build export")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "selected_addresses_"+name+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleDownload serves a dataset artifact file as an attachment.
func (env *serverEnv) handleDownload(file, label string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		path, err := env.store.ArtifactPath(name, file)
		if err != nil {
			writeError(w, http.StatusNotFound, "no "+label+" file found for this dataset")
			return
		}
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", label+"_"+name+".csv"))
		http.ServeFile(w, r, path)
	}
}
