package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"reelhouse/internal/api"
	"reelhouse/internal/library"
	"reelhouse/internal/logging"
	"reelhouse/internal/metrics"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
)

const (
	maxBodyBytes       = 1 << 20
	defaultPruneWindow = 7 * 24 * time.Hour
)

func newRouter(d *Daemon) http.Handler {
	router := mux.NewRouter()
	router.Use(metrics.Middleware, requestIDMiddleware)

	router.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	// The callback carries its own HMAC token instead of the bearer token.
	router.HandleFunc("/library/callback", d.handleCallback).Methods(http.MethodPost)

	protected := router.NewRoute().Subrouter()
	protected.Use(authMiddleware(d.cfg.Paths.APIToken))
	protected.HandleFunc("/convert", d.handleConvert).Methods(http.MethodPost)
	protected.HandleFunc("/extractSubtitles", d.handleSubtitles(queue.KindExtractSubtitles)).Methods(http.MethodPost)
	protected.HandleFunc("/convertSubtitles", d.handleSubtitles(queue.KindConvertSubtitles)).Methods(http.MethodPost)

	protected.HandleFunc("/jobs", d.handleJobs).Methods(http.MethodGet)
	protected.HandleFunc("/jobs/prune", d.handlePrune).Methods(http.MethodPost)
	protected.HandleFunc("/jobs/{id:[0-9]+}", d.handleJob).Methods(http.MethodGet)

	protected.HandleFunc("/library/assets", d.handleAssets).Methods(http.MethodGet)
	protected.HandleFunc("/library/assets", d.handleAdmit).Methods(http.MethodPost)
	protected.HandleFunc("/library/assets/{id:[0-9]+}", d.handleAsset).Methods(http.MethodGet)
	protected.HandleFunc("/library/assets/{id:[0-9]+}", d.handleDeleteAsset).Methods(http.MethodDelete)
	protected.HandleFunc("/library/assets/{id:[0-9]+}/convert", d.handleConvertAsset).Methods(http.MethodPost)
	protected.HandleFunc("/library/assets/{id:[0-9]+}/duration", d.handleRefreshDuration).Methods(http.MethodPost)
	protected.HandleFunc("/library/triage", d.handleTriage).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "no such route", Kind: "not_found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed", Kind: "validation"})
	})
	return router
}

func (d *Daemon) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), d.logger), "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("route", metrics.RouteTemplate(r)),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	}
	writeJSON(w, status, api.ErrorResponse{Error: services.Details(err), Kind: services.Kind(err)})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "api", "decode", "request body is empty", nil)
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api", "parse id", "invalid id", nil)
	}
	return id, nil
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := d.Status(r.Context())
	state := "ok"
	for _, dep := range status.Dependencies {
		if !dep.Optional && !dep.Available {
			state = "degraded"
		}
	}
	if err := d.store.Ping(r.Context()); err != nil {
		state = "degraded"
	}
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:       state,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LibraryDB:    status.LibraryDB,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (d *Daemon) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req api.ConvertRequest
	if err := decodeBody(r, &req); err != nil {
		d.writeError(w, r, err)
		return
	}
	resp, err := d.SubmitConvert(r.Context(), req)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (d *Daemon) handleSubtitles(kind queue.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.InputRequest
		if err := decodeBody(r, &req); err != nil {
			d.writeError(w, r, err)
			return
		}
		resp, err := d.SubmitSubtitles(r.Context(), kind, req)
		if err != nil {
			d.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func parseJobFilter(r *http.Request) (queue.Filter, error) {
	var filter queue.Filter
	query := r.URL.Query()
	if lane := strings.TrimSpace(query.Get("lane")); lane != "" {
		switch queue.Lane(lane) {
		case queue.LaneConversion, queue.LaneSubtitles:
			filter.Lane = queue.Lane(lane)
		default:
			return filter, services.Wrap(services.ErrValidation, "api", "list jobs", "unknown lane "+lane, nil)
		}
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := queue.Status(strings.TrimSpace(part))
			valid := false
			for _, known := range queue.Statuses() {
				if status == known {
					valid = true
				}
			}
			if !valid {
				return filter, services.Wrap(services.ErrValidation, "api", "list jobs", "unknown status "+string(status), nil)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, services.Wrap(services.ErrValidation, "api", "list jobs", "invalid limit "+raw, nil)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (d *Daemon) handleJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	jobs, err := api.NewJobService(d.store).List(r.Context(), filter)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []api.Job{}
	}
	writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (d *Daemon) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	job, err := api.NewJobService(d.store).Describe(r.Context(), id)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if job == nil {
		d.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "get job", fmt.Sprintf("job %d not found", id), nil))
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (d *Daemon) handlePrune(w http.ResponseWriter, r *http.Request) {
	window := defaultPruneWindow
	if raw := strings.TrimSpace(r.URL.Query().Get("olderThan")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			d.writeError(w, r, services.Wrap(services.ErrValidation, "api", "prune jobs", "invalid olderThan "+raw, nil))
			return
		}
		window = parsed
	}
	removed, err := d.store.Prune(r.Context(), time.Now().Add(-window))
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	d.logger.Info("terminal jobs pruned",
		logging.String(logging.FieldEventType, "jobs_pruned"),
		logging.Int64("removed", removed),
		logging.Duration("older_than", window),
	)
	writeJSON(w, http.StatusOK, api.PruneResponse{Removed: removed})
}

func (d *Daemon) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	id, err := strconv.ParseInt(query.Get("id"), 10, 64)
	if err != nil || id <= 0 {
		d.writeError(w, r, services.Wrap(services.ErrValidation, "api", "callback", "invalid asset id", nil))
		return
	}
	var req api.CallbackRequest
	if err := decodeBody(r, &req); err != nil {
		d.writeError(w, r, err)
		return
	}
	if err := d.library.HandleCallback(r.Context(), id, query.Get("token"), req.Status); err != nil {
		d.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := d.library.List(r.Context())
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AssetListResponse{Assets: library.Views(assets)})
}

func (d *Daemon) handleAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	asset, err := d.library.Get(r.Context(), id)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AssetResponse{Asset: library.View(asset)})
}

func (d *Daemon) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req api.AdmitRequest
	if err := decodeBody(r, &req); err != nil {
		d.writeError(w, r, err)
		return
	}
	asset, err := d.library.Admit(r.Context(), req)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.AssetResponse{Asset: library.View(asset)})
}

func (d *Daemon) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if err := d.library.DeleteAsset(r.Context(), id); err != nil {
		d.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Daemon) handleConvertAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	var req api.AssetConvertRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			d.writeError(w, r, err)
			return
		}
	}
	asset, err := d.library.Submit(r.Context(), id, req.Tier)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, api.AssetResponse{Asset: library.View(asset)})
}

func (d *Daemon) handleRefreshDuration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	asset, err := d.library.RefreshDuration(r.Context(), id)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AssetResponse{Asset: library.View(asset)})
}

func (d *Daemon) handleTriage(w http.ResponseWriter, r *http.Request) {
	videos, err := d.library.ListUntriaged(r.Context())
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if videos == nil {
		videos = []string{}
	}
	writeJSON(w, http.StatusOK, api.UntriagedResponse{Videos: videos})
}
