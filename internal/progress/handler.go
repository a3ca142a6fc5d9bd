package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes progress tracking over HTTP using go-chi.
// Request and error metrics come from the router middleware; tracker
// metrics are recorded by the Service.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/videos/{video_id}", func(r chi.Router) {
		r.Put("/session", h.OpenSession)
		r.Delete("/session", h.ReleaseSession)
		r.Post("/samples", h.Sample)
		r.Post("/close", h.Close)
		r.Post("/seek", h.Seek)
		r.Post("/end", h.End)
		r.Post("/reset", h.Reset)
		r.Get("/progress", h.GetProgress)
	})
	r.Get("/progress", h.GetAggregate)
	r.Post("/progress/recompute", h.RecomputeAggregate)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)
}

type openRequest struct {
	Duration *float64 `json:"duration"`
}

type timeRequest struct {
	Time *float64 `json:"time"`
}

type seekRequest struct {
	From *float64 `json:"from"`
	To   *float64 `json:"to"`
}

type recomputeRequest struct {
	VideoIDs []VideoID `json:"videoIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OpenSession handles PUT /videos/{video_id}/session.
// Body: { "duration": 596.5 }.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	var req openRequest
	if err := decode(r, &req); err != nil || req.Duration == nil {
		h.badRequest(w, "duration is required", err)
		return
	}

	snap, err := h.svc.Open(r.Context(), id, *req.Duration)
	if err != nil {
		h.fail(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ReleaseSession handles DELETE /videos/{video_id}/session.
func (h *Handler) ReleaseSession(w http.ResponseWriter, r *http.Request) {
	h.svc.Release(videoID(r))
	w.WriteHeader(http.StatusNoContent)
}

// Sample handles POST /videos/{video_id}/samples.
// Body: { "time": 11 }.
func (h *Handler) Sample(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	var req timeRequest
	if err := decode(r, &req); err != nil || req.Time == nil {
		h.badRequest(w, "time is required", err)
		return
	}
	h.respond(w, id)(h.svc.Sample(r.Context(), id, *req.Time))
}

// Close handles POST /videos/{video_id}/close, sent on pause.
// Body: { "time": 12.5 }.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	var req timeRequest
	if err := decode(r, &req); err != nil || req.Time == nil {
		h.badRequest(w, "time is required", err)
		return
	}
	h.respond(w, id)(h.svc.Close(r.Context(), id, *req.Time))
}

// Seek handles POST /videos/{video_id}/seek.
// Body: { "from": 40, "to": 12 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	var req seekRequest
	if err := decode(r, &req); err != nil || req.From == nil || req.To == nil {
		h.badRequest(w, "from and to are required", err)
		return
	}
	h.respond(w, id)(h.svc.Seek(r.Context(), id, *req.From, *req.To))
}

// End handles POST /videos/{video_id}/end.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	h.respond(w, id)(h.svc.End(r.Context(), id))
}

// Reset handles POST /videos/{video_id}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	h.respond(w, id)(h.svc.Reset(r.Context(), id))
}

// GetProgress handles GET /videos/{video_id}/progress.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := videoID(r)
	h.respond(w, id)(h.svc.Progress(r.Context(), id))
}

// GetAggregate handles GET /progress.
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Aggregate(r.Context()))
}

// RecomputeAggregate handles POST /progress/recompute.
// Body (optional): { "videoIds": ["a", "b"] }.
func (h *Handler) RecomputeAggregate(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, "invalid body", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.RecomputeAggregate(r.Context(), req.VideoIDs))
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings(r.Context()))
}

// PutSettings handles PUT /settings. Omitted fields keep their current value.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.svc.Settings(r.Context())
	if err := decode(r, &settings); err != nil {
		h.badRequest(w, "invalid body", err)
		return
	}
	saved, err := h.svc.SaveSettings(r.Context(), settings)
	if err != nil {
		h.badRequest(w, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /healthz. A nil p always reports ok.
func Health(p Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				log.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// respond writes snap or maps err to a status code.
func (h *Handler) respond(w http.ResponseWriter, id VideoID) func(Snapshot, error) {
	return func(snap Snapshot, err error) {
		if err != nil {
			h.fail(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *Handler) fail(w http.ResponseWriter, id VideoID, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidVideoID), errors.Is(err, ErrInvalidDuration):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.log.Error("progress request failed",
			slog.String("video_id", string(id)),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		h.log.Debug("invalid request body", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func videoID(r *http.Request) VideoID {
	return VideoID(chi.URLParam(r, "video_id"))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
