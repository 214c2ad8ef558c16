// Package http provides the HTTP boundary for the synthesis service.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/speechgate/app"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxRequestBody bounds the synthesis request payload.
const maxRequestBody = 1 << 20 // 1MB

// ErrorResponseBody is the error envelope for all non-2xx responses.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SynthesizeRequest is the POST /api/synthesize payload.
type SynthesizeRequest struct {
	Text         string  `json:"text"`
	SSML         string  `json:"ssml"`
	VoiceID      string  `json:"voice_id"`
	LanguageCode string  `json:"language_code"`
	SpeakingRate float64 `json:"speaking_rate"`
	Pitch        float64 `json:"pitch"`
}

// VersionResponse is the /version payload.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// Handler wraps the synthesis service for HTTP handling.
type Handler struct {
	service *app.Synthesis
	ledger  *app.Ledger
	logger  zerolog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(service *app.Synthesis, ledger *app.Ledger, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		ledger:  ledger,
		logger:  logger,
	}
}

// Synthesize handles POST /api/synthesize. Exactly one of text or ssml must
// be set. The response body is the raw audio; billing details ride in
// headers so clients can stream the audio straight to disk.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	var req SynthesizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if (req.Text == "") == (req.SSML == "") {
		writeError(w, http.StatusBadRequest, "bad_request", "exactly one of text or ssml is required")
		return
	}

	text := req.Text
	markupMode := false
	if req.SSML != "" {
		text = req.SSML
		markupMode = true
	}

	result, err := h.service.Synthesize(ctx, synth.Request{
		Text:         text,
		VoiceID:      req.VoiceID,
		LanguageCode: req.LanguageCode,
		SpeakingRate: req.SpeakingRate,
		Pitch:        req.Pitch,
		MarkupMode:   markupMode,
		ClientKey:    clientKey(r),
		TraceID:      middleware.GetReqID(ctx),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Usage-Tier", result.Tier)
	w.Header().Set("X-Usage-Cost", strconv.FormatInt(result.Cost, 10))
	w.Header().Set("X-Usage-Unit", result.Unit)
	w.Write(result.Audio)
}

// Voices handles GET /api/voices.
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.service.Voices(r.Context(), r.URL.Query().Get("language_code"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// Usage handles GET /api/usage: per-tier usage against caps for the
// current period.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	period, report, err := h.ledger.Usage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ledger_error", "failed to read usage ledger")
		return
	}

	tiers := make(map[string]any, len(report))
	for name, d := range report {
		tiers[name] = map[string]any{
			"usage":     d.CurrentUsage,
			"limit":     d.Limit,
			"remaining": d.Remaining,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period,
		"tiers":  tiers,
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var admission *synth.AdmissionDeniedError
	if errors.As(err, &admission) {
		w.Header().Set("Retry-After", strconv.Itoa(admission.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "request rate limit exceeded")
		return
	}

	var quota *synth.QuotaExceededError
	if errors.As(err, &quota) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": ErrorDetail{Code: "quota_exceeded", Message: "monthly usage quota exceeded"},
			"quota": map[string]any{
				"tier":      quota.Tier,
				"usage":     quota.CurrentUsage,
				"limit":     quota.Limit,
				"remaining": quota.Remaining,
				"requested": quota.Requested,
			},
		})
		return
	}

	var timeout *synth.TimeoutError
	if errors.As(err, &timeout) {
		writeError(w, http.StatusGatewayTimeout, "provider_timeout", "speech provider timed out")
		return
	}

	var provider *synth.ProviderError
	if errors.As(err, &provider) {
		writeError(w, http.StatusBadGateway, "provider_error", provider.Message)
		return
	}

	var persist *synth.LedgerPersistError
	if errors.As(err, &persist) {
		writeError(w, http.StatusInternalServerError, "ledger_error", "failed to record usage")
		return
	}

	h.logger.Error().Err(err).Msg("unclassified service error")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// clientKey identifies the caller for rate limiting: the API key when one
// is presented, otherwise the remote IP (RealIP middleware has already
// resolved forwarding headers).
func clientKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return key
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

// HealthHandler provides liveness and readiness endpoints.
type HealthHandler struct{}

// Liveness returns a simple liveness check.
func (HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: "dev", Service: "speechgate"})
}

// RouterConfig holds optional router configuration.
type RouterConfig struct {
	MetricsHandler http.Handler // Defaults to promhttp.Handler()
	RequestTimeout time.Duration
}

// NewRouter builds the service router.
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", HealthHandler{}.Liveness)
	r.Get("/health/live", HealthHandler{}.Liveness)
	r.Get("/version", Version)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/api/synthesize", h.Synthesize)
	r.Get("/api/voices", h.Voices)
	r.Get("/api/usage", h.Usage)

	return r
}

// NewLoggingMiddleware logs completed requests, skipping health and
// metrics noise.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
