package app

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/speechgate/adapters/metrics"
	"github.com/artpar/speechgate/domain/cost"
	"github.com/artpar/speechgate/domain/ratelimit"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/artpar/speechgate/ports"
	"github.com/rs/zerolog"
)

// Synthesis is the core request pipeline: admission, cost estimation,
// quota check, resilient provider call, usage commit.
type Synthesis struct {
	provider ports.SpeechProvider
	limiter  ports.RateLimitStore
	ledger   *Ledger
	invoker  *Invoker
	clock    ports.Clock
	ids      ports.IDGenerator
	log      zerolog.Logger
	metrics  *metrics.Collector

	// mu guards the settings swapped on config reload.
	mu       sync.RWMutex
	limitCfg ratelimit.Config
	limitOn  bool
	registry voice.Registry
}

// SynthesisConfig configures the Synthesis service.
type SynthesisConfig struct {
	Provider  ports.SpeechProvider
	Limiter   ports.RateLimitStore // Required when RateLimit.MaxRequests > 0
	RateLimit ratelimit.Config     // Zero MaxRequests disables admission control
	Registry  voice.Registry
	Ledger    *Ledger
	Invoker   *Invoker
	Clock     ports.Clock
	IDs       ports.IDGenerator // Optional; assigns trace IDs when the caller didn't
	Logger    zerolog.Logger
	Metrics   *metrics.Collector // Optional
}

// NewSynthesis creates the synthesis service.
func NewSynthesis(cfg SynthesisConfig) *Synthesis {
	return &Synthesis{
		provider: cfg.Provider,
		limiter:  cfg.Limiter,
		limitCfg: cfg.RateLimit,
		limitOn:  cfg.RateLimit.MaxRequests > 0 && cfg.Limiter != nil,
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		invoker:  cfg.Invoker,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// ApplyConfig swaps the admission settings and tier registry, so a config
// reload takes effect for subsequent requests without a restart. In-flight
// requests finish with the settings they started with.
func (s *Synthesis) ApplyConfig(limit ratelimit.Config, reg voice.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitCfg = limit
	s.limitOn = limit.MaxRequests > 0 && s.limiter != nil
	s.registry = reg
}

// Synthesize runs one request through the full pipeline.
//
// Ordering is fixed: admission is checked before any cost is computed, the
// quota check runs before the provider is called, and usage is committed
// only after the provider succeeds. A provider failure therefore never
// bills the caller, and a successful call is always billed even if the
// commit then fails (the error is surfaced so the operator knows metering
// is degraded).
func (s *Synthesis) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	start := time.Now()
	if req.TraceID == "" && s.ids != nil {
		req.TraceID = s.ids.New()
	}
	log := s.log.With().
		Str("trace_id", req.TraceID).
		Str("client_key", req.ClientKey).
		Str("voice_id", req.VoiceID).
		Logger()

	if err := s.admit(ctx, req.ClientKey); err != nil {
		s.observe("", "rate_limited", start)
		return nil, err
	}

	s.mu.RLock()
	registry := s.registry
	s.mu.RUnlock()

	est := cost.Count(req.Text, req.VoiceID, req.MarkupMode, registry)
	log = log.With().Str("tier", est.Tier.Name).Int64("cost", est.Count).Logger()
	if !est.Known {
		log.Warn().Msg("voice matches no configured tier, billing at default tier")
	}

	if d := s.ledger.CheckAllows(ctx, est.Tier, est.Count); !d.Allowed {
		if s.metrics != nil {
			s.metrics.QuotaDenials.WithLabelValues(est.Tier.Name).Inc()
		}
		log.Info().
			Int64("current_usage", d.CurrentUsage).
			Int64("limit", d.Limit).
			Msg("quota exceeded")
		s.observe(est.Tier.Name, "quota_exceeded", start)
		return nil, &synth.QuotaExceededError{
			Tier:         est.Tier.Name,
			CurrentUsage: d.CurrentUsage,
			Limit:        d.Limit,
			Remaining:    d.Remaining,
			Requested:    d.Requested,
		}
	}

	audio, attempts, err := Call(ctx, s.invoker, "synthesize", func(ctx context.Context) ([]byte, error) {
		return s.provider.Synthesize(ctx, synth.ProviderRequest{
			Text:         req.Text,
			Markup:       req.MarkupMode,
			VoiceID:      req.VoiceID,
			LanguageCode: req.LanguageCode,
			SpeakingRate: req.SpeakingRate,
			Pitch:        req.Pitch,
		})
	})
	if err != nil {
		s.observe(est.Tier.Name, "provider_error", start)
		return nil, err
	}

	if err := s.ledger.Commit(ctx, est.Tier.Name, est.Count); err != nil {
		s.observe(est.Tier.Name, "commit_error", start)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.UsageCommitted.WithLabelValues(est.Tier.Name, string(est.Unit)).Add(float64(est.Count))
	}

	log.Info().
		Int("attempts", attempts).
		Int("audio_bytes", len(audio)).
		Msg("synthesis complete")
	s.observe(est.Tier.Name, "success", start)

	return &synth.Result{
		Audio:    audio,
		Tier:     est.Tier.Name,
		Cost:     est.Count,
		Unit:     string(est.Unit),
		Attempts: attempts,
	}, nil
}

// Voices lists the provider's voice catalog through the resilient invoker.
// Catalog calls are not billed and not quota-checked.
func (s *Synthesis) Voices(ctx context.Context, languageCode string) ([]voice.Descriptor, error) {
	voices, _, err := Call(ctx, s.invoker, "list_voices", func(ctx context.Context) ([]voice.Descriptor, error) {
		return s.provider.ListVoices(ctx, languageCode)
	})
	return voices, err
}

func (s *Synthesis) admit(ctx context.Context, clientKey string) error {
	s.mu.RLock()
	limitOn, limitCfg := s.limitOn, s.limitCfg
	s.mu.RUnlock()

	if !limitOn {
		return nil
	}
	d, err := s.limiter.Admit(ctx, clientKey, limitCfg, s.clock.Now())
	if err != nil {
		return err
	}
	if !d.Allowed {
		if s.metrics != nil {
			s.metrics.RateLimitHits.Inc()
		}
		s.log.Info().
			Str("client_key", clientKey).
			Int("retry_after_s", d.RetryAfterSeconds).
			Msg("rate limit exceeded")
		return &synth.AdmissionDeniedError{
			ClientKey:         clientKey,
			RetryAfterSeconds: d.RetryAfterSeconds,
		}
	}
	return nil
}

func (s *Synthesis) observe(tier, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	if tier == "" {
		tier = "unknown"
	}
	s.metrics.SynthRequestsTotal.WithLabelValues(tier, outcome).Inc()
	s.metrics.SynthDuration.WithLabelValues(tier).Observe(time.Since(start).Seconds())
}
