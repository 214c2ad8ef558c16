package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artpar/speechgate/adapters/clock"
	"github.com/artpar/speechgate/adapters/memory"
	"github.com/artpar/speechgate/app"
	"github.com/artpar/speechgate/domain/ratelimit"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/rs/zerolog"

	synthhttp "github.com/artpar/speechgate/adapters/http"
)

type stubProvider struct {
	audio  []byte
	err    error
	voices []voice.Descriptor
}

func (p *stubProvider) Synthesize(context.Context, synth.ProviderRequest) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.audio, nil
}

func (p *stubProvider) ListVoices(context.Context, string) ([]voice.Descriptor, error) {
	return p.voices, nil
}

func newTestServer(t *testing.T, provider *stubProvider, limit ratelimit.Config) (*httptest.Server, *memory.LedgerStore) {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	store := memory.NewLedgerStore()

	ledger := app.NewLedger(app.LedgerConfig{
		Store:    store,
		Registry: voice.Default(),
		Clock:    clk,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(ledger.Close)

	limiter := memory.NewRateLimitStore(memory.RateLimitStoreConfig{Now: clk.Now})
	t.Cleanup(func() { _ = limiter.Close() })

	inv := app.NewInvoker(app.InvokerConfig{
		Timeout:     time.Second,
		MaxAttempts: 1,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		Logger:      zerolog.Nop(),
	})

	svc := app.NewSynthesis(app.SynthesisConfig{
		Provider:  provider,
		Limiter:   limiter,
		RateLimit: limit,
		Registry:  voice.Default(),
		Ledger:    ledger,
		Invoker:   inv,
		Clock:     clk,
		Logger:    zerolog.Nop(),
	})

	handler := synthhttp.NewHandler(svc, ledger, zerolog.Nop())
	srv := httptest.NewServer(synthhttp.NewRouter(handler, zerolog.Nop(), synthhttp.RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv, store
}

func postSynthesize(t *testing.T, srv *httptest.Server, payload string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/synthesize", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSynthesizeEndpoint(t *testing.T) {
	provider := &stubProvider{audio: []byte("mp3-audio")}
	srv, store := newTestServer(t, provider, ratelimit.Config{})

	resp := postSynthesize(t, srv, `{"text":"Hello","voice_id":"en-US-Neural2-A"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if tier := resp.Header.Get("X-Usage-Tier"); tier != "neural2" {
		t.Errorf("X-Usage-Tier = %q, want neural2", tier)
	}
	if cost := resp.Header.Get("X-Usage-Cost"); cost != "5" {
		t.Errorf("X-Usage-Cost = %q, want 5", cost)
	}
	if unit := resp.Header.Get("X-Usage-Unit"); unit != "bytes" {
		t.Errorf("X-Usage-Unit = %q, want bytes", unit)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body error = %v", err)
	}
	if body.String() != "mp3-audio" {
		t.Errorf("body = %q, want audio bytes", body.String())
	}

	ledger, _ := store.Read(context.Background())
	if got := ledger.Get("2026-08", "neural2"); got != 5 {
		t.Errorf("committed usage = %d, want 5", got)
	}
}

func TestSynthesizeValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{})

	tests := []struct {
		name    string
		payload string
	}{
		{"neither text nor ssml", `{"voice_id":"en-US-Neural2-A"}`},
		{"both text and ssml", `{"text":"a","ssml":"<speak>a</speak>"}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postSynthesize(t, srv, tt.payload, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var body synthhttp.ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != "bad_request" {
				t.Errorf("error code = %q, want bad_request", body.Error.Code)
			}
		})
	}
}

func TestSynthesizeQuotaExceededResponse(t *testing.T) {
	srv, store := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{})

	seed := map[string]map[string]int64{"2026-08": {"studio": 100_000}}
	if err := store.Write(context.Background(), seed); err != nil {
		t.Fatalf("seed write error = %v", err)
	}

	resp := postSynthesize(t, srv, `{"text":"Hello","voice_id":"en-US-Studio-O"}`, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	var body struct {
		Error synthhttp.ErrorDetail `json:"error"`
		Quota struct {
			Tier      string `json:"tier"`
			Usage     int64  `json:"usage"`
			Limit     int64  `json:"limit"`
			Remaining int64  `json:"remaining"`
		} `json:"quota"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "quota_exceeded" {
		t.Errorf("error code = %q, want quota_exceeded", body.Error.Code)
	}
	if body.Quota.Tier != "studio" || body.Quota.Usage != 100_000 || body.Quota.Limit != 100_000 {
		t.Errorf("quota payload = %+v, want studio at cap", body.Quota)
	}
}

func TestSynthesizeRateLimitedResponse(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{
		MaxRequests: 1,
		Window:      time.Minute,
	})

	headers := map[string]string{"X-API-Key": "key-1"}
	if resp := postSynthesize(t, srv, `{"text":"Hello"}`, headers); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp := postSynthesize(t, srv, `{"text":"Hello"}`, headers)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if ra := resp.Header.Get("Retry-After"); ra == "" || ra == "0" {
		t.Errorf("Retry-After = %q, want positive seconds", ra)
	}
}

func TestSynthesizeProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "fatal provider error",
			err:        &synth.ProviderError{Label: "synthesize", StatusCode: 400, Message: "bad voice"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "provider_error",
		},
		{
			name:       "timeout",
			err:        &synth.TimeoutError{Label: "synthesize", After: time.Second},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "provider_timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &stubProvider{err: tt.err}, ratelimit.Config{})
			resp := postSynthesize(t, srv, `{"text":"Hello"}`, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body synthhttp.ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestUsageEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{})

	seed := map[string]map[string]int64{"2026-08": {"neural2": 42}}
	if err := store.Write(context.Background(), seed); err != nil {
		t.Fatalf("seed write error = %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/usage")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Period string `json:"period"`
		Tiers  map[string]struct {
			Usage     int64 `json:"usage"`
			Limit     int64 `json:"limit"`
			Remaining int64 `json:"remaining"`
		} `json:"tiers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Period != "2026-08" {
		t.Errorf("period = %q, want 2026-08", body.Period)
	}
	neural2, ok := body.Tiers["neural2"]
	if !ok {
		t.Fatal("response missing neural2 tier")
	}
	if neural2.Usage != 42 || neural2.Limit != 1_000_000 {
		t.Errorf("neural2 = %+v, want usage 42 limit 1,000,000", neural2)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	provider := &stubProvider{
		audio: []byte("a"),
		voices: []voice.Descriptor{
			{ID: "en-US-Neural2-A", LanguageCodes: []string{"en-US"}, Gender: "FEMALE", SampleRateHz: 24000},
		},
	}
	srv, _ := newTestServer(t, provider, ratelimit.Config{})

	resp, err := http.Get(srv.URL + "/api/voices?language_code=en-US")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Voices []voice.Descriptor `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Voices) != 1 || body.Voices[0].ID != "en-US-Neural2-A" {
		t.Errorf("voices = %+v, want the stubbed catalog", body.Voices)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{})

	for _, path := range []string{"/health", "/health/live"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("Get(/version) error = %v", err)
	}
	defer resp.Body.Close()
	var v synthhttp.VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if v.Service != "speechgate" {
		t.Errorf("service = %q, want speechgate", v.Service)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{audio: []byte("a")}, ratelimit.Config{})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get(/metrics) error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body error = %v", err)
	}
	if !strings.Contains(body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}
