package sgs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sgscollector/internal/providers"
)

const (
	defaultBaseURL         = "https://api.bcb.gov.br/dados/serie/bcdata.sgs.{code}/dados"
	defaultTimeoutSeconds  = 30
	defaultMaxRetries      = 2
	defaultRateLimitPerSec = 5
	defaultRateLimitBurst  = 5
	defaultUserAgent       = "sgscollector/0.1"

	// The SGS API takes and returns Brazilian-format dates.
	dateParamLayout = "02/01/2006"
)

// ErrSeriesError marks a structurally valid response whose payload is the
// API's own error object (unknown series code and similar). It is never
// retried: the API answered, the request itself is wrong.
var ErrSeriesError = errors.New("sgs: api reported series error")

type Config struct {
	BaseURL         string
	APIFormat       string
	Timeout         time.Duration
	MaxRetries      int
	RateLimitPerSec int
	RateLimitBurst  int
	UserAgent       string
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.Contains(cfg.BaseURL, "{code}") {
		return nil, fmt.Errorf("sgs: base url must contain a {code} placeholder: %s", cfg.BaseURL)
	}
	if strings.TrimSpace(cfg.APIFormat) == "" {
		cfg.APIFormat = "json"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:         getenv("SGS_BASE_URL", defaultBaseURL),
		APIFormat:       getenv("SGS_FORMAT", "json"),
		UserAgent:       getenv("SGS_USER_AGENT", defaultUserAgent),
		MaxRetries:      getenvInt("SGS_MAX_RETRIES", defaultMaxRetries),
		RateLimitPerSec: getenvInt("SGS_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec),
		RateLimitBurst:  getenvInt("SGS_RATE_LIMIT_BURST", defaultRateLimitBurst),
	}
	cfg.Timeout = time.Duration(getenvInt("SGS_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	return cfg, nil
}

func (p *Provider) Name() string {
	return "sgs"
}

func (p *Provider) FetchSeries(ctx context.Context, code int, from, to time.Time) ([]providers.RawObservation, error) {
	if code <= 0 {
		return nil, fmt.Errorf("sgs: series code must be positive, got %d", code)
	}

	params := url.Values{}
	params.Set("formato", p.config.APIFormat)
	params.Set("dataInicial", from.Format(dateParamLayout))
	params.Set("dataFinal", to.Format(dateParamLayout))

	body, err := p.doRequest(ctx, p.seriesURL(code), params)
	if err != nil {
		return nil, err
	}
	return parseObservations(body, code)
}

func (p *Provider) seriesURL(code int) string {
	return strings.ReplaceAll(p.config.BaseURL, "{code}", strconv.Itoa(code))
}

func (p *Provider) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	attempts := p.config.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := p.doAttempt(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("sgs: request failed after %d attempts: %w", attempts, lastErr)
}

func (p *Provider) doAttempt(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	uri := endpoint
	if len(params) > 0 {
		uri = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("sgs: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return body, nil
}

type errorPayload struct {
	Erro string `json:"erro"`
}

// parseObservations decodes the response body. The API returns a JSON
// array on success and a JSON object carrying an "erro" field when the
// series itself is bad, so an object here is always a failure.
func parseObservations(body []byte, code int) ([]providers.RawObservation, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload errorPayload
		if err := json.Unmarshal(trimmed, &payload); err == nil && payload.Erro != "" {
			return nil, fmt.Errorf("%w: series %d: %s", ErrSeriesError, code, payload.Erro)
		}
		return nil, fmt.Errorf("%w: series %d: unexpected object payload", ErrSeriesError, code)
	}

	var rows []providers.RawObservation
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("sgs: decode series %d response: %w", code, err)
	}
	return rows, nil
}

type rateLimiter struct {
	tokens chan struct{}
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &rateLimiter{
		tokens: make(chan struct{}, burst),
	}
	for i := 0; i < burst; i++ {
		limiter.tokens <- struct{}{}
	}

	interval := time.Second / time.Duration(ratePerSec)
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case limiter.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return limiter
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
