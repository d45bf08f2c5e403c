package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"goflare.io/pace/internal/config"
	"goflare.io/pace/internal/metrics"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/retrier"
)

// Settings configures one provider client.
type Settings struct {
	Provider   string
	UserAgent  string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	Breaker    gobreaker.Settings
	Retry      retrier.Settings
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// SettingsFromConfig derives the client settings for provider from cfg.
func SettingsFromConfig(provider string, cfg *config.Config) Settings {
	return Settings{
		Provider:  provider,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.HTTPTimeout,
		RPS:       cfg.Upstream.RequestsPerSecond,
		Burst:     cfg.Upstream.Burst,
		Breaker:   cfg.Resilience.CircuitBreaker,
		Retry: retrier.Settings{
			MaxAttempts: cfg.Resilience.MaxAttempts,
			BaseDelay:   cfg.Resilience.BaseDelay,
			MaxDelay:    cfg.Resilience.MaxDelay,
			Factor:      cfg.Resilience.Factor,
			Jitter:      cfg.Resilience.Jitter,
			Strategy:    retrier.ExponentialBackoff,
		},
		Logger: cfg.Logger,
	}
}

// Client 對第三方資料來源發出 GET 請求，帶有限流、熔斷和重試
type Client struct {
	provider  string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	retrier   *retrier.Retrier
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates a Client.
func New(s Settings) (*Client, error) {
	if s.Provider == "" {
		return nil, errors.New("upstream provider name is required")
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("upstream").With(zap.String("provider", s.Provider))

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: s.Timeout}
	}

	limit := rate.Inf
	if s.RPS > 0 {
		limit = rate.Limit(s.RPS)
	}
	burst := s.Burst
	if burst < 1 {
		burst = 1
	}

	retry := s.Retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Debug("Retrying upstream request",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}
	r, err := retrier.New(retry)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", s.Provider, err)
	}

	breaker := s.Breaker
	breaker.Name = s.Provider
	// Client errors such as 404 say nothing about the provider's health.
	breaker.IsSuccessful = func(err error) bool {
		return err == nil || !retrier.IsTemporary(err)
	}
	breaker.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("from", from.String()), zap.String("to", to.String()))
	}

	return &Client{
		provider:  s.Provider,
		userAgent: s.UserAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		breaker:   gobreaker.NewCircuitBreaker(breaker),
		retrier:   r,
		logger:    logger,
		tracer:    otel.Tracer("goflare.io/pace/upstream"),
	}, nil
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.UpstreamError{Provider: c.provider, URL: url, Err: models.DecodeError(err)}
	}
	return nil
}

// Get fetches url and returns the raw body of a 200 response.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "upstream.Get", trace.WithAttributes(
		attribute.String("provider", c.provider),
		attribute.String("url", url),
	))
	defer span.End()

	var body []byte
	err := c.executeWithResilience(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.do(ctx, url)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.classify(url, err)
	}
	return body, nil
}

// executeWithResilience 使用熔斷器和重試機制執行操作
func (c *Client) executeWithResilience(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.retrier.Run(ctx, operation)
	})
	return err
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &models.UpstreamError{Provider: c.provider, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.UpstreamError{Provider: c.provider, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.provider, "error").Inc()
		return nil, &models.UpstreamError{Provider: c.provider, URL: url, Err: err}
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(c.provider, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &models.UpstreamError{Provider: c.provider, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.UpstreamError{Provider: c.provider, URL: url, Err: err}
	}
	c.logger.Debug("Upstream request succeeded", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}

// classify makes sure every failure leaving the client is an *UpstreamError.
func (c *Client) classify(url string, err error) error {
	var upErr *models.UpstreamError
	if errors.As(err, &upErr) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("Upstream request rejected by circuit breaker", zap.String("url", url))
	}
	return &models.UpstreamError{Provider: c.provider, URL: url, Err: err}
}
