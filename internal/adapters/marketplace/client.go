package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Presupuesto de requests por API, muy por debajo de los límites
	// públicos de los grandes marketplaces de cartas.
	defaultRatePerSec = 10
	defaultBurst      = 5
	defaultTimeout    = 10 * time.Second

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryAfter = 30 * time.Second

	userAgent = "cardplanner/1.0"
)

// StatusError es una respuesta 4xx del marketplace que no se reintenta.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}

// Client hace POST JSON a la API de un marketplace con rate limiting y retries.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	wait    time.Duration
}

// NewClient crea un Client que permite ratePerSec requests por segundo.
// Si el rate o el timeout no son positivos, usa los defaults.
func NewClient(ratePerSec float64, timeout time.Duration) *Client {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), defaultBurst),
		wait:    baseRetryWait,
	}
}

// postJSON envía body a url y decodifica la respuesta en out.
// Errores de transporte, 429 y 5xx se reintentan con backoff exponencial;
// un header Retry-After en el 429 reemplaza la espera calculada.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.pause(ctx, attempt-1, lastErr); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		retry, err := c.attempt(ctx, url, payload, out)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("gave up after %d retries: %w", maxRetries, lastErr)
}

// attempt hace un único request. El bool indica si err es reintentable.
func (c *Client) attempt(ctx context.Context, url string, payload []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("marketplace: rate limited", "url", url, "retry_after", resp.Header.Get("Retry-After"))
		return true, &retryAfterError{wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

type retryAfterError struct {
	wait time.Duration
}

func (e *retryAfterError) Error() string { return "rate limited (429)" }

// parseRetryAfter lee la forma en segundos; fechas o basura devuelven 0.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

// pause espera antes del siguiente intento, respetando el contexto.
func (c *Client) pause(ctx context.Context, attempt int, cause error) error {
	wait := c.wait << attempt
	if ra, ok := cause.(*retryAfterError); ok && ra.wait > 0 {
		wait = ra.wait
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
