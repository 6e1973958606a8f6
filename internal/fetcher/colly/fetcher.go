// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

// Pacer gates outbound requests. Wait blocks until the URL's host may be
// fetched again.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// Pacer is optional; nil disables pacing.
	Pacer Pacer
}

// Fetcher implements harvest.Fetcher using the Colly collector. Redirects
// are not followed: the redirect response itself is returned so callers
// can treat moved pages as a signal.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and reports the final status, body and
// duration. Non-2xx statuses are not errors; only transport failures are.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.FetchResponse, error) {
	if f.cfg.Pacer != nil {
		if err := f.cfg.Pacer.Wait(ctx, url); err != nil {
			return harvest.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
		}
	}

	var (
		result   harvest.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})

	collector.OnResponse(func(r *colly.Response) {
		result = harvest.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result = harvest.FetchResponse{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url); err != nil {
		return harvest.FetchResponse{}, err
	}
	if fetchErr != nil {
		return harvest.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if result.StatusCode == 0 {
		return harvest.FetchResponse{}, fmt.Errorf("fetch %s: no response received", url)
	}
	return result, nil
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
