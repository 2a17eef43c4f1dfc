// Package collyfetcher implements crawler.ContentReader using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/logging"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps the bytes read per response; zero keeps colly's default.
	MaxBodySize int
	// Transport overrides the pooled HTTP transport.
	Transport http.RoundTripper
}

// Reader fetches pages with a cloned Colly collector per request.
type Reader struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Reader.
func New(cfg Config, logger *zap.Logger) *Reader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(colly.Async(false))
	// Clones share the visited store; outcome bookkeeping belongs to the
	// crawler, and sequential runs must fetch the same URLs again.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.WithTransport(transport)

	return &Reader{cfg: cfg, baseCollector: c, logger: logging.OrNop(logger)}
}

type readResult struct {
	status  int
	content []byte
	ctype   string
	err     error
}

// Read performs a GET. Any final status other than 200 is an error.
func (r *Reader) Read(ctx context.Context, url string) (*crawler.ContentResult, error) {
	var res readResult
	collector := r.buildCollector(&res)

	if err := r.runCollector(ctx, collector, url); err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, res.err)
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", res.status, url)
	}
	r.logger.Debug("page fetched",
		zap.String("url", url),
		zap.String("content_type", res.ctype),
		zap.Int("bytes", len(res.content)))
	return &crawler.ContentResult{URL: url, Content: res.content, ContentType: res.ctype}, nil
}

func (r *Reader) buildCollector(res *readResult) *colly.Collector {
	collector := r.baseCollector.Clone()
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}
	collector.SetRequestTimeout(r.cfg.Timeout)
	configureHooks(collector, res)
	return collector
}

func configureHooks(hooks collectorHooks, res *readResult) {
	hooks.OnResponse(func(resp *colly.Response) {
		res.status = resp.StatusCode
		res.content = bytes.Clone(resp.Body)
		if res.content == nil {
			res.content = []byte{}
		}
		if resp.Headers != nil {
			res.ctype = mediaType(resp.Headers.Get("Content-Type"))
		}
	})
	hooks.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			res.status = resp.StatusCode
		}
		res.err = err
	})
}

func (r *Reader) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

// mediaType drops parameters such as charset.
func mediaType(header string) string {
	if header == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(header); err == nil {
		return parsed
	}
	base, _, _ := strings.Cut(header, ";")
	return strings.ToLower(strings.TrimSpace(base))
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
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
