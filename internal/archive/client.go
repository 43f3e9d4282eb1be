// Package archive reads account book catalogues and transfer records, either
// from the GAMS archive over HTTP or from a local directory of JSON files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/chpollin/depcha-dashboard/internal/config"
	"github.com/chpollin/depcha-dashboard/internal/domain"
)

// ErrUnexpectedStatus is returned when the archive answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected archive status")

const (
	rootContext   = "context:depcha"
	fedoraQuery   = "http://fedora:8380/archive/get/%s/QUERY"
	riSearchPath  = "/archive/risearch"
	transfersPath = "/archive/objects/query:depcha.transactions/methods/sdef:Query/getJSON"
)

// Client talks to the archive's SPARQL and JSON query endpoints.
// Outgoing requests share one rate limiter.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewClient builds a client from the archive configuration.
func NewClient(cfg config.ArchiveConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "archive"),
	}
}

// ListContexts returns the collections registered under the root context.
func (c *Client) ListContexts(ctx context.Context) ([]domain.Context, error) {
	body, err := c.get(ctx, c.riSearchURL(rootContext), "application/sparql-results+xml")
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer body.Close()
	return ParseContexts(body)
}

// ListBooks returns the books of one context.
func (c *Client) ListBooks(ctx context.Context, contextID string) ([]domain.Book, error) {
	body, err := c.get(ctx, c.riSearchURL(contextID), "application/sparql-results+xml")
	if err != nil {
		return nil, fmt.Errorf("list books of %s: %w", contextID, err)
	}
	defer body.Close()
	return ParseBooks(body)
}

// FetchTransfers returns the raw transfer records of one book.
func (c *Client) FetchTransfers(ctx context.Context, bookID string) ([]domain.RawTransfer, error) {
	body, err := c.get(ctx, c.TransfersURL(bookID), "application/json")
	if err != nil {
		return nil, fmt.Errorf("fetch transfers of %s: %w", bookID, err)
	}
	defer body.Close()

	records, err := domain.DecodeRawTransfers(body)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers of %s: %w", bookID, err)
	}
	return records, nil
}

// BookURI is the archive identifier of a book.
func (c *Client) BookURI(bookID string) string {
	return c.baseURL + "/" + bookID
}

// TransfersURL is the JSON query URL returning every transfer of a book.
func (c *Client) TransfersURL(bookID string) string {
	params := url.Values{}
	params.Set("params", "$1|<"+c.BookURI(bookID)+">")
	return c.baseURL + transfersPath + "?" + params.Encode()
}

func (c *Client) riSearchURL(contextID string) string {
	params := url.Values{}
	params.Set("type", "tuples")
	params.Set("lang", "sparql")
	params.Set("format", "Sparql")
	params.Set("query", fmt.Sprintf(fedoraQuery, contextID))
	return c.baseURL + riSearchPath + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, target, accept string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("archive request", "url", target, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp.Body, nil
}
