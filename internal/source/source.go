package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"postwatch/internal/domain"
	"regexp"
	"strings"
	"time"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	DefaultNitterURL    = "https://nitter.net"
	DefaultFetchTimeout = 20 * time.Second

	minPartsForStatusID = 2
)

var statusIDRe = regexp.MustCompile(`/status/(\d+)`)

// Source returns the latest item for an account. Errors are either
// domain.ErrAccountNotFound or a *domain.TransientError.
type Source interface {
	FetchLatest(ctx context.Context, handle string) (domain.Item, error)
}

type client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func newClient(baseURL string, timeout time.Duration, log *slog.Logger) (client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return client{}, errors.New("base URL is empty")
	}

	if _, err := url.Parse(baseURL); err != nil {
		return client{}, fmt.Errorf("parse base URL: %w", err)
	}

	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// get performs the request and classifies the status code. The caller owns
// the response body on success.
func (c client) get(ctx context.Context, handle string, path string) (*http.Response, error) {
	reqURL := c.baseURL + "/" + url.PathEscape(handle) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.Transient("create request", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req) //nolint:gosec // Configured source URL
	if err != nil {
		return nil, domain.Transient("do request", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		c.closeBody(ctx, resp, reqURL)
		return nil, fmt.Errorf("%w (handle = %s)", domain.ErrAccountNotFound, handle)
	default:
		c.closeBody(ctx, resp, reqURL)
		return nil, domain.Transient(fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	}
}

func (c client) closeBody(ctx context.Context, resp *http.Response, reqURL string) {
	if err := resp.Body.Close(); err != nil {
		c.log.ErrorContext(ctx, "Failed to close response body",
			"error", err,
			"url", reqURL)
	}
}

// StatusID extracts the item ID from a status link. The ID stays a string;
// it is compared for equality only.
func StatusID(link string) string {
	m := statusIDRe.FindStringSubmatch(link)
	if len(m) < minPartsForStatusID {
		return ""
	}

	return m[1]
}
