package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the NCBI PubMed baseline directory over HTTPS.
	DefaultBaseURL = "https://ftp.ncbi.nlm.nih.gov/pubmed/baseline"

	// DefaultTimeout is the HTTP timeout for archive downloads. Baseline
	// files run to tens of megabytes, so this is deliberately generous.
	DefaultTimeout = 10 * time.Minute

	// RateLimit is 3 requests per second, per NCBI usage guidelines for
	// unauthenticated clients.
	RateLimit = 3.0

	// filePattern and checksumPattern address files by zero-padded
	// 4-digit sequence index.
	filePattern     = "pubmed24n%04d.xml.gz"
	checksumPattern = "pubmed24n%04d.xml.gz.md5"
)

// Source provides archive data and checksum sidecars by sequence index.
// It is implemented by Client and by test fixtures.
type Source interface {
	// FetchArchive returns the raw compressed bytes of archive index.
	FetchArchive(ctx context.Context, index int) ([]byte, error)

	// FetchChecksum returns the checksum sidecar text for archive index.
	FetchChecksum(ctx context.Context, index int) (string, error)
}

// FileName returns the archive file name for a sequence index.
func FileName(index int) string {
	return fmt.Sprintf(filePattern, index)
}

// ChecksumFileName returns the checksum sidecar name for a sequence index.
func ChecksumFileName(index int) string {
	return fmt.Sprintf(checksumPattern, index)
}

// Client fetches baseline archives over HTTPS with rate limiting.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the remote directory URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new archive client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchArchive downloads the compressed archive for a sequence index.
func (c *Client) FetchArchive(ctx context.Context, index int) ([]byte, error) {
	return c.get(ctx, FileName(index))
}

// FetchChecksum downloads the checksum sidecar for a sequence index.
func (c *Client) FetchChecksum(ctx context.Context, index int) (string, error) {
	data, err := c.get(ctx, ChecksumFileName(index))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, name string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: server returned status %d", name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
