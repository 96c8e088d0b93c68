package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Page is a fetched web page reduced to readable text.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// PageFetcher downloads a URL and extracts its readable text content.
// Scripts, styles and markup are stripped before extraction.
type PageFetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64

	policy *bluemonday.Policy
}

type FetchOption func(*PageFetcher)

// WithFetchHTTPClient sets a custom HTTP client.
func WithFetchHTTPClient(client *http.Client) FetchOption {
	return func(f *PageFetcher) {
		f.Client = client
	}
}

// WithFetchMaxBytes caps how much of the response body is read.
func WithFetchMaxBytes(n int64) FetchOption {
	return func(f *PageFetcher) {
		f.MaxBytes = n
	}
}

// NewPageFetcher creates a PageFetcher with sane defaults.
func NewPageFetcher(opts ...FetchOption) *PageFetcher {
	f := &PageFetcher{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "turnflow/1.0",
		MaxBytes:  2 << 20,
		policy:    bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the page and returns its title and plain text.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status: %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(http.MaxBytesReader(nil, resp.Body, f.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	doc.Find("script, style, noscript, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body")
	raw, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to extract body of %s: %w", pageURL, err)
	}

	// Sanitize first so leftover markup never reaches the text pass.
	clean, err := goquery.NewDocumentFromReader(strings.NewReader(f.policy.Sanitize(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to reparse %s: %w", pageURL, err)
	}

	return &Page{
		URL:   pageURL,
		Title: title,
		Text:  collapseWhitespace(clean.Text()),
	}, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
