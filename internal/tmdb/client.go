package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

const defaultUserAgent = "HappyTube-GitHub-Sync/1.0"

// Listing is one remote listing endpoint and the filename its payload is
// stored under.
type Listing struct {
	Path     string
	Filename string
}

// DefaultListings is the fixed set of listings the job refreshes. The order
// here is the fetch order and the order of the files list in the run summary.
var DefaultListings = []Listing{
	{Path: "/movie/popular", Filename: "movies_popular_page1.json"},
	{Path: "/movie/top_rated", Filename: "movies_top_rated_page1.json"},
	{Path: "/movie/now_playing", Filename: "movies_now_playing_page1.json"},
	{Path: "/tv/popular", Filename: "tv_popular_page1.json"},
	{Path: "/tv/top_rated", Filename: "tv_top_rated_page1.json"},
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithLanguage(language string) Option {
	return func(c *Client) {
		c.language = language
	}
}

func WithPage(page int) Option {
	return func(c *Client) {
		c.page = page
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client fetches listing pages from the TMDB API. Authentication is a v4
// Bearer token sent on every request.
type Client struct {
	baseURL   string
	token     string
	language  string
	page      int
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		token:     token,
		language:  "zh-CN",
		page:      1,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page is one fetched listing page. Body is the response body exactly as the
// API returned it; Records is the length of the payload's results array, or
// zero when the field is absent or not an array.
type Page struct {
	Body    []byte
	Records int
}

// FetchListing issues a single GET for one listing path. Transport errors,
// non-2xx statuses and unparseable bodies all surface as errors; there is no
// retry.
func (c *Client) FetchListing(ctx context.Context, path string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("language", c.language)
	q.Set("page", strconv.Itoa(c.page))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("fetching listing", zap.String("url", req.URL.String()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get %s: unexpected status code: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	records := 0
	if obj, ok := payload.(map[string]any); ok {
		if results, ok := obj["results"].([]any); ok {
			records = len(results)
		}
	}

	return &Page{Body: body, Records: records}, nil
}
