package syncer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/happytube/tmdbsync/internal"
	"github.com/happytube/tmdbsync/internal/summary"
	"github.com/happytube/tmdbsync/internal/tmdb"
)

const (
	SummaryFilename = "update_info.json"
	ReportFilename  = "last_update.txt"
)

type Option func(*Syncer)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithClient(client *tmdb.Client) Option {
	return func(s *Syncer) {
		s.client = client
	}
}

func WithListings(listings []tmdb.Listing) Option {
	return func(s *Syncer) {
		s.listings = listings
	}
}

func WithRepositories(repositories ...internal.Repository) Option {
	return func(s *Syncer) {
		s.repositories = repositories
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// Syncer drives one refresh run: fetch every configured listing in order,
// persist the payloads that arrive, then persist the run summary.
type Syncer struct {
	logger       *zap.Logger
	client       *tmdb.Client
	listings     []tmdb.Listing
	repositories []internal.Repository
	now          func() time.Time
}

func New(opts ...Option) *Syncer {
	s := &Syncer{
		logger:   zap.NewNop(),
		listings: tmdb.DefaultListings,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs the refresh. A fetch or parse failure on one listing is logged
// and skipped; the remaining listings are still attempted. A persist failure
// aborts the run. The summary artifacts are written even when every fetch
// failed, so consumers always see the outcome of the latest run.
func (s *Syncer) Run(ctx context.Context) (*summary.Summary, error) {
	var successFiles int
	var totalRecords int

	for _, listing := range s.listings {
		l := s.logger.With(zap.String("endpoint", listing.Path))
		l.Info("fetching listing")

		page, err := s.client.FetchListing(ctx, listing.Path)
		if err != nil {
			l.Error("fetch failed", zap.Error(err))
			continue
		}

		body, err := indent(page.Body)
		if err != nil {
			l.Error("fetch failed", zap.Error(err))
			continue
		}

		if err := s.persist(ctx, listing.Filename, body); err != nil {
			return nil, err
		}

		successFiles++
		totalRecords += page.Records
		l.Info("listing stored",
			zap.String("file", listing.Filename),
			zap.Int("records", page.Records),
		)
	}

	files := make([]string, 0, len(s.listings))
	for _, listing := range s.listings {
		files = append(files, listing.Filename)
	}

	sum := summary.New(s.now(), files, successFiles, totalRecords)

	body, err := marshalSummary(sum)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, SummaryFilename, body); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, ReportFilename, []byte(sum.Text())); err != nil {
		return nil, err
	}

	for _, repository := range s.repositories {
		if err := repository.Flush(); err != nil {
			return nil, err
		}
	}

	return sum, nil
}

func (s *Syncer) persist(ctx context.Context, key string, body []byte) error {
	for _, repository := range s.repositories {
		if err := repository.Write(ctx, key, bytes.NewReader(body)); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// indent reformats the payload with 2-space indentation without re-encoding
// it, so key order and non-ASCII characters come through untouched.
func indent(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalSummary(sum *summary.Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
