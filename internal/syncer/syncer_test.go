package syncer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happytube/tmdbsync/internal/local"
	"github.com/happytube/tmdbsync/internal/summary"
	"github.com/happytube/tmdbsync/internal/tmdb"
)

// newListingServer serves a canned payload for every listing path, and a 500
// for every path in failing.
func newListingServer(t *testing.T, failing ...string) *httptest.Server {
	t.Helper()

	fail := make(map[string]bool)
	for _, path := range failing {
		fail[path] = true
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail[r.URL.Path] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"page":1,"results":[{"id":1,"title":"流浪地球"},{"id":2,"title":"霸王别姬"}]}`))
	}))
}

func newTestSyncer(serverURL, outputDir string) *Syncer {
	client := tmdb.NewClient("test-token", tmdb.WithBaseURL(serverURL))
	return New(
		WithClient(client),
		WithRepositories(local.New(outputDir)),
		WithNow(func() time.Time {
			return time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
		}),
	)
}

func readSummary(t *testing.T, outputDir string) *summary.Summary {
	t.Helper()

	bs, err := os.ReadFile(filepath.Join(outputDir, SummaryFilename))
	require.NoError(t, err)

	var s summary.Summary
	require.NoError(t, json.Unmarshal(bs, &s))
	return &s
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("all listings succeed", func(t *testing.T) {
		server := newListingServer(t)
		defer server.Close()

		outputDir := t.TempDir()
		sum, err := newTestSyncer(server.URL, outputDir).Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 5, sum.SuccessFiles)
		assert.Equal(t, 5, sum.TotalFiles)
		assert.Equal(t, 10, sum.TotalRecords)
		assert.Equal(t, summary.StatusSuccess, sum.APIStatus)

		for _, listing := range tmdb.DefaultListings {
			bs, err := os.ReadFile(filepath.Join(outputDir, listing.Filename))
			require.NoError(t, err)

			// Pretty-printed, non-ASCII preserved.
			assert.Contains(t, string(bs), "  \"page\": 1")
			assert.Contains(t, string(bs), "流浪地球")
			assert.NotContains(t, string(bs), `\u`)
		}

		onDisk := readSummary(t, outputDir)
		assert.Equal(t, 5, onDisk.SuccessFiles)
		assert.Equal(t, 10, onDisk.TotalRecords)
		assert.Equal(t, summary.StatusSuccess, onDisk.APIStatus)

		report, err := os.ReadFile(filepath.Join(outputDir, ReportFilename))
		require.NoError(t, err)
		assert.Equal(t,
			"Last updated: 2025-06-01 12:30:45 UTC\nSuccess: 5/5 files\nTotal records: 10\n",
			string(report),
		)
	})

	t.Run("mixed success and failure", func(t *testing.T) {
		server := newListingServer(t, "/movie/top_rated", "/tv/top_rated")
		defer server.Close()

		outputDir := t.TempDir()
		sum, err := newTestSyncer(server.URL, outputDir).Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, sum.SuccessFiles)
		assert.Equal(t, 6, sum.TotalRecords)
		assert.Equal(t, summary.StatusSuccess, sum.APIStatus)

		_, err = os.Stat(filepath.Join(outputDir, "movies_popular_page1.json"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(outputDir, "movies_top_rated_page1.json"))
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(outputDir, "tv_top_rated_page1.json"))
		assert.True(t, os.IsNotExist(err))

		// The files list stays complete and ordered regardless of outcomes.
		onDisk := readSummary(t, outputDir)
		want := make([]string, 0, len(tmdb.DefaultListings))
		for _, listing := range tmdb.DefaultListings {
			want = append(want, listing.Filename)
		}
		assert.Equal(t, want, onDisk.Files)
	})

	t.Run("every listing fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		outputDir := t.TempDir()
		sum, err := newTestSyncer(server.URL, outputDir).Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, sum.SuccessFiles)
		assert.Equal(t, 0, sum.TotalRecords)
		assert.Equal(t, summary.StatusFailed, sum.APIStatus)

		// No raw payloads, but both summary artifacts exist.
		for _, listing := range tmdb.DefaultListings {
			_, err := os.Stat(filepath.Join(outputDir, listing.Filename))
			assert.True(t, os.IsNotExist(err))
		}
		_, err = os.Stat(filepath.Join(outputDir, SummaryFilename))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(outputDir, ReportFilename))
		assert.NoError(t, err)
	})

	t.Run("rerun overwrites previous output", func(t *testing.T) {
		outputDir := t.TempDir()
		stale := filepath.Join(outputDir, "movies_popular_page1.json")
		require.NoError(t, os.WriteFile(stale, []byte(`{"stale":true}`), 0644))

		server := newListingServer(t)
		defer server.Close()

		_, err := newTestSyncer(server.URL, outputDir).Run(ctx)
		require.NoError(t, err)

		bs, err := os.ReadFile(stale)
		require.NoError(t, err)
		assert.NotContains(t, string(bs), "stale")
		assert.Contains(t, string(bs), "results")
	})

	t.Run("persist failure aborts the run", func(t *testing.T) {
		server := newListingServer(t)
		defer server.Close()

		client := tmdb.NewClient("test-token", tmdb.WithBaseURL(server.URL))
		s := New(
			WithClient(client),
			WithRepositories(&failingRepository{}),
		)

		sum, err := s.Run(ctx)
		assert.Error(t, err)
		assert.Nil(t, sum)
	})

	t.Run("custom listings", func(t *testing.T) {
		server := newListingServer(t)
		defer server.Close()

		outputDir := t.TempDir()
		client := tmdb.NewClient("test-token", tmdb.WithBaseURL(server.URL))
		s := New(
			WithClient(client),
			WithRepositories(local.New(outputDir)),
			WithListings([]tmdb.Listing{
				{Path: "/movie/popular", Filename: "only.json"},
			}),
		)

		sum, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.TotalFiles)
		assert.Equal(t, []string{"only.json"}, sum.Files)
	})
}

func TestIndentRoundTrip(t *testing.T) {
	body := []byte(`{"results":[1,2,3]}`)
	pretty, err := indent(body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(pretty), "  \"results\""))

	var m map[string]any
	require.NoError(t, json.Unmarshal(pretty, &m))
	results, ok := m["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 3)
}

type failingRepository struct{}

func (f *failingRepository) Write(ctx context.Context, key string, reader io.Reader) error {
	return errors.New("disk full")
}

func (f *failingRepository) Flush() error {
	return nil
}
