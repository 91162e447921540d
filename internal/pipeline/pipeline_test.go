package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-phish-features/internal/config"
	"github.com/shouni/go-phish-features/pkg/feed"
	"github.com/shouni/go-phish-features/pkg/scraper"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "lr.json")
	require.NoError(t, os.WriteFile(modelPath, []byte(`{"weights":[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0],"bias":-1}`), 0o600))

	cfg := config.Default()
	cfg.Models = map[string]string{
		"logistic_regression": modelPath,
		"xgboost":             filepath.Join(dir, "missing.json"),
	}
	cfg.Store.Path = filepath.Join(dir, "history.db")

	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	assert.NotNil(t, p.Analyzer)
	assert.NotNil(t, p.Feed)
	require.NotNil(t, p.Store)
	assert.Equal(t, []string{"logistic_regression"}, p.Models.Names())
	assert.NotNil(t, p.Server().Handler())

	s := p.Scraper(0)
	var _ scraper.Scraper = s
}

func TestNew_WithoutStore(t *testing.T) {
	p, err := New(config.Default(), zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, p.Store)
	assert.NoError(t, p.Close())
}

func TestAnalyzeURL_Canceled(t *testing.T) {
	p, err := New(config.Default(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err = p.AnalyzeURL(ctx, "example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

var _ feed.Fetcher = (*httpkit.Client)(nil)

func TestFeed_FetchLinks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>suspicious</title>
<item><title>a</title><link>http://login-update.test/a</link></item>
<item><title>b</title><link> http://login-update.test/b </link></item>
<item><title>dup</title><link>http://login-update.test/a</link></item>
</channel></rss>`)
	}))
	defer ts.Close()

	p, err := New(config.Default(), zerolog.Nop())
	require.NoError(t, err)

	links, err := p.Feed.FetchLinks(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://login-update.test/a", "http://login-update.test/b"}, links)
}
