package fallback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/metrics"
	"github.com/JakeFAU/hotterms/internal/source"
	"github.com/JakeFAU/hotterms/internal/terms"
)

type mapFetcher struct {
	batches map[string]terms.Batch
	calls   []string
}

func (f *mapFetcher) Fetch(_ context.Context, src source.Source) terms.Batch {
	f.calls = append(f.calls, src.Name)
	return f.batches[src.Name]
}

func TestDefaultSourcesAreValid(t *testing.T) {
	t.Parallel()

	srcs := DefaultSources()
	require.Len(t, srcs, 3)
	for _, src := range srcs {
		assert.NoError(t, src.Validate(), src.Name)
	}
	assert.Equal(t, source.KindHTMLScrape, srcs[0].Kind)
}

func TestNewPoolDefaults(t *testing.T) {
	t.Parallel()

	assert.Len(t, NewPool(nil, &mapFetcher{}, nil).Sources(), 3)
	assert.Empty(t, NewPool([]source.Source{}, &mapFetcher{}, nil).Sources())
}

func TestBuildUnionsInOrder(t *testing.T) {
	t.Parallel()

	f := &mapFetcher{batches: map[string]terms.Batch{
		"a": {"P", "Q"},
		"b": {},
		"c": {"Q", "R"},
	}}
	srcs := []source.Source{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	pool := NewPool(srcs, f, zap.NewNop()).Build(context.Background())

	assert.Equal(t, []string{"P", "Q", "R"}, pool.Terms())
	assert.Equal(t, []string{"a", "b", "c"}, f.calls)
}

func TestBuildAllFailing(t *testing.T) {
	t.Parallel()

	pool := NewPool([]source.Source{{Name: "a"}, {Name: "b"}}, &mapFetcher{}, nil).Build(context.Background())
	assert.True(t, pool.Empty())
}

func TestBuildStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mapFetcher{batches: map[string]terms.Batch{"a": {"P"}}}

	pool := NewPool([]source.Source{{Name: "a"}}, f, nil).Build(ctx)
	assert.True(t, pool.Empty())
	assert.Empty(t, f.calls)
}

func TestBuildWithRealFetcher(t *testing.T) {
	metrics.Init()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"title":"油价"},{"title":"台风"}]}`))
	}))
	defer api.Close()
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div class="c-single-text-ellipsis"> 台风 </div><div class="c-single-text-ellipsis">高考</div></body></html>`))
	}))
	defer page.Close()

	fetcher := source.New(source.Config{APITimeout: 2 * time.Second, ScrapeTimeout: 2 * time.Second}, nil)
	srcs := []source.Source{
		{Name: "scrape", Kind: source.KindHTMLScrape, URL: page.URL, Rule: source.Rule{Selector: "div.c-single-text-ellipsis"}},
		{Name: "api", Kind: source.KindStructuredAPI, URL: api.URL, Rule: source.Rule{ItemsPath: "data", TitleField: "title"}},
	}

	pool := NewPool(srcs, fetcher, nil).Build(context.Background())

	assert.Equal(t, []string{"台风", "高考", "油价"}, pool.Terms())

	expected := `
# HELP hotterms_fallback_pool_terms Number of distinct terms in the most recent fallback pool.
# TYPE hotterms_fallback_pool_terms gauge
hotterms_fallback_pool_terms 3
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "hotterms_fallback_pool_terms"))
}
