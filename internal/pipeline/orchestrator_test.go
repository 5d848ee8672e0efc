package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/molegis/internal/chunking"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/indexer"
	"github.com/hyperjump/molegis/internal/metrics"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/scraper"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 16

// fakeSource serves bills from memory and counts detail page reads.
type fakeSource struct {
	mu          sync.Mutex
	bills       []string
	failDetail  map[string]bool
	failList    map[int]bool
	detailCalls int
	sponsor     map[string]string
	actions     []models.ScrapedAction
	hearings    []models.ScrapedHearing
}

func newFakeSource(bills ...string) *fakeSource {
	return &fakeSource{
		bills:      bills,
		failDetail: make(map[string]bool),
		failList:   make(map[int]bool),
		sponsor:    make(map[string]string),
	}
}

func (f *fakeSource) Chamber() string { return scraper.ChamberHouse }

func (f *fakeSource) ListBills(_ context.Context, year int, _ models.SessionCode) ([]models.BillListing, error) {
	if f.failList[year] {
		return nil, errors.New("bill list did not load")
	}
	out := make([]models.BillListing, len(f.bills))
	for i, b := range f.bills {
		out[i] = models.BillListing{
			BillNumber:  b,
			Description: "Modifies provisions relating to " + b,
			Sponsor:     f.sponsor[b],
		}
	}
	return out, nil
}

func (f *fakeSource) BillDetail(_ context.Context, _ int, _ models.SessionCode, billNumber string) (*models.BillDetail, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if f.failDetail[billNumber] {
		return nil, errors.New("page structure changed")
	}
	return &models.BillDetail{
		BillNumber: billNumber,
		Title:      "AN ACT relating to " + billNumber,
		Documents: []models.DocumentRef{
			{Title: "Introduced", URL: docURL(billNumber, "I")},
			{Title: "Fiscal Note", URL: "https://example.test/" + billNumber + ".ORG.pdf"},
		},
	}, nil
}

func (f *fakeSource) Cosponsors(context.Context, int, models.SessionCode, string) ([]string, error) {
	return nil, nil
}

func (f *fakeSource) Actions(context.Context, int, models.SessionCode, string) ([]models.ScrapedAction, error) {
	return f.actions, nil
}

func (f *fakeSource) Hearings(context.Context, int, models.SessionCode, string) ([]models.ScrapedHearing, error) {
	return f.hearings, nil
}

func (f *fakeSource) DetailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

func docURL(billNumber, version string) string {
	return "https://example.test/bills/" + billNumber + version + ".pdf"
}

// fakeTexts returns a short summary per URL and tracks concurrent calls.
type fakeTexts struct {
	delay   time.Duration
	panicOn string
	failOn  string
	current atomic.Int64
	peak    atomic.Int64
	calls   atomic.Int64
}

func (f *fakeTexts) Acquire(_ context.Context, url string) (string, error) {
	f.calls.Add(1)
	n := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if url == f.panicOn {
		panic("corrupt pdf")
	}
	if url == f.failOn {
		return "", errors.New("connection reset")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return "This act modifies provisions relating to " + url + ". It takes effect in August.", nil
}

type closeCounter struct{ n atomic.Int64 }

func (c *closeCounter) Close() error {
	c.n.Add(1)
	return nil
}

type testEnv struct {
	store   *storage.SQLiteStorage
	source  *fakeSource
	texts   *fakeTexts
	vectors *vector.MemoryIndex
	browser *closeCounter
	orch    *Orchestrator
}

func newTestEnv(t *testing.T, source *fakeSource, opts ...Option) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "molegis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	vectors, err := vector.NewMemoryIndex(testDims)
	require.NoError(t, err)

	idx := indexer.NewIndexer(store, embedding.NewMockEmbedder(testDims), vectors,
		chunking.NewChunker(800, 100, chunking.WordCounter{}))

	env := &testEnv{
		store:   store,
		source:  source,
		texts:   &fakeTexts{},
		vectors: vectors,
		browser: &closeCounter{},
	}
	opts = append([]Option{WithBrowser(env.browser)}, opts...)
	env.orch = New(store, source, env.texts, idx, opts...)
	return env
}

func (e *testEnv) embeddingCount(t *testing.T) int64 {
	t.Helper()
	n, err := e.store.CountEmbeddings(context.Background())
	require.NoError(t, err)
	return n
}

func TestRun_ProcessesBills(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	ctx := context.Background()

	summary, err := env.orch.Run(ctx, Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.Embeddings)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, int64(3), env.embeddingCount(t))
	assert.Equal(t, 3, env.vectors.Size())
	assert.Equal(t, int64(1), env.browser.n.Load())
	assert.Equal(t, int64(3), env.texts.calls.Load(), "fiscal notes are not downloaded")

	sessionID, err := env.store.UpsertSession(ctx, 2024, models.SessionRegular)
	require.NoError(t, err)
	bill, err := env.store.GetBill(ctx, sessionID, "HB2")
	require.NoError(t, err)
	assert.Equal(t, "AN ACT relating to HB2", bill.Title)
	require.Len(t, bill.Documents, 2)
	assert.True(t, bill.Documents[0].EmbeddingsGenerated)
	assert.False(t, bill.Documents[1].EmbeddingsGenerated)
	assert.True(t, bill.Documents[1].IsFiscalNote)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	ctx := context.Background()
	opts := Options{Year: 2024, Code: models.SessionRegular}

	_, err := env.orch.Run(ctx, opts)
	require.NoError(t, err)
	before := env.embeddingCount(t)
	calls := env.source.DetailCalls()

	summary, err := env.orch.Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, before, env.embeddingCount(t))
	assert.Equal(t, calls, env.source.DetailCalls(), "skipped bills are not scraped")
	assert.True(t, summary.Succeeded())
}

func TestRun_ForceReplacesEmbeddings(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	ctx := context.Background()

	_, err := env.orch.Run(ctx, Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)
	require.Equal(t, int64(3), env.embeddingCount(t))

	summary, err := env.orch.Run(ctx, Options{Year: 2024, Code: models.SessionRegular, Force: true})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, int64(3), env.embeddingCount(t))
	assert.Equal(t, 3, env.vectors.Size())
}

func TestRun_PartialFailure(t *testing.T) {
	source := newFakeSource("HB1", "HB2", "HB3")
	source.failDetail["HB2"] = true
	env := newTestEnv(t, source)

	summary, err := env.orch.Run(context.Background(), Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "HB2", summary.Failures[0].BillNumber)
	assert.Equal(t, "scrape", summary.Failures[0].Stage)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, int64(2), env.embeddingCount(t))
}

func TestRun_DownloadFailureFailsBill(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	env.texts.failOn = docURL("HB2", "I")
	ctx := context.Background()

	summary, err := env.orch.Run(ctx, Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "HB2", summary.Failures[0].BillNumber)
	assert.Equal(t, "download", summary.Failures[0].Stage)
	assert.Contains(t, summary.Failures[0].Error, "connection reset")
	assert.Equal(t, 2, summary.Embeddings)
	assert.Equal(t, int64(2), env.embeddingCount(t))

	sessionID, err := env.store.UpsertSession(ctx, 2024, models.SessionRegular)
	require.NoError(t, err)
	bill, err := env.store.GetBill(ctx, sessionID, "HB2")
	require.NoError(t, err, "the failed bill's rows are still stored")
	require.Len(t, bill.Documents, 2)
	assert.Empty(t, bill.Documents[0].ExtractedText)
	assert.False(t, bill.Documents[0].EmbeddingsGenerated)

	has, err := env.store.HasEmbeddings(ctx, bill.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRun_PanicIsIsolated(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	env.texts.panicOn = docURL("HB3", "I")

	summary, err := env.orch.Run(context.Background(), Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "panic", summary.Failures[0].Stage)
	assert.Equal(t, int64(0), env.texts.current.Load())
}

func TestRun_ConcurrencyBound(t *testing.T) {
	bills := make([]string, 12)
	for i := range bills {
		bills[i] = fmt.Sprintf("HB%d", i+1)
	}
	rec := metrics.NewPipeline()
	env := newTestEnv(t, newFakeSource(bills...), WithConcurrency(3), WithRecorder(rec))
	env.texts.delay = 20 * time.Millisecond

	summary, err := env.orch.Run(context.Background(), Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Processed)
	assert.LessOrEqual(t, summary.MaxInFlight, 3)
	assert.GreaterOrEqual(t, summary.MaxInFlight, 1)
	assert.LessOrEqual(t, env.texts.peak.Load(), int64(3))
}

func TestRun_Limit(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3", "HB4"))

	summary, err := env.orch.Run(context.Background(), Options{Year: 2024, Code: models.SessionRegular, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, env.source.DetailCalls())
}

func TestRun_BuildsBillChildren(t *testing.T) {
	source := newFakeSource("HB7")
	source.sponsor["HB7"] = "Smith, John (151)"
	source.actions = []models.ScrapedAction{
		{Date: "01/04/2024", Description: "Prefiled (H)"},
		{Date: "", Description: "Read First Time (H)"},
		{Date: "Monday, January 8, 2024", Description: "Read Second Time (H)"},
	}
	source.hearings = []models.ScrapedHearing{
		{Committee: "Judiciary", Date: "Tuesday, January 16, 2024", Time: "Upon Adjournment", Location: "HR 1"},
		{Committee: "Judiciary", Date: "01/23/2024", Time: "12:00 PM", Location: "HR 1"},
	}
	env := newTestEnv(t, source)
	ctx := context.Background()

	sessionID, err := env.store.UpsertSession(ctx, 2024, models.SessionRegular)
	require.NoError(t, err)
	legID, _, err := env.store.UpsertLegislator(ctx, &models.Legislator{Name: "John Smith", Role: models.RoleRepresentative, IsActive: true})
	require.NoError(t, err)
	_, err = env.store.LinkLegislatorToSession(ctx, sessionID, legID, "151", "")
	require.NoError(t, err)

	summary, err := env.orch.Run(ctx, Options{Year: 2024, Code: models.SessionRegular})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)

	bill, err := env.store.GetBill(ctx, sessionID, "HB7")
	require.NoError(t, err)

	require.Len(t, bill.Sponsors, 1)
	assert.True(t, bill.Sponsors[0].IsPrimary)
	assert.Equal(t, "151", bill.Sponsors[0].District)

	require.Len(t, bill.Actions, 3)
	for i, a := range bill.Actions {
		assert.Equal(t, i+1, a.SequenceOrder)
	}
	assert.Nil(t, bill.Actions[1].Date)
	require.NotNil(t, bill.Actions[2].Date)
	assert.Equal(t, 8, bill.Actions[2].Date.Day())

	require.Len(t, bill.Hearings, 2)
	assert.Nil(t, bill.Hearings[0].Time)
	assert.Equal(t, "Upon Adjournment", bill.Hearings[0].TimeText)
	require.NotNil(t, bill.Hearings[1].Time)
	assert.Equal(t, "12:00:00", *bill.Hearings[1].Time)
	assert.Equal(t, bill.Hearings[0].CommitteeID, bill.Hearings[1].CommitteeID)

	meta, err := env.store.BillMetadata(ctx, bill.ID)
	require.NoError(t, err)
	require.NotNil(t, meta.PrimarySponsor)
	require.Len(t, meta.Committees, 1)
	assert.Equal(t, "Judiciary", meta.Committees[0].Name)
}

func TestRun_SessionSetupFailure(t *testing.T) {
	source := newFakeSource("HB1")
	source.failList[2024] = true
	env := newTestEnv(t, source)

	summary, err := env.orch.Run(context.Background(), Options{Year: 2024, Code: models.SessionRegular})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionSetup))
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.Err)
	assert.False(t, summary.Succeeded())
	assert.Equal(t, int64(1), env.browser.n.Load())
}

func TestRunAll_ContinuesAfterSessionFailure(t *testing.T) {
	source := newFakeSource("HB1", "HB2")
	source.failList[2023] = true
	env := newTestEnv(t, source)

	sessions := []models.SessionRef{
		{Year: 2024, Code: models.SessionRegular},
		{Year: 2023, Code: models.SessionRegular},
		{Year: 2022, Code: models.SessionSpecial1},
	}
	summaries, err := env.orch.RunAll(context.Background(), sessions, Options{})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.True(t, summaries[0].Succeeded())
	assert.False(t, summaries[1].Succeeded())
	assert.True(t, summaries[2].Succeeded())
	assert.Equal(t, models.SessionSpecial1, summaries[2].Code)

	totals := Total(summaries)
	assert.Equal(t, 3, totals.Sessions)
	assert.Equal(t, 1, totals.FailedSessions)
	assert.Equal(t, 4, totals.Processed)
	assert.Equal(t, 4, totals.Embeddings)
	assert.Equal(t, int64(1), env.browser.n.Load())
}

func TestRegenerate(t *testing.T) {
	env := newTestEnv(t, newFakeSource("HB1", "HB2", "HB3"))
	ctx := context.Background()
	opts := Options{Year: 2024, Code: models.SessionRegular}

	_, err := env.orch.Run(ctx, opts)
	require.NoError(t, err)

	summary, err := env.orch.Regenerate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 0, summary.Processed)

	opts.Force = true
	summary, err = env.orch.Regenerate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Embeddings)
	assert.Equal(t, int64(3), env.embeddingCount(t))
	assert.Equal(t, int64(3), env.texts.calls.Load(), "regeneration reads stored text only")
}

func TestRegenerate_UnknownSession(t *testing.T) {
	env := newTestEnv(t, newFakeSource())

	_, err := env.orch.Regenerate(context.Background(), Options{Year: 1999, Code: models.SessionRegular})
	assert.True(t, errors.Is(err, ErrSessionSetup))
}
