package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScratchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutScratch(ctx, "exec1/chunks", []byte(`{"a":1}`), ScratchTTL))

	data, err := s.GetScratch(ctx, "exec1/chunks")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	// Overwrite.
	require.NoError(t, s.PutScratch(ctx, "exec1/chunks", []byte(`{"a":2}`), ScratchTTL))
	data, err = s.GetScratch(ctx, "exec1/chunks")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	require.NoError(t, s.DeleteScratch(ctx, "exec1/chunks"))
	data, err = s.GetScratch(ctx, "exec1/chunks")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestScratchExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutScratch(ctx, "old", []byte("x"), -time.Minute))
	data, err := s.GetScratch(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, data, "expired entries read as absent")

	n, err := s.DeleteExpiredScratch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSettingsN(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.GetN(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultN, n, "unset N falls back to the default radius")

	require.NoError(t, s.SetN(ctx, 4))
	n, err = s.GetN(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, s.SetN(ctx, 1))
	n, err = s.GetN(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPromptAudit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RecordPrompt(ctx, "ACME->extract", "prompt text", "response text"))
	require.NoError(t, s.RecordPrompt(ctx, "ACME->extract", "prompt text", "response text"),
		"same audit id twice must not collide")

	n, err := s.DeleteExpiredPrompts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh prompts are not expired")
}

func TestStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st := model.ProcessingStatus{
		ID:         "doc_abc",
		FileName:   "report.pdf",
		FileType:   "pdf",
		TotalSteps: 4,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateStatus(ctx, st))

	got, err := s.GetStatus(ctx, "doc_abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPending, got.Status())

	require.NoError(t, s.IncrementStatusStep(ctx, "doc_abc"))
	got, err = s.GetStatus(ctx, "doc_abc")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedSteps)
	assert.Equal(t, model.StatusProcessing, got.Status())
	assert.Equal(t, 25, got.Progress())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementStatusStep(ctx, "doc_abc"))
	}
	require.NoError(t, s.CompleteStatus(ctx, "doc_abc"))
	got, err = s.GetStatus(ctx, "doc_abc")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status())
	assert.NotNil(t, got.EndedAt)

	assert.Error(t, s.IncrementStatusStep(ctx, "missing"))
}

func TestFailStatusTruncatesError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateStatus(ctx, model.ProcessingStatus{
		ID: "doc_fail", FileName: "f.pdf", FileType: "pdf", TotalSteps: 4, StartedAt: time.Now().UTC(),
	}))

	long := strings.Repeat("x", 2000)
	require.NoError(t, s.FailStatus(ctx, "doc_fail", long))

	got, err := s.GetStatus(ctx, "doc_fail")
	require.NoError(t, err)
	assert.Len(t, got.ErrorMessage, MaxErrorLength)
	assert.NotNil(t, got.EndedAt)
}

func TestStatusListAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.CreateStatus(ctx, model.ProcessingStatus{
			ID: id, FileName: id + ".pdf", FileType: "pdf", TotalSteps: 4, StartedAt: time.Now().UTC(),
		}))
	}

	list, err := s.ListStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.ClearStatuses(ctx))
	list, err = s.ListStatuses(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewsCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := model.NewsRecord{
		ID:         "news-1",
		Date:       "2026-08-20",
		Title:      "ACME ACQUIRES GLOBEX",
		Text:       "article body",
		Interested: "YES",
		InterestedEntities: []string{"ACME"},
		Paths: []model.EntityPaths{{
			Name:      "ACME",
			Sentiment: model.ImpactPositive,
			Paths: []model.PathAssessment{{
				Path:             "ACME",
				InterestedEntity: "ACME",
				Impact:           model.ImpactPositive,
				Assessment:       "direct mention",
			}},
		}},
	}
	require.NoError(t, s.SaveNews(ctx, rec))

	got, err := s.GetNews(ctx, "news-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Title, got.Title)
	require.Len(t, got.Paths, 1)
	assert.Equal(t, model.ImpactPositive, got.Paths[0].Sentiment)

	require.NoError(t, s.HideNews(ctx, "news-1", true))
	visible, err := s.ListNews(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := s.ListNews(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Hidden)

	require.NoError(t, s.DeleteNews(ctx, "news-1"))
	got, err = s.GetNews(ctx, "news-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, s.HideNews(ctx, "missing", true))
}
