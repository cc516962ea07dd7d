package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/kv"
)

func newTestRepairer(t *testing.T) (*Repairer, *Checker, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	r := NewRepairer(store, discardLogger())
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	r.clock = mock

	c := NewChecker(store, discardLogger())
	c.clock = mock
	return r, c, store
}

func TestRepair_InitializesAbsentCollections(t *testing.T) {
	r, c, store := newTestRepairer(t)
	ctx := context.Background()

	report, err := c.Check(ctx)
	require.NoError(t, err)

	result, err := r.Repair(ctx, report)
	require.NoError(t, err)

	// every list collection plus some settings outcome
	assert.Len(t, result.Results, 13)
	for name, outcome := range result.Results {
		assert.Equal(t, OutcomeInitialized, outcome, name)
	}

	raw, err := store.Get(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))

	settings, err := store.Get(ctx, "settings")
	require.NoError(t, err)
	decoded, err := collections.DecodeSingleton("settings", settings)
	require.NoError(t, err)
	assert.Equal(t, float64(12), decoded["postsPerPage"])
	assert.Equal(t, "2026-01-15", decoded["startDate"])
}

func TestRepair_SecondRunIsNoOp(t *testing.T) {
	r, c, _ := newTestRepairer(t)
	ctx := context.Background()

	report, err := c.Check(ctx)
	require.NoError(t, err)

	_, err = r.Repair(ctx, report)
	require.NoError(t, err)

	// same stale report, second pass
	result, err := r.Repair(ctx, report)
	require.NoError(t, err)
	for name, outcome := range result.Results {
		assert.Equal(t, OutcomeAlreadySet, outcome, name)
	}
}

func TestRepair_NeverOverwritesExistingData(t *testing.T) {
	r, _, store := newTestRepairer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles", []byte(`[{"id":"1","title":"A","content":"B"}]`)))
	require.NoError(t, store.Set(ctx, "settings", []byte(`{"siteName":"mine"}`)))

	// stale report claiming both are empty
	stale := &Report{Details: map[string]CollectionStatus{
		"articles": {Status: StatusEmpty},
		"settings": {Status: StatusEmpty},
	}}

	result, err := r.Repair(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySet, result.Results["articles"])
	assert.Equal(t, OutcomeAlreadySet, result.Results["settings"])

	raw, err := store.Get(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1","title":"A","content":"B"}]`, string(raw))

	settings, err := store.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"siteName":"mine"}`, string(settings))
}

func TestRepair_InitializesStoredNull(t *testing.T) {
	r, c, store := newTestRepairer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tags", []byte(`null`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusEmpty, report.Details["tags"].Status)

	result, err := r.Repair(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInitialized, result.Results["tags"])

	raw, err := store.Get(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))
}

func TestRepair_EmptySettingsMappingGetsDefaults(t *testing.T) {
	r, c, store := newTestRepairer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "settings", []byte(`{}`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	result, err := r.Repair(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInitialized, result.Results["settings"])
}

func TestRepair_ContentIssuesAreNeverFixed(t *testing.T) {
	r, c, store := newTestRepairer(t)
	ctx := context.Background()

	bad := `[{"id":"1","username":"root","role":"boss"}]`
	require.NoError(t, store.Set(ctx, "users", []byte(bad)))

	report, err := c.Check(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, issuesOfKind(report, IssueInvalidEnum))

	_, err = r.Repair(ctx, report)
	require.NoError(t, err)

	raw, err := store.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, bad, string(raw))
}
