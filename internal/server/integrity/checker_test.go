package integrity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/kv"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestChecker(t *testing.T) (*Checker, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	c := NewChecker(store, discardLogger())
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	c.clock = mock
	return c, store
}

func issuesOfKind(report *Report, kind string) []Issue {
	var out []Issue
	for _, issue := range report.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

func TestChecker_EmptyStore(t *testing.T) {
	c, _ := newTestChecker(t)

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 13, report.TotalCollections)
	assert.Equal(t, 0, report.TotalRecords)
	assert.Equal(t, 0, report.Healthy)
	assert.Empty(t, report.Issues)
	assert.Equal(t, "2026-01-15T12:00:00.000Z", report.Timestamp)

	for name, st := range report.Details {
		assert.Equal(t, StatusEmpty, st.Status, name)
	}
}

func TestChecker_HealthyData(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles",
		[]byte(`[{"id":"1","title":"A","content":"B","category":"Tech","tags":["Go"],"createdAt":"2026-01-10T08:00:00.000Z"}]`)))
	require.NoError(t, store.Set(ctx, "categories", []byte(`[{"id":1,"name":"Tech"}]`)))
	require.NoError(t, store.Set(ctx, "tags", []byte(`[{"id":1,"name":"Go"}]`)))
	require.NoError(t, store.Set(ctx, "comments", []byte(`[{"id":"1","content":"nice","articleId":"1"}]`)))
	require.NoError(t, store.Set(ctx, "settings", []byte(`{"postsPerPage":12}`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Issues)
	assert.Equal(t, 5, report.Healthy)
	assert.Equal(t, 5, report.TotalRecords)
	assert.Equal(t, StatusOK, report.Details["articles"].Status)
	assert.True(t, report.Details["articles"].HasData)
}

func TestChecker_DanglingCategoryReference(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles",
		[]byte(`[{"id":1,"title":"A","content":"B","category":"Tech"}]`)))
	require.NoError(t, store.Set(ctx, "categories", []byte(`[]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	dangling := issuesOfKind(report, IssueDanglingReference)
	require.Len(t, dangling, 1)
	assert.Equal(t, "articles", dangling[0].Collection)
	assert.Equal(t, "1", dangling[0].RecordID)
	assert.Equal(t, "category", dangling[0].Field)
	assert.Equal(t, "Tech", dangling[0].Target)
	assert.Contains(t, dangling[0].Message, `missing category "Tech"`)

	// adding the category resolves the reference
	require.NoError(t, store.Set(ctx, "categories", []byte(`[{"id":2,"name":"Tech"}]`)))

	report, err = c.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, issuesOfKind(report, IssueDanglingReference))
}

func TestChecker_DanglingTagAndComment(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles",
		[]byte(`[{"id":"1","title":"A","content":"B","tags":["Go","Rust"]}]`)))
	require.NoError(t, store.Set(ctx, "tags", []byte(`[{"id":1,"name":"Go"}]`)))
	require.NoError(t, store.Set(ctx, "comments",
		[]byte(`[{"id":"5","content":"hi","articleId":"99"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	dangling := issuesOfKind(report, IssueDanglingReference)
	require.Len(t, dangling, 2)

	byCollection := map[string]Issue{}
	for _, issue := range dangling {
		byCollection[issue.Collection] = issue
	}
	assert.Equal(t, "Rust", byCollection["articles"].Target)
	assert.Equal(t, "99", byCollection["comments"].Target)
	assert.Equal(t, "5", byCollection["comments"].RecordID)
}

func TestChecker_NumericArticleIDResolvesStringReference(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles", []byte(`[{"id":1,"title":"A","content":"B"}]`)))
	require.NoError(t, store.Set(ctx, "comments", []byte(`[{"id":"1","content":"hi","articleId":1}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, issuesOfKind(report, IssueDanglingReference))
}

func TestChecker_MissingRequiredFields(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles", []byte(`[{"id":"1","title":"A"},{"id":"2","content":"","title":"B"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	missing := issuesOfKind(report, IssueMissingField)
	require.Len(t, missing, 2)
	assert.Equal(t, "content", missing[0].Field)
	assert.Equal(t, "1", missing[0].RecordID)
	assert.Equal(t, "content", missing[1].Field)
	assert.Equal(t, "2", missing[1].RecordID)
}

func TestChecker_RecordMissingID(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "guestbook",
		[]byte(`[{"content":"hi"},{"id":"2","content":"ho"},{"id":null,"content":"hum"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	var idIssues []Issue
	for _, issue := range issuesOfKind(report, IssueMissingField) {
		if issue.Field == "id" {
			idIssues = append(idIssues, issue)
		}
	}
	require.Len(t, idIssues, 2)
	assert.Contains(t, idIssues[0].Message, "record 0")
	assert.Contains(t, idIssues[1].Message, "record 2")
}

func TestChecker_NonNumericCounterFields(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles",
		[]byte(`[{"id":"1","title":"A","content":"B","views":"12"},{"id":"2","title":"C","content":"D","views":7}]`)))
	require.NoError(t, store.Set(ctx, "categories",
		[]byte(`[{"id":"1","name":"Tech","count":"three"}]`)))
	require.NoError(t, store.Set(ctx, "tags",
		[]byte(`[{"id":"1","name":"Go","count":5},{"id":"2","name":"Web"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	bad := issuesOfKind(report, IssueTypeError)
	require.Len(t, bad, 2)

	byCollection := map[string]Issue{}
	for _, issue := range bad {
		byCollection[issue.Collection] = issue
	}
	assert.Equal(t, "views", byCollection["articles"].Field)
	assert.Equal(t, "1", byCollection["articles"].RecordID)
	assert.Equal(t, "count", byCollection["categories"].Field)
}

func TestChecker_StoredNullIsEmpty(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles", []byte(`null`)))
	require.NoError(t, store.Set(ctx, "settings", []byte(`null`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusEmpty, report.Details["articles"].Status)
	assert.Equal(t, StatusEmpty, report.Details["settings"].Status)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 0, report.Healthy)
}

func TestChecker_InvalidUserRole(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users",
		[]byte(`[{"id":"1","username":"root","role":"boss"},{"id":"2","username":"a","role":"editor"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	invalid := issuesOfKind(report, IssueInvalidEnum)
	require.Len(t, invalid, 1)
	assert.Equal(t, "1", invalid[0].RecordID)
	assert.Equal(t, "role", invalid[0].Field)
	assert.Equal(t, "boss", invalid[0].Target)
}

func TestChecker_InvalidTimestamp(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "guestbook",
		[]byte(`[{"id":"1","content":"hi","createdAt":"yesterday"},{"id":"2","content":"ho","createdAt":"2026-01-10T08:00:00Z","updatedAt":"2026-01-10T09:00:00.123Z"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	bad := issuesOfKind(report, IssueInvalidTimestamp)
	require.Len(t, bad, 1)
	assert.Equal(t, "1", bad[0].RecordID)
	assert.Equal(t, "createdAt", bad[0].Field)
}

func TestChecker_TypeErrorShapes(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles", []byte(`{"oops":"object"}`)))
	require.NoError(t, store.Set(ctx, "settings", []byte(`["oops","list"]`)))
	require.NoError(t, store.Set(ctx, "comments", []byte(`[{"id":"1","content":"hi","articleId":"1"}]`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusTypeError, report.Details["articles"].Status)
	assert.Equal(t, StatusTypeError, report.Details["settings"].Status)
	assert.Len(t, issuesOfKind(report, IssueTypeError), 2)

	// references into an undecodable collection are not reported as dangling
	assert.Empty(t, issuesOfKind(report, IssueDanglingReference))
}

func TestChecker_SettingsEmptyMappingIsEmpty(t *testing.T) {
	c, store := newTestChecker(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "settings", []byte(`{}`)))

	report, err := c.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, report.Details["settings"].Status)
}
