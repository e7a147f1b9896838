package dashboard

import (
	"testing"

	"content-sync/internal/collection/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountRules_Defaults(t *testing.T) {
	rules, err := NewCountRules(DefaultCountRules)
	require.NoError(t, err)

	data := map[string][]model.Record{
		Poems:  {{"id": "p1"}, {"id": "p2"}},
		Videos: {{"id": "v1"}},
		Invites: {
			{"id": "i1", "is_read": int64(0)},
			{"id": "i2", "is_read": int64(1)},
			{"id": "i3"},
			{"id": "i4", "is_read": "true"},
		},
		Comments: {
			{"id": "c1", "is_approved": true},
			{"id": "c2", "is_approved": false},
			{"id": "c3", "approved": int64(1)},
			{"id": "c4", "is_approved": nil},
		},
	}

	counts, err := rules.Compute(func(collection string) []model.Record { return data[collection] })
	require.NoError(t, err)
	assert.Equal(t, DerivedCounts{
		CountPoems:               2,
		CountVideos:              1,
		CountComments:            4,
		CountUnreadInvites:       2,
		CountPendingComments:     2,
		CountUnreadNotifications: 0,
	}, counts)
}

func TestCountRules_FieldAccess(t *testing.T) {
	rules, err := NewCountRules([]CountRule{
		{Name: "shorts", Collection: Videos, Expr: `has(record.video_type) && record.video_type == "short"`},
	})
	require.NoError(t, err)

	counts, err := rules.Compute(func(string) []model.Record {
		return []model.Record{{"video_type": "short"}, {"video_type": "long"}, {"title": "legacy"}}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["shorts"])
}

func TestCountRules_RejectsBadExpressions(t *testing.T) {
	_, err := NewCountRules([]CountRule{{Name: "broken", Collection: Poems, Expr: "record.("}})
	assert.ErrorContains(t, err, `count "broken"`)

	_, err = NewCountRules([]CountRule{{Name: "number", Collection: Poems, Expr: "1 + 1"}})
	assert.ErrorContains(t, err, "must be boolean")

	_, err = NewCountRules([]CountRule{{Name: "unknown", Collection: Poems, Expr: "missing == 1"}})
	assert.Error(t, err)
}

func TestCountRules_EvaluationErrorsSkipTheRecord(t *testing.T) {
	rules, err := NewCountRules([]CountRule{{Name: "titled", Collection: Poems, Expr: `record.title == "x"`}})
	require.NoError(t, err)

	counts, err := rules.Compute(func(string) []model.Record {
		return []model.Record{{"title": "x"}, {"body": "no title"}}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, counts["titled"])
}

func TestMergeCountRules(t *testing.T) {
	merged := MergeCountRules(DefaultCountRules, map[string]CountRule{
		CountVideos: {Expr: `flag(record, "is_published")`},
		"drafts":    {Collection: Videos, Expr: `!flag(record, "is_published")`},
	})

	require.Len(t, merged, len(DefaultCountRules)+1)
	assert.Equal(t, CountRule{Name: CountVideos, Collection: Videos, Expr: `flag(record, "is_published")`}, merged[1])
	assert.Equal(t, "drafts", merged[len(merged)-1].Name)

	rules, err := NewCountRules(merged)
	require.NoError(t, err)
	assert.Len(t, rules.Rules(), len(merged))
}
