package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(intent, errorCode string) TurnRecord {
	return TurnRecord{
		TurnID:         "turn-" + intent,
		UserID:         "user-1",
		ConversationID: "conv-1",
		Intent:         intent,
		MatchedBy:      "alias",
		ErrorCode:      errorCode,
		LatencyMs:      40,
		CreatedAt:      time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC),
	}
}

func TestRecordTurn_DailyAggregate(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordTurn(record("price", "")))
	require.NoError(t, s.RecordTurn(record("portfolio", "")))
	require.NoError(t, s.RecordTurn(record("price", "UPSTREAM_UNAVAILABLE")))

	stats, err := s.GetDailyStats(7)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	day := stats[0]
	assert.Equal(t, "2026-03-01", day.Date)
	assert.Equal(t, int64(3), day.Turns)
	assert.Equal(t, int64(1), day.Failures)
	assert.InDelta(t, 40.0, day.AvgMs, 0.01)
}

func TestRecordTurn_DeferredAndBlockedCounters(t *testing.T) {
	s := newTestStore(t)

	rec := record("none", "")
	rec.Deferred = true
	require.NoError(t, s.RecordTurn(rec))

	rec = record("price", "ROLLOUT_BLOCKED")
	rec.Blocked = true
	require.NoError(t, s.RecordTurn(rec))

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum["turns"])
	assert.Equal(t, int64(1), sum["deferred"])
	assert.Equal(t, int64(1), sum["blocked"])
	assert.Equal(t, int64(1), sum["failures"])
}

func TestGetRecentTurns(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordTurn(record("price", "")))
	require.NoError(t, s.RecordTurn(record("status", "")))

	recs, err := s.GetRecentTurns(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Newest first.
	assert.Equal(t, "status", recs[0].Intent)
	assert.Equal(t, "price", recs[1].Intent)
	assert.Equal(t, "alias", recs[0].MatchedBy)
	assert.False(t, recs[0].Deferred)
}

func TestGetIntentStats(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	for _, intent := range []string{"price", "price", "portfolio"} {
		rec := record(intent, "")
		rec.CreatedAt = now
		require.NoError(t, s.RecordTurn(rec))
	}

	stats, err := s.GetIntentStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "price", stats[0].Intent)
	assert.Equal(t, int64(2), stats[0].Count)
}

func TestSummary_Empty(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum["turns"])
}
