package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlobArchiver struct {
	cutoff   time.Time
	archived int64
	err      error
}

func (s *stubBlobArchiver) ArchiveSnapshots(_ context.Context, before time.Time) (int64, error) {
	s.cutoff = before
	return s.archived, s.err
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	blob := &stubBlobArchiver{archived: 42}
	a := NewArchiver(blob, 30, "0 3 * * *", slog.New(slog.DiscardHandler))

	start := time.Now().UTC()
	require.NoError(t, a.Run(context.Background()))

	expected := start.Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, expected, blob.cutoff, time.Minute)
}

func TestParseCron(t *testing.T) {
	c, err := parseCron("0 3 * * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2025, 6, 1, 3, 1, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)))

	_, err = parseCron("0 3 * *")
	assert.ErrorContains(t, err, "5 fields")

	_, err = parseCron("x 3 * * *")
	assert.ErrorContains(t, err, "minute field")
}

func TestParseCronLists(t *testing.T) {
	c, err := parseCron("0,30 * 1,15 * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)))
	assert.True(t, c.matchesTime(time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)))
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, 6, 1, 2, 15, 30, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), next)

	// Already past today's trigger: rolls to tomorrow.
	next, err = nextCronTime("0 3 * * *", time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC), next)

	// Day-of-week constraint: next Sunday (2025-06-01 is a Sunday).
	next, err = nextCronTime("0 0 * * 0", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), next)

	_, err = nextCronTime("bad", after)
	assert.Error(t, err)
}
