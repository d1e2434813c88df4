package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionHistogramEmptyCollection(t *testing.T) {
	s := newTestStore(t)
	bars := s.CompletionHistogram(5, 6)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, bars)
}

func TestCompletionHistogramCumulative(t *testing.T) {
	now := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	clock := now
	s := newTestStore(t, WithClock(func() time.Time { return clock }))

	// One completed item created three days ago, one created today.
	clock = now.AddDate(0, 0, -3)
	old, err := s.Create(CreateInput{Title: "old"})
	require.NoError(t, err)
	clock = now
	recent, err := s.Create(CreateInput{Title: "recent"})
	require.NoError(t, err)

	_, err = s.ToggleCompleted(old.ID)
	require.NoError(t, err)
	_, err = s.ToggleCompleted(recent.ID)
	require.NoError(t, err)

	// Days: -4 -3 -2 -1 0. The old item counts from day -3 on, the
	// recent one only today. Max bucket is 2, scaled to 6.
	bars := s.CompletionHistogram(5, 6)
	assert.Equal(t, []int{1, 3, 3, 3, 6}, bars)
}

func TestCompletionHistogramIgnoresIncomplete(t *testing.T) {
	now := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	_, err := s.Create(CreateInput{Title: "open"})
	require.NoError(t, err)

	bars := s.CompletionHistogram(3, 6)
	assert.Equal(t, []int{1, 1, 1}, bars)
}

func TestCompletionHistogramDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	done, err := s.Create(CreateInput{Title: "done"})
	require.NoError(t, err)
	_, err = s.ToggleCompleted(done.ID)
	require.NoError(t, err)

	first := s.CompletionHistogram(7, 6)
	second := s.CompletionHistogram(7, 6)
	assert.Equal(t, first, second)
	assert.Len(t, first, 7)
}

func TestCompletionHistogramBadInput(t *testing.T) {
	s := newTestStore(t)
	assert.Nil(t, s.CompletionHistogram(0, 6))
	assert.Equal(t, []int{1}, s.CompletionHistogram(1, 0))
}
