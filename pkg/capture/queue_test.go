package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/storage"
)

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	kv, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewQueue(kv, opts...)
}

func TestOfferPassThroughWhenGateClosed(t *testing.T) {
	q := newTestQueue(t, WithHoldGate(func() bool { return false }))

	_, held, err := q.Offer("Slack", "Design sync starts in 10 minutes")
	require.NoError(t, err)
	assert.False(t, held)
	assert.Empty(t, q.Pending())
}

func TestOfferHoldsAndCategorizes(t *testing.T) {
	q := newTestQueue(t)

	item, held, err := q.Offer("Slack", "Design sync starts in 10 minutes")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, CategoryWork, item.Category)
	assert.True(t, item.Muted)

	item, _, err = q.Offer("Instagram", "New likes on your post")
	require.NoError(t, err)
	assert.Equal(t, CategorySocial, item.Category)

	item, _, err = q.Offer("SomeRandomApp", "hello")
	require.NoError(t, err)
	assert.Equal(t, CategoryPersonal, item.Category)

	require.Len(t, q.Pending(), 3)
}

func TestAssignOverridesDefault(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Assign("Slack", CategoryPersonal))
	item, _, err := q.Offer("slack", "after hours ping")
	require.NoError(t, err)
	assert.Equal(t, CategoryPersonal, item.Category)

	require.ErrorIs(t, q.Assign("Slack", Category("Nonsense")), ErrBadCategory)
}

func TestReleaseDrainsQueue(t *testing.T) {
	q := newTestQueue(t)

	_, _, err := q.Offer("Gmail", "Figma handoff from Product team")
	require.NoError(t, err)
	_, _, err = q.Offer("LinkedIn", "Someone viewed your profile")
	require.NoError(t, err)

	released, err := q.Release()
	require.NoError(t, err)
	require.Len(t, released, 2)
	assert.Equal(t, "Gmail", released[0].App)
	assert.Empty(t, q.Pending())

	// Releasing an empty queue is a no-op.
	released, err = q.Release()
	require.NoError(t, err)
	assert.Nil(t, released)
}

func TestQueuePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	q := NewQueue(kv)
	_, _, err = q.Offer("Slack", "held")
	require.NoError(t, err)

	kv2, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	require.Len(t, NewQueue(kv2).Pending(), 1)
}

func TestSectionsGroupByLocalDay(t *testing.T) {
	now := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	clock := now.AddDate(0, 0, -1)
	q := newTestQueue(t, WithClock(func() time.Time { return clock }))

	_, _, err := q.Offer("Calendar", "Weekly review with yourself")
	require.NoError(t, err)
	clock = now
	_, _, err = q.Offer("Slack", "Design sync starts in 10 minutes")
	require.NoError(t, err)

	sections := q.Sections(time.UTC)
	require.Len(t, sections, 2)
	require.Len(t, sections["2024-06-01"], 1)
	require.Len(t, sections["2024-06-02"], 1)
	assert.Equal(t, "Slack", sections["2024-06-02"][0].App)
}

func TestCorruptQueueDegradesToEmpty(t *testing.T) {
	kv, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Put("captured", []byte("{{{")))

	assert.Empty(t, NewQueue(kv).Pending())
}
