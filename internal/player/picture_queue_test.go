package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPictureQueueCapacity(t *testing.T) {
	q := newPictureQueue()

	for i := 0; i < pictureQueueSize; i++ {
		pic, ok := q.reserve()
		require.True(t, ok)
		pic.pts = float64(i)
		q.publish(func(pic *picture) { pic.targetClock = pic.pts })
	}
	require.True(t, q.full())

	reserved := make(chan struct{})
	go func() {
		q.reserve()
		close(reserved)
	}()

	select {
	case <-reserved:
		t.Fatal("producer did not block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	pic, ok := q.acquire(false)
	require.True(t, ok)
	require.Equal(t, float64(0), pic.pts)

	next, ok := q.nextTarget()
	require.True(t, ok)
	require.Equal(t, float64(1), next)

	q.release(pic)
	q.release(pic)

	select {
	case <-reserved:
	case <-time.After(time.Second):
		t.Fatal("producer was not woken up")
	}

	require.Equal(t, 1, q.size())
}

func TestPictureQueueAbort(t *testing.T) {
	q := newPictureQueue()

	done := make(chan bool)
	go func() {
		_, ok := q.acquire(true)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.abort()

	require.False(t, <-done)

	_, ok := q.reserve()
	require.False(t, ok)
	q.waitEmpty()
}

func TestPictureQueueClearTargets(t *testing.T) {
	q := newPictureQueue()
	pic, _ := q.reserve()
	pic.pts = 3
	q.publish(func(pic *picture) { pic.targetClock = 10 })

	q.clearTargets()
	pic, ok := q.acquire(false)
	require.True(t, ok)
	require.Equal(t, float64(0), q.target(pic))

	q.discard()
	require.Equal(t, 0, q.size())
	_, ok = q.acquire(false)
	require.False(t, ok)
}

func TestPictureQueueReleaseAfterDiscard(t *testing.T) {
	q := newPictureQueue()

	for i := 0; i < pictureQueueSize; i++ {
		pic, _ := q.reserve()
		pic.pts = float64(i)
		q.publish(func(*picture) {})
	}

	stale, ok := q.acquire(false)
	require.True(t, ok)

	q.discard()

	pic, ok := q.reserve()
	require.True(t, ok)
	require.Same(t, stale, pic)
	pic.pts = 10
	q.publish(func(*picture) {})

	q.release(stale)
	require.Equal(t, 1, q.size())

	pic, ok = q.acquire(false)
	require.True(t, ok)
	require.Equal(t, float64(10), pic.pts)

	q.release(pic)
	require.Equal(t, 0, q.size())
}

func TestPictureDoubleBuffer(t *testing.T) {
	var pic picture
	a := pic.nextBuffer(2, 2)
	b := pic.nextBuffer(2, 2)
	require.Len(t, a, 16)
	require.NotSame(t, &a[0], &b[0])
	require.Same(t, &b[0], &pic.pixels()[0])

	c := pic.nextBuffer(4, 2)
	require.Len(t, c, 32)
	require.Equal(t, 4, pic.width)
}
