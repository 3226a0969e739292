package player

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/av"
)

func TestPacketQueueFIFO(t *testing.T) {
	q := newPacketQueue()

	for i := 0; i < 100; i++ {
		err := q.put(&av.Packet{PTS: int64(i), Data: make([]byte, i)})
		require.NoError(t, err)
	}

	require.Equal(t, 100, q.len())
	require.Equal(t, 99*100/2+100*packetEntryOverhead, q.byteSize())

	for i := 0; i < 100; i++ {
		pkt, res := q.get(true)
		require.Equal(t, getOK, res)
		require.Equal(t, int64(i), pkt.PTS)
		q.done()
	}

	require.Equal(t, 0, q.byteSize())
	require.True(t, q.idle())

	_, res := q.get(false)
	require.Equal(t, getWouldBlock, res)
}

func TestPacketQueueAbortUnblocks(t *testing.T) {
	q := newPacketQueue()

	var wg sync.WaitGroup
	results := make(chan getResult, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, res := q.get(true)
			results <- res
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.abort()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumers are still blocked")
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, getAborted, <-results)
	}

	_, res := q.get(true)
	require.Equal(t, getAborted, res)

	err := q.put(&av.Packet{Data: []byte{1}})
	require.ErrorIs(t, err, errQueueAborted)
}

func TestPacketQueueFlush(t *testing.T) {
	q := newPacketQueue()
	require.Equal(t, 0, q.len())
	require.True(t, q.idle())

	q.put(&av.Packet{Data: []byte{1, 2, 3}}) //nolint:errcheck
	q.flush()
	require.Equal(t, 0, q.len())
	require.Equal(t, 0, q.byteSize())

	q.put(flushPacket) //nolint:errcheck
	require.Equal(t, packetEntryOverhead, q.byteSize())
}

func TestPacketQueueBusy(t *testing.T) {
	q := newPacketQueue()
	q.put(flushPacket) //nolint:errcheck

	pkt, res := q.get(false)
	require.Equal(t, getOK, res)
	require.True(t, isFlushPacket(pkt))
	require.False(t, q.idle())
	q.done()
	require.True(t, q.idle())
}
