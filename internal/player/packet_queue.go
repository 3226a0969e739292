package player

import (
	"errors"
	"sync"

	"github.com/bluenviron/avplay/internal/av"
)

// accounted on top of the payload of every queued packet.
const packetEntryOverhead = 64

var errQueueAborted = errors.New("queue aborted")

// flushPacket is queued after every seek. Decode loops reset their state when they receive it.
var flushPacket = &av.Packet{StreamIndex: -1}

func isFlushPacket(pkt *av.Packet) bool {
	return pkt == flushPacket
}

type getResult int

const (
	getAborted getResult = iota
	getWouldBlock
	getOK
)

// packetQueue is a FIFO of compressed packets, one per elementary stream.
type packetQueue struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	pkts    []*av.Packet
	size    int
	busy    int
	aborted bool
}

func newPacketQueue() *packetQueue {
	q := &packetQueue{}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *packetQueue) put(pkt *av.Packet) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.aborted {
		return errQueueAborted
	}

	q.pkts = append(q.pkts, pkt)
	q.size += pkt.Size() + packetEntryOverhead
	q.cond.Signal()

	return nil
}

// get returns the oldest packet. The caller must call done() once it has processed it.
func (q *packetQueue) get(block bool) (*av.Packet, getResult) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for {
		if q.aborted {
			return nil, getAborted
		}

		if len(q.pkts) != 0 {
			pkt := q.pkts[0]
			q.pkts[0] = nil
			q.pkts = q.pkts[1:]
			q.size -= pkt.Size() + packetEntryOverhead
			q.busy++
			return pkt, getOK
		}

		if !block {
			return nil, getWouldBlock
		}

		q.cond.Wait()
	}
}

func (q *packetQueue) done() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.busy > 0 {
		q.busy--
	}
}

func (q *packetQueue) flush() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.pkts = nil
	q.size = 0
}

func (q *packetQueue) abort() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.aborted = true
	q.cond.Broadcast()
}

func (q *packetQueue) isAborted() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.aborted
}

func (q *packetQueue) byteSize() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.size
}

func (q *packetQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.pkts)
}

// idle returns true when the queue is empty and no packet is being processed.
func (q *packetQueue) idle() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.pkts) == 0 && q.busy == 0
}
