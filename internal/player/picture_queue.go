package player

import (
	"sync"
)

const pictureQueueSize = 2

// picture is a decoded, scaled frame waiting to be displayed.
// Pixels are double buffered, so that a renderer still reading the
// previous buffer of a slot is not overwritten by the next write.
type picture struct {
	pts         float64
	targetClock float64
	pos         int64
	width       int
	height      int
	buffers     [2][]byte
	active      int
}

func (p *picture) pixels() []byte {
	return p.buffers[p.active]
}

// nextBuffer switches to the other buffer and returns it, reallocating
// both buffers when dimensions change.
func (p *picture) nextBuffer(width int, height int) []byte {
	if p.buffers[0] == nil || width != p.width || height != p.height {
		p.width = width
		p.height = height
		p.buffers[0] = make([]byte, width*height*4)
		p.buffers[1] = make([]byte, width*height*4)
	}

	p.active = (p.active + 1) % 2
	return p.buffers[p.active]
}

// pictureQueue is a bounded ring of pictures shared between the video
// decoder (producer) and the refresh scheduler (consumer).
type pictureQueue struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	pics    [pictureQueueSize]picture
	rindex  int
	windex  int
	count   int
	aborted bool

	// set by acquire, cleared by release and discard
	acquired bool
}

func newPictureQueue() *pictureQueue {
	q := &pictureQueue{}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// reserve waits for a free slot and returns it.
func (q *pictureQueue) reserve() (*picture, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.count >= pictureQueueSize && !q.aborted {
		q.cond.Wait()
	}

	if q.aborted {
		return nil, false
	}

	return &q.pics[q.windex], true
}

// publish makes the reserved slot visible to the consumer.
// setTarget is called with the queue locked.
func (q *pictureQueue) publish(setTarget func(pic *picture)) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	pic := &q.pics[q.windex]
	setTarget(pic)

	q.windex = (q.windex + 1) % pictureQueueSize
	q.count++
	q.cond.Broadcast()
}

// acquire returns the oldest picture without removing it.
func (q *pictureQueue) acquire(block bool) (*picture, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.count == 0 && block && !q.aborted {
		q.cond.Wait()
	}

	if q.count == 0 || q.aborted {
		return nil, false
	}

	q.acquired = true
	return &q.pics[q.rindex], true
}

func (q *pictureQueue) target(pic *picture) float64 {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return pic.targetClock
}

// nextTarget returns the target clock of the picture after the oldest one, if any.
func (q *pictureQueue) nextTarget() (float64, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.count < 2 {
		return 0, false
	}

	return q.pics[(q.rindex+1)%pictureQueueSize].targetClock, true
}

// release removes pic, if it is still the oldest picture and it
// has not been discarded since it was acquired.
func (q *pictureQueue) release(pic *picture) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !q.acquired || q.count == 0 || &q.pics[q.rindex] != pic {
		return
	}

	q.acquired = false

	q.rindex = (q.rindex + 1) % pictureQueueSize
	q.count--
	q.cond.Broadcast()
}

func (q *pictureQueue) abort() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.aborted = true
	q.cond.Broadcast()
}

// clearTargets makes every queued picture due immediately.
func (q *pictureQueue) clearTargets() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i := range q.pics {
		q.pics[i].targetClock = 0
	}
}

// discard drops every queued picture.
func (q *pictureQueue) discard() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.rindex = q.windex
	q.count = 0
	q.acquired = false
	q.cond.Broadcast()
}

func (q *pictureQueue) waitEmpty() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.count != 0 && !q.aborted {
		q.cond.Wait()
	}
}

func (q *pictureQueue) size() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.count
}

func (q *pictureQueue) full() bool {
	return q.size() >= pictureQueueSize
}
