package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

func queuedEvent(block uint64) queueItem {
	return queueItem{ev: ir.Event{
		Kind:     ir.KindVideoRemoved,
		Position: ir.Position{Block: block},
		Payload:  ir.VideoRemoved{VideoID: block},
	}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := uint64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(queuedEvent(i)))
	}

	for i := uint64(1); i <= 3; i++ {
		it, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, it.ev.Position.Block)
	}
}

func TestEventQueue_CarriesStreamError(t *testing.T) {
	q := newEventQueue()
	streamErr := errors.New("bad line")

	q.Enqueue(queuedEvent(1))
	q.Enqueue(queueItem{err: streamErr})

	it, ok := q.TryDequeue()
	require.True(t, ok)
	assert.NoError(t, it.err)

	it, ok = q.TryDequeue()
	require.True(t, ok)
	assert.ErrorIs(t, it.err, streamErr)
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(queuedEvent(1))
	}()

	select {
	case <-q.Wait():
		assert.Equal(t, 1, q.Len())
	case <-time.After(time.Second):
		t.Fatal("wait did not signal after enqueue")
	}
}

func TestEventQueue_Drained(t *testing.T) {
	q := newEventQueue()

	// A leftover signal on an open queue is not the end of the stream.
	q.Enqueue(queuedEvent(1))
	q.TryDequeue()
	<-q.Wait()
	assert.False(t, q.Drained())

	q.Enqueue(queuedEvent(2))
	q.Close()
	assert.False(t, q.Drained(), "closed queue with items is not drained")

	q.TryDequeue()
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait should not block once the queue is closed")
	}
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(queuedEvent(1)), "enqueue after close should return false")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(queuedEvent(1))
	q.Enqueue(queuedEvent(2))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(queuedEvent(uint64(producerID*1000 + i)))
			}
		}(p)
	}

	received := 0
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for received < producers*eventsPerProducer {
			if _, ok := q.TryDequeue(); !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			received++
		}
	}()

	wg.Wait()

	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer timeout")
	}

	assert.Equal(t, producers*eventsPerProducer, received)
}
