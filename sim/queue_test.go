package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitQueue_Peek_NonEmpty_ReturnsFront(t *testing.T) {
	// GIVEN a queue with patients [1, 2]
	wq := &WaitQueue{}
	p1 := NewPatient(1, 0)
	p2 := NewPatient(2, 0)
	wq.Enqueue(p1)
	wq.Enqueue(p2)

	// WHEN Peek() is called
	got := wq.Peek()

	// THEN it returns the front element without removing it
	if got != p1 {
		t.Errorf("Peek: got patient %v, want %v", got.ID, p1.ID)
	}
	if wq.Len() != 2 {
		t.Errorf("Peek modified queue length: got %d, want 2", wq.Len())
	}
}

func TestWaitQueue_Peek_Empty_ReturnsNil(t *testing.T) {
	// GIVEN an empty queue
	wq := &WaitQueue{}

	// WHEN Peek() and Dequeue() are called
	// THEN both return nil
	assert.Nil(t, wq.Peek())
	assert.Nil(t, wq.Dequeue())
}

func TestWaitQueue_Dequeue_FIFOOrder(t *testing.T) {
	// GIVEN patients enqueued in order 1..5
	wq := &WaitQueue{}
	for id := int64(1); id <= 5; id++ {
		wq.Enqueue(NewPatient(id, float64(id)))
	}
	assert.Equal(t, "[1 2 3 4 5]", wq.String())

	// WHEN all are dequeued
	// THEN they come out in the same order
	for want := int64(1); want <= 5; want++ {
		p := wq.Dequeue()
		if p.ID != want {
			t.Errorf("Dequeue: got patient %d, want %d", p.ID, want)
		}
	}
	assert.Equal(t, 0, wq.Len())
}

func TestWaitQueue_Enqueue_Nil_Panics(t *testing.T) {
	wq := &WaitQueue{}
	assert.Panics(t, func() { wq.Enqueue(nil) })
}
