// Implements the WaitQueue, which holds patients waiting for a free server at a node.
// Patients are enqueued on arrival when every server is busy.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue represents the FIFO waiting line of one node.
type WaitQueue struct {
	queue []*Patient // FIFO queue of patients
}

// Enqueue adds a patient to the back of the wait queue.
func (wq *WaitQueue) Enqueue(p *Patient) {
	if p == nil {
		panic("Enqueue: patient must not be nil")
	}
	wq.queue = append(wq.queue, p)
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range wq.queue {
		sb.WriteString(fmt.Sprint(p.ID))
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of patients in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the patient at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Peek() *Patient {
	if len(wq.queue) == 0 {
		return nil
	}
	return wq.queue[0]
}

// Dequeue removes and returns the patient at the front of the queue.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Dequeue() *Patient {
	if len(wq.queue) == 0 {
		return nil
	}
	p := wq.queue[0]
	wq.queue[0] = nil
	wq.queue = wq.queue[1:]
	return p
}
