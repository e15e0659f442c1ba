package queue

import "errors"

var ErrQueueFull = errors.New("queue is full")

// Queue represents a bounded FIFO queue. Enqueue never blocks.
type Queue[T any] interface {
	Enqueue(item T) error
	Dequeue() (T, bool)
	Size() int
	ReadAllMessages() []T
	ClearQueue()
}
