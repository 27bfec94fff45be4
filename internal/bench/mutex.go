// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench

import (
	"sync"

	"code.hybscloud.com/msq"
)

// mutexQueue is the lock-based FIFO baseline.
type mutexQueue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

func (q *mutexQueue[T]) Enqueue(elem *T) error {
	q.mu.Lock()
	q.items = append(q.items, *elem)
	q.mu.Unlock()
	return nil
}

func (q *mutexQueue[T]) Dequeue() (T, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return zero, msq.ErrWouldBlock
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, nil
}

func (q *mutexQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// mutexStack is the lock-based LIFO baseline.
type mutexStack[T any] struct {
	mu    sync.Mutex
	items []T
}

func (s *mutexStack[T]) Enqueue(elem *T) error {
	s.mu.Lock()
	s.items = append(s.items, *elem)
	s.mu.Unlock()
	return nil
}

func (s *mutexStack[T]) Dequeue() (T, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 {
		return zero, msq.ErrWouldBlock
	}
	item := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return item, nil
}

func (s *mutexStack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
