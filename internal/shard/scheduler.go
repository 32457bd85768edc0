package shard

import (
	"container/heap"
	"time"
)

// Callback отложенное действие. now время срабатывания по часам шарда.
type Callback func(now time.Time)

// scheduled элемент очереди отложенных вызовов
type scheduled struct {
	at  time.Time
	seq uint64 // Порядок постановки: при равном времени раньше вызывается поставленный раньше
	fn  Callback
}

// callbackQueue реализует heap.Interface (min-heap по времени)
type callbackQueue []*scheduled

func (q callbackQueue) Len() int { return len(q) }

func (q callbackQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	return q[i].seq < q[j].seq
}

func (q callbackQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *callbackQueue) Push(x interface{}) {
	*q = append(*q, x.(*scheduled))
}

func (q *callbackQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // избегаем утечки памяти
	*q = old[:n-1]
	return item
}

// Scheduler очередь отложенных вызовов шарда. Отмены нет: вызов сам
// перепроверяет, актуален ли он. Не потокобезопасен, используется только
// из цикла шарда.
type Scheduler struct {
	queue callbackQueue
	seq   uint64
}

// NewScheduler создаёт пустую очередь
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// At ставит fn на момент at
func (s *Scheduler) At(at time.Time, fn Callback) {
	s.seq++
	heap.Push(&s.queue, &scheduled{at: at, seq: s.seq, fn: fn})
}

// After ставит fn через d после now
func (s *Scheduler) After(now time.Time, d time.Duration, fn Callback) {
	s.At(now.Add(d), fn)
}

// Len количество ожидающих вызовов
func (s *Scheduler) Len() int {
	return s.queue.Len()
}

// Next время ближайшего вызова
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].at, true
}

// RunDue вызывает все наступившие к now callbacks в порядке времени и
// постановки. Вызовы, поставленные во время выполнения на момент <= now,
// тоже выполняются в этом проходе. Возвращает количество вызовов.
func (s *Scheduler) RunDue(now time.Time) int {
	n := 0
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		item := heap.Pop(&s.queue).(*scheduled)
		item.fn(now)
		n++
	}
	return n
}
