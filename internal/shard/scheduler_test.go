package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerOrder(t *testing.T) {
	s := NewScheduler()
	base := time.Unix(1700000000, 0)
	var got []string

	s.At(base.Add(200*time.Millisecond), func(time.Time) { got = append(got, "c") })
	s.At(base.Add(100*time.Millisecond), func(time.Time) { got = append(got, "a") })
	s.At(base.Add(100*time.Millisecond), func(time.Time) { got = append(got, "b") })
	s.After(base, time.Second, func(time.Time) { got = append(got, "d") })

	next, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, base.Add(100*time.Millisecond), next)

	assert.Equal(t, 0, s.RunDue(base), "ничего не наступило")
	assert.Equal(t, 3, s.RunDue(base.Add(500*time.Millisecond)))
	assert.Equal(t, []string{"a", "b", "c"}, got, "равное время - в порядке постановки")
	assert.Equal(t, 1, s.Len())

	s.RunDue(base.Add(time.Second))
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	_, ok = s.Next()
	assert.False(t, ok)
}

func TestSchedulerNestedCallbacks(t *testing.T) {
	s := NewScheduler()
	now := time.Unix(1700000000, 0)
	calls := 0

	s.At(now, func(at time.Time) {
		calls++
		s.At(at, func(time.Time) { calls++ })
		s.After(at, time.Minute, func(time.Time) { calls++ })
	})

	assert.Equal(t, 2, s.RunDue(now), "вызов на текущий момент выполняется в том же проходе")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, s.Len())
}
