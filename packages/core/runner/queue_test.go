package runner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultQueue_DrainBounded(t *testing.T) {
	q := NewResultQueue()
	for i := 0; i < 5; i++ {
		require.True(t, q.Push(&RequestResult{Attempts: i}))
	}

	first := q.Drain(2)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Attempts)
	assert.Equal(t, 1, first[1].Attempts)
	assert.Equal(t, 3, q.Len())

	rest := q.Drain(0)
	assert.Len(t, rest, 3)
	assert.Nil(t, q.Drain(10))
	assert.Equal(t, int64(5), q.Pushed())
}

func TestResultQueue_Close(t *testing.T) {
	q := NewResultQueue()
	q.Push(&RequestResult{Name: "kept"})
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Push(&RequestResult{Name: "dropped"}))
	batch := q.Drain(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "kept", batch[0].Name)
}

func TestResultQueue_ConcurrentProducers(t *testing.T) {
	q := NewResultQueue()
	const producers, perProducer = 8, 250

	var batches, total int
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Consume(64, func(batch []*RequestResult) {
			assert.LessOrEqual(t, len(batch), 64)
			batches++
			total += len(batch)
		})
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&RequestResult{})
			}
		}()
	}
	wg.Wait()
	q.Close()
	<-done

	assert.Equal(t, producers*perProducer, total)
	assert.GreaterOrEqual(t, batches, producers*perProducer/64)
	assert.Equal(t, 0, q.Len())
}
