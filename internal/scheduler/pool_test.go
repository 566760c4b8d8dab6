package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewPool(Options{Width: 2, QueueDepth: 4})
	pool.Start(context.Background())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		err := pool.Submit(Task{
			JobID: "job",
			Run: func(context.Context) {
				ran.Add(1)
				wg.Done()
			},
		})
		require.NoError(t, err)
	}

	wg.Wait()
	pool.Shutdown()
	assert.Equal(t, int32(4), ran.Load())
}

func TestPool_WidthOneSerializesExecution(t *testing.T) {
	pool := NewPool(Options{Width: 1, QueueDepth: 8})
	pool.Start(context.Background())
	defer pool.Shutdown()

	var mu sync.Mutex
	var order []string
	var inFlight, maxInFlight int32
	done := make(chan struct{}, 3)

	run := func(id string) func(context.Context) {
		return func(context.Context) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			atomic.AddInt32(&inFlight, -1)
			done <- struct{}{}
		}
	}

	require.NoError(t, pool.Submit(Task{JobID: "a", Run: run("a")}))
	require.NoError(t, pool.Submit(Task{JobID: "b", Run: run("b")}))
	require.NoError(t, pool.Submit(Task{JobID: "c", Run: run("c")}))

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks did not finish in time")
		}
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	// FIFO admission: a single worker drains the queue in order.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPool_SubmitRejectsWhenQueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	pool := NewPool(Options{Width: 1, QueueDepth: 2})

	require.NoError(t, pool.Submit(Task{JobID: "a", Run: func(context.Context) {}}))
	require.NoError(t, pool.Submit(Task{JobID: "b", Run: func(context.Context) {}}))

	err := pool.Submit(Task{JobID: "c", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPool_SubmitRejectsAfterShutdown(t *testing.T) {
	pool := NewPool(Options{Width: 1, QueueDepth: 1})
	pool.Start(context.Background())
	pool.Shutdown()

	err := pool.Submit(Task{JobID: "a", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_ConcurrentSubmitDuringShutdown(t *testing.T) {
	// Submissions racing Shutdown must resolve to an admission error or a
	// clean accept, never a send on the closed task channel.
	for i := 0; i < 200; i++ {
		pool := NewPool(Options{Width: 2, QueueDepth: 4})
		pool.Start(context.Background())

		var wg sync.WaitGroup
		for s := 0; s < 8; s++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := pool.Submit(Task{JobID: "race", Run: func(context.Context) {}})
				if err != nil {
					assert.True(t, errors.Is(err, ErrPoolClosed) || errors.Is(err, ErrQueueFull), err)
				}
			}()
		}
		pool.Shutdown()
		wg.Wait()
	}
}

func TestPool_PanicConvertsToTaskFailure(t *testing.T) {
	pool := NewPool(Options{Width: 1, QueueDepth: 2})
	pool.Start(context.Background())

	failed := make(chan string, 1)
	require.NoError(t, pool.Submit(Task{
		JobID: "boom",
		Run:   func(context.Context) { panic("kaboom") },
		Fail:  func(msg string) { failed <- msg },
	}))

	var ran atomic.Bool
	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		JobID: "after",
		Run: func(context.Context) {
			ran.Store(true)
			close(done)
		},
	}))

	select {
	case msg := <-failed:
		assert.Contains(t, msg, "internal fault")
		assert.Contains(t, msg, "kaboom")
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not converted into a task failure")
	}

	// The worker survives the panic and keeps processing.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	pool.Shutdown()
	assert.True(t, ran.Load())
}
