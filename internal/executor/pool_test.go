package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_SubmitRunsTask(t *testing.T) {
	p := New(4)
	defer p.Stop()

	var ran atomic.Bool
	done := make(chan struct{})
	p.Submit(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.True(t, ran.Load())
}

func TestPool_WaitAll(t *testing.T) {
	p := New(4)
	defer p.Stop()

	var count atomic.Int32
	const n = 100
	for i := 0; i < n; i++ {
		p.Submit(func() {
			count.Add(1)
		})
	}

	p.WaitAll()
	assert.Equal(t, int32(n), count.Load())
}

func TestPool_FIFOOrderWithinWorker(t *testing.T) {
	p := New(1)
	defer p.Stop()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		p.Submit(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_StopJoinsWorkers(t *testing.T) {
	p := New(4)
	p.Submit(func() {})
	p.WaitAll()
	p.Stop()
}

func TestPool_WaitAllWithNoTasks(t *testing.T) {
	p := New(2)
	defer p.Stop()
	p.WaitAll()
}
