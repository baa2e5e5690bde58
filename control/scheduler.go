package control

import (
	"sync"
	"time"

	"github.com/ftl/tracescope/playback"
)

// loopScheduler runs the ticks of every task on the controller's event loop. A ticker
// goroutine hands one tick at a time to the loop, further ticks are dropped until the
// loop took the pending one.
type loopScheduler struct {
	op   chan<- func()
	stop <-chan struct{}
}

type tickerTask struct {
	done chan struct{}
	once sync.Once
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (s *loopScheduler) Every(interval time.Duration, tick func()) playback.Task {
	task := &tickerTask{done: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-task.done:
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}

			select {
			case s.op <- tick:
			case <-task.done:
				return
			case <-s.stop:
				return
			}
		}
	}()

	return task
}
