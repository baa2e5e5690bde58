package playback

import "time"

// Task is a cancellable repeating task. Stopping a stopped task is a no-op.
type Task interface {
	Stop()
}

// Scheduler runs tick repeatedly with the given interval until the returned task is stopped.
// Implementations must not run two ticks of the same task concurrently.
type Scheduler interface {
	Every(interval time.Duration, tick func()) Task
}

// ManualScheduler collects tasks and runs them only when Fire is called.
// It is meant for tests and other deterministic drivers of the playback.
type ManualScheduler struct {
	tasks []*manualTask
}

type manualTask struct {
	interval time.Duration
	tick     func()
	stopped  bool
}

func (t *manualTask) Stop() {
	t.stopped = true
}

func (s *ManualScheduler) Every(interval time.Duration, tick func()) Task {
	task := &manualTask{interval: interval, tick: tick}
	s.tasks = append(s.tasks, task)
	return task
}

// Fire runs every active task once and returns the number of tasks that were run.
func (s *ManualScheduler) Fire() int {
	active := s.activeTasks()
	for _, task := range active {
		if !task.stopped {
			task.tick()
		}
	}
	return len(active)
}

// FireUntilIdle fires until no task is active anymore or n rounds are done.
// It returns the number of rounds.
func (s *ManualScheduler) FireUntilIdle(n int) int {
	rounds := 0
	for rounds < n && s.Fire() > 0 {
		rounds++
	}
	return rounds
}

// Active returns the number of tasks that are not stopped.
func (s *ManualScheduler) Active() int {
	return len(s.activeTasks())
}

// Intervals returns the intervals of all active tasks.
func (s *ManualScheduler) Intervals() []time.Duration {
	active := s.activeTasks()
	result := make([]time.Duration, len(active))
	for i, task := range active {
		result[i] = task.interval
	}
	return result
}

func (s *ManualScheduler) activeTasks() []*manualTask {
	kept := s.tasks[:0]
	for _, task := range s.tasks {
		if !task.stopped {
			kept = append(kept, task)
		}
	}
	s.tasks = kept
	return append([]*manualTask(nil), kept...)
}
