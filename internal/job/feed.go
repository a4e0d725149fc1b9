package job

import "sync"

// feedBuffer is the per-subscriber channel depth. A slow consumer drops
// intermediate snapshots rather than blocking the pipeline; the next update
// carries the full job state anyway.
const feedBuffer = 16

// Feed is a process-local change-notification hub. The orchestrator
// publishes a job snapshot after every persisted mutation; subscribers (the
// SSE endpoint) receive them in publish order.
type Feed struct {
	mu   sync.RWMutex
	subs map[string]map[chan *Job]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		subs: make(map[string]map[chan *Job]struct{}),
	}
}

// Subscribe registers for updates of one job. The returned cancel function
// must be called to release the subscription; the channel is closed by it.
func (f *Feed) Subscribe(jobID string) (<-chan *Job, func()) {
	ch := make(chan *Job, feedBuffer)

	f.mu.Lock()
	if f.subs[jobID] == nil {
		f.subs[jobID] = make(map[chan *Job]struct{})
	}
	f.subs[jobID][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[jobID], ch)
			if len(f.subs[jobID]) == 0 {
				delete(f.subs, jobID)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish fans a snapshot of job out to its subscribers. Never blocks.
func (f *Feed) Publish(job *Job) {
	snapshot := job.Clone()

	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[snapshot.ID] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
