package sim

import "sync"

// Feed is the session activity log shown in the UI log panel: a bounded
// line buffer plus live fan-out to subscribers. Slow subscribers drop lines
// rather than stall the simulation.
type Feed struct {
	mu    sync.Mutex
	lines []string
	max   int
	subs  map[chan string]struct{}
}

// NewFeed returns a feed retaining the last max lines.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 100
	}
	return &Feed{max: max, subs: make(map[chan string]struct{})}
}

// Append adds a line and fans it out.
func (f *Feed) Append(line string) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	if len(f.lines) > f.max {
		f.lines = f.lines[len(f.lines)-f.max:]
	}
	for ch := range f.subs {
		select {
		case ch <- line:
		default:
		}
	}
	f.mu.Unlock()
}

// Lines returns a copy of the retained lines, oldest first.
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Subscribe registers a live listener.
func (f *Feed) Subscribe() chan string {
	ch := make(chan string, 32)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (f *Feed) Unsubscribe(ch chan string) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}
