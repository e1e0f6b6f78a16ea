package domain

// Window is a fixed-capacity FIFO of samples with strictly increasing
// block numbers, kept in a ring buffer.
type Window struct {
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Sample, capacity)}
}

// Insert appends s, evicting the oldest sample when full. Samples whose block
// number does not exceed the newest one are rejected.
func (w *Window) Insert(s Sample) bool {
	if last, ok := w.Latest(); ok && s.BlockNumber <= last.BlockNumber {
		return false
	}

	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = s
		w.count++
		return true
	}

	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
	return true
}

// Latest returns the newest sample.
func (w *Window) Latest() (Sample, bool) {
	if w.count == 0 {
		return Sample{}, false
	}
	return w.buf[(w.head+w.count-1)%len(w.buf)], true
}

// Samples returns the window contents, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

func (w *Window) Len() int { return w.count }
func (w *Window) Cap() int { return len(w.buf) }
