package motiondetection

// DetectionWindow is a fixed capacity FIFO of instantaneous detections.
// Pushing onto a full window evicts the oldest entry.
type DetectionWindow struct {
	entries []bool
	start   int
	length  int
	hits    int
}

// NewDetectionWindow creates a window holding up to capacity entries.
// Capacities below 1 are raised to 1.
func NewDetectionWindow(capacity int) *DetectionWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &DetectionWindow{entries: make([]bool, capacity)}
}

func (w *DetectionWindow) Push(hit bool) {
	capacity := len(w.entries)
	if w.length == capacity {
		if w.entries[w.start] {
			w.hits--
		}
		w.entries[w.start] = hit
		w.start = (w.start + 1) % capacity
	} else {
		w.entries[(w.start+w.length)%capacity] = hit
		w.length++
	}
	if hit {
		w.hits++
	}
}

// Ratio is the share of hits among the current entries, 0 when empty.
func (w *DetectionWindow) Ratio() float64 {
	if w.length == 0 {
		return 0
	}
	return float64(w.hits) / float64(w.length)
}

func (w *DetectionWindow) Len() int  { return w.length }
func (w *DetectionWindow) Cap() int  { return len(w.entries) }
func (w *DetectionWindow) Hits() int { return w.hits }

// Entries returns the window content, oldest first.
func (w *DetectionWindow) Entries() []bool {
	out := make([]bool, w.length)
	for i := range out {
		out[i] = w.entries[(w.start+i)%len(w.entries)]
	}
	return out
}
