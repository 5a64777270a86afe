package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxTrackable bounds recorded latencies; longer values are clamped.
const maxTrackable = 10 * time.Minute

// LatencyHistogram is a goroutine-safe hdrhistogram recording durations at
// microsecond resolution.
type LatencyHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewLatencyHistogram() *LatencyHistogram {
	// 1us to 10min, 3 significant figures
	return &LatencyHistogram{
		hist: hdrhistogram.New(1, int64(maxTrackable/time.Microsecond), 3),
	}
}

// Record adds one observation.
func (h *LatencyHistogram) Record(d time.Duration) {
	us := int64(d / time.Microsecond)
	if us < 1 {
		us = 1
	}
	if limit := int64(maxTrackable / time.Microsecond); us > limit {
		us = limit
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// Values are clamped to the trackable range, so RecordValue cannot fail.
	_ = h.hist.RecordValue(us)
}

// Quantile returns the value at q (0-100).
func (h *LatencyHistogram) Quantile(q float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (h *LatencyHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
