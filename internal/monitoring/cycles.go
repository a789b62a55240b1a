package monitoring

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// CycleSample is the timing of one completed control cycle.
type CycleSample struct {
	Cycle uint64
	Phase string
	Busy  time.Duration
	Sleep time.Duration
}

// CycleLog keeps the most recent cycle samples in a fixed ring.
type CycleLog struct {
	mu    sync.Mutex
	buf   []CycleSample
	next  int
	count int
}

// NewCycleLog returns a CycleLog holding up to capacity samples.
func NewCycleLog(capacity int) *CycleLog {
	if capacity < 1 {
		capacity = 1
	}
	return &CycleLog{buf: make([]CycleSample, capacity)}
}

// Record appends s, evicting the oldest sample when full.
func (l *CycleLog) Record(s CycleSample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = s
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

// Samples returns the retained samples, oldest first.
func (l *CycleLog) Samples() []CycleSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CycleSample, 0, l.count)
	start := (l.next - l.count + len(l.buf)) % len(l.buf)
	for i := 0; i < l.count; i++ {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}

// CycleChartHandler renders the samples of log as an HTML line chart of busy
// and sleep time per cycle.
func CycleChartHandler(log *CycleLog, period time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		samples := log.Samples()
		if len(samples) == 0 {
			http.Error(w, "no cycles recorded yet", http.StatusNotFound)
			return
		}

		x := make([]uint64, 0, len(samples))
		busy := make([]opts.LineData, 0, len(samples))
		sleep := make([]opts.LineData, 0, len(samples))
		overruns := 0
		for _, s := range samples {
			x = append(x, s.Cycle)
			busy = append(busy, opts.LineData{Value: ms(s.Busy)})
			sleep = append(sleep, opts.LineData{Value: ms(s.Sleep)})
			if s.Busy > period {
				overruns++
			}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Control cycles", Theme: "dark", Width: "1200px", Height: "600px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    "Control cycle timing",
				Subtitle: fmt.Sprintf("period=%s cycles=%d..%d overruns=%d", period, x[0], x[len(x)-1], overruns),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "cycle", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "ms", NameLocation: "middle", NameGap: 30}),
		)
		line.SetXAxis(x).
			AddSeries("busy", busy).
			AddSeries("sleep", sleep)

		var buf bytes.Buffer
		if err := line.Render(&buf); err != nil {
			http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	})
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
