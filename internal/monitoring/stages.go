// Package monitoring times the stages of a canopy run.
package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/canopy.report/internal/timeutil"
)

// Logf receives one line per finished stage. It defaults to log.Printf.
var Logf = log.Printf

// SetLogger redirects stage lines to f; nil discards them.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}

// StageDuration is the elapsed time of one named stage.
type StageDuration struct {
	Stage    string
	Duration time.Duration
}

// StageTimer records how long each stage of a run takes.
type StageTimer struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	stages []StageDuration
}

// NewStageTimer returns a timer on clock; nil uses the real clock.
func NewStageTimer(clock timeutil.Clock) *StageTimer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &StageTimer{clock: clock}
}

// Start begins timing stage. The returned function stops it, records the
// duration and logs it through Logf.
func (t *StageTimer) Start(stage string) func() {
	start := t.clock.Now()
	return func() {
		d := t.clock.Since(start)
		t.mu.Lock()
		t.stages = append(t.stages, StageDuration{Stage: stage, Duration: d})
		t.mu.Unlock()
		Logf("[stage] %s took %s", stage, d.Round(time.Millisecond))
	}
}

// Stages returns the recorded durations in completion order.
func (t *StageTimer) Stages() []StageDuration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StageDuration(nil), t.stages...)
}

// Total is the sum of all recorded durations.
func (t *StageTimer) Total() time.Duration {
	var total time.Duration
	for _, s := range t.Stages() {
		total += s.Duration
	}
	return total
}

func (t *StageTimer) String() string {
	stages := t.Stages()
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s=%s", s.Stage, s.Duration.Round(time.Millisecond)))
	}
	return strings.Join(parts, " ")
}
