package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/canopy.report/internal/timeutil"
)

// ErrRunActive is returned by StartRun while another run is open.
var ErrRunActive = errors.New("a run is already active")

// Manager tracks the lifecycle of the current run. It is safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	clock     timeutil.Clock
	current   *Run
	startTime time.Time
}

// NewManager creates a Manager writing to store.
func NewManager(store *Store) *Manager {
	return NewManagerWithClock(store, timeutil.RealClock{})
}

// NewManagerWithClock creates a Manager that timestamps runs with clock.
func NewManagerWithClock(store *Store, clock timeutil.Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// StartRun records a new running run and returns its ID. params is stored
// as JSON.
func (m *Manager) StartRun(kind, inputPath, outputPath string, params interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return "", fmt.Errorf("%w: %s", ErrRunActive, m.current.RunID)
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	run := &Run{
		CreatedAt:  m.clock.Now(),
		Kind:       kind,
		InputPath:  inputPath,
		OutputPath: outputPath,
		ParamsJSON: paramsJSON,
		Status:     StatusRunning,
	}
	if err := m.store.InsertRun(run); err != nil {
		return "", err
	}

	m.current = run
	m.startTime = run.CreatedAt
	log.Printf("[runs] Started run %s (%s) for %s", run.RunID, kind, inputPath)
	return run.RunID, nil
}

// CompleteRun finalises the current run. It is a no-op without one.
func (m *Manager) CompleteRun(out Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	elapsed := m.clock.Since(m.startTime)
	if err := m.store.CompleteRun(m.current.RunID, out, elapsed); err != nil {
		return err
	}
	log.Printf("[runs] Completed run %s: %dx%d grid in %.2fs", m.current.RunID, out.Cols, out.Rows, elapsed.Seconds())
	m.current = nil
	return nil
}

// FailRun marks the current run failed. It is a no-op without one.
func (m *Manager) FailRun(runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := m.store.FailRun(m.current.RunID, msg, m.clock.Since(m.startTime)); err != nil {
		return err
	}
	log.Printf("[runs] Failed run %s: %s", m.current.RunID, msg)
	m.current = nil
	return nil
}

// CurrentRunID returns the ID of the active run, or "".
func (m *Manager) CurrentRunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.RunID
}
