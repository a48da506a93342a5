package service

import (
	"sync"
	"sync/atomic"
	"time"

	"futures_bot/internal/models"
)

// CycleReport — итог одного цикла планировщика.
type CycleReport struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Universe      int
	OpenPositions int
	Actions       map[models.Action]int
	Err           error
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected atomic.Bool

	mu        sync.RWMutex
	cycles    int64
	failed    int64
	last      CycleReport
	lastError string
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// ReportCycle запоминает итог цикла; первый завершённый цикл делает сервис ready.
func (s *State) ReportCycle(r CycleReport) {
	s.mu.Lock()
	s.cycles++
	s.last = r
	if r.Err != nil {
		s.failed++
		s.lastError = r.Err.Error()
	}
	s.mu.Unlock()

	if r.Err == nil {
		s.ready.Store(true)
	}
}

// Snapshot — данные для /healthz.
type Snapshot struct {
	Ready         bool           `json:"ready"`
	WSConnected   bool           `json:"wsConnected"`
	UptimeSec     int64          `json:"uptimeSec"`
	Cycles        int64          `json:"cycles"`
	FailedCycles  int64          `json:"failedCycles"`
	LastCycleID   string         `json:"lastCycleId,omitempty"`
	LastCycleUnix int64          `json:"lastCycleUnix"`
	LastCycleMs   int64          `json:"lastCycleMs"`
	Universe      int            `json:"universe"`
	OpenPositions int            `json:"openPositions"`
	Actions       map[string]int `json:"actions"`
	LastError     string         `json:"lastError,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Ready:         s.Ready(),
		WSConnected:   s.WSConnected(),
		UptimeSec:     int64(s.Uptime().Seconds()),
		Cycles:        s.cycles,
		FailedCycles:  s.failed,
		LastCycleID:   s.last.ID,
		LastCycleMs:   s.last.Duration.Milliseconds(),
		Universe:      s.last.Universe,
		OpenPositions: s.last.OpenPositions,
		Actions:       make(map[string]int, len(s.last.Actions)),
		LastError:     s.lastError,
	}
	if !s.last.StartedAt.IsZero() {
		snap.LastCycleUnix = s.last.StartedAt.Unix()
	}
	for a, n := range s.last.Actions {
		snap.Actions[string(a)] = n
	}
	return snap
}
