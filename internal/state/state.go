// Package state holds the mutable AppState shared across every listener
// and exposed to the desktop shell via get_status (spec §3 AppState, §5).
package state

import "sync"

// Status is the proxy's current lifecycle phase (spec §4.7).
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Error
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Error:
		return "Error"
	default:
		return "Disconnected"
	}
}

// Snapshot is an immutable copy of AppState for callers that just want to
// read it once (e.g. a get_status response).
type Snapshot struct {
	Status             Status
	RequestsProxied     uint64
	BeatmapsDownloaded  uint64
	LastError           string
}

// AppState is held behind a RWMutex (spec §5): readers (status polling,
// statistics reads) never block each other, writers (counter increments,
// status transitions) are exclusive and hold the lock only across
// constant-time field updates, mirroring the teacher's
// currentCtxMu sync.RWMutex idiom in caddy.go.
type AppState struct {
	mu sync.RWMutex

	status             Status
	requestsProxied    uint64
	beatmapsDownloaded uint64
	lastError          string
}

// New returns a fresh AppState in the Disconnected phase.
func New() *AppState {
	return &AppState{status: Disconnected}
}

func (s *AppState) SetStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *AppState) SetLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *AppState) ClearLastError() {
	s.SetLastError("")
}

// IncRequestsProxied increments the request counter. Counters are
// monotonic but their pairwise ordering against each other is not
// guaranteed (spec §5).
func (s *AppState) IncRequestsProxied() {
	s.mu.Lock()
	s.requestsProxied++
	s.mu.Unlock()
}

func (s *AppState) IncBeatmapsDownloaded() {
	s.mu.Lock()
	s.beatmapsDownloaded++
	s.mu.Unlock()
}

// Snapshot returns a coherent, point-in-time copy of the state.
func (s *AppState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Status:             s.status,
		RequestsProxied:    s.requestsProxied,
		BeatmapsDownloaded: s.beatmapsDownloaded,
		LastError:          s.lastError,
	}
}
