package protocol

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus 是单个 session 实例的状态，Ended 为终态。
type SessionStatus string

const (
	SessionStarted SessionStatus = "started"
	SessionEnded   SessionStatus = "ended"
)

// Session 是一段被跟踪的运行区间。
// 每个 Hub 同一时刻至多一个 Active session。
type Session struct {
	ID          string        `msgpack:"sid"`
	Status      SessionStatus `msgpack:"status"`
	StartedAt   time.Time     `msgpack:"started"`
	EndedAt     time.Time     `msgpack:"ended,omitempty"`
	Release     string        `msgpack:"release,omitempty"`
	Environment string        `msgpack:"environment,omitempty"`
}

func NewSession(release, environment string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Status:      SessionStarted,
		StartedAt:   time.Now().UTC(),
		Release:     release,
		Environment: environment,
	}
}

// End 置为终态，重复调用无效。
func (s *Session) End() {
	if s.Status == SessionEnded {
		return
	}
	s.Status = SessionEnded
	s.EndedAt = time.Now().UTC()
}
