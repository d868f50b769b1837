package hub

import (
	"sync"
	"time"

	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
)

// mockClient 按序记录全部委托调用，供断言。
type mockClient struct {
	mu sync.Mutex

	calls []string

	events       []*protocol.Event
	scopes       []*Scope
	sessions     []*protocol.Session
	sessionHints []Hint
	transactions []*Transaction
	envelopes    []*protocol.Envelope
	feedbacks    []*protocol.UserFeedback

	feedbackErr   error
	feedbackPanic bool

	nextEventID protocol.EventID
	closed      int
	flushed     int
}

func newMockClient() *mockClient {
	return &mockClient{nextEventID: protocol.NewEventID()}
}

func (m *mockClient) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockClient) CaptureEvent(event *protocol.Event, scope *Scope, hint Hint) protocol.EventID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("event")
	m.events = append(m.events, event)
	m.scopes = append(m.scopes, scope)
	return m.nextEventID
}

func (m *mockClient) CaptureMessage(message string, level protocol.Level, scope *Scope) protocol.EventID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("message")
	event := protocol.EventFromMessage(message, level)
	m.events = append(m.events, event)
	m.scopes = append(m.scopes, scope)
	return m.nextEventID
}

func (m *mockClient) CaptureSession(session *protocol.Session, hint Hint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := hint[config.HintSessionStart]; ok {
		m.record("session:start")
	} else {
		m.record("session:end")
	}
	m.sessions = append(m.sessions, session)
	m.sessionHints = append(m.sessionHints, hint)
}

func (m *mockClient) CaptureTransaction(t *Transaction, scope *Scope, hint Hint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("transaction")
	m.transactions = append(m.transactions, t)
}

func (m *mockClient) CaptureUserFeedback(feedback *protocol.UserFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("feedback")
	if m.feedbackPanic {
		panic("feedback transport exploded")
	}
	m.feedbacks = append(m.feedbacks, feedback)
	return m.feedbackErr
}

func (m *mockClient) CaptureEnvelope(envelope *protocol.Envelope, hint Hint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("envelope")
	m.envelopes = append(m.envelopes, envelope)
	return nil
}

func (m *mockClient) Flush(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return true
}

func (m *mockClient) Close(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func mockOptions() *config.Options {
	return &config.Options{
		DSN:     "https://key@caphub.test/1",
		Release: "caphub@0.1.0",
	}
}

func mockNewHub(options *config.Options, integrations ...Integration) (*Hub, *mockClient) {
	if options == nil {
		options = mockOptions()
	}
	client := newMockClient()
	h, err := NewHub(client, options, integrations...)
	if err != nil {
		panic(err)
	}
	return h, client
}
