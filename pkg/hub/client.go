package hub

import (
	"time"

	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
)

// Hint 是随捕获调用透传给 client 的旁路信息，Hub 不解释其内容。
// 约定键见 pkg/config（如 session.start / session.end）。
type Hint map[string]any

// Client 是实际执行上报的协作方，线程安全由实现负责。
// 具体实现见 pkg/client。
type Client interface {
	CaptureEvent(event *protocol.Event, scope *Scope, hint Hint) protocol.EventID
	CaptureMessage(message string, level protocol.Level, scope *Scope) protocol.EventID
	CaptureSession(session *protocol.Session, hint Hint)
	CaptureTransaction(tx *Transaction, scope *Scope, hint Hint)
	CaptureUserFeedback(feedback *protocol.UserFeedback) error
	CaptureEnvelope(envelope *protocol.Envelope, hint Hint) error
	Flush(timeout time.Duration) bool
	Close(timeout time.Duration)
}

// Integration 在根 Hub 构造时注册一次，clone 不会重复注册。
type Integration interface {
	Name() string
	Register(h *Hub, o *config.Options)
}
