package protocol

import (
	"time"

	"github.com/google/uuid"
	tr "go.opentelemetry.io/otel/trace"
)

// Level 是事件与 breadcrumb 共用的严重级别。
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// EventID 是 UUID32 格式的事件标识，空串作为哨兵值。
type EventID string

const EmptyEventID EventID = ""

func NewEventID() EventID {
	id := uuid.New()
	buf := make([]byte, 0, 32)
	const hexdigits = "0123456789abcdef"
	for _, b := range id {
		buf = append(buf, hexdigits[b>>4], hexdigits[b&0xf])
	}
	return EventID(buf)
}

// User 标识当前作用域关联的终端用户。
type User struct {
	ID       string `msgpack:"id,omitempty"`
	Email    string `msgpack:"email,omitempty"`
	Username string `msgpack:"username,omitempty"`
	IP       string `msgpack:"ip_address,omitempty"`
}

// DataKeyHookError 记录 BeforeBreadcrumb 回调崩溃信息的诊断键。
const DataKeyHookError = "caphub.hook_error"

// Breadcrumb 是一条轻量的历史记录。
// 入环后不可变，仅在入环前经过一次 BeforeBreadcrumb 变换。
type Breadcrumb struct {
	Timestamp time.Time      `msgpack:"timestamp"`
	Message   string         `msgpack:"message,omitempty"`
	Category  string         `msgpack:"category,omitempty"`
	Level     Level          `msgpack:"level,omitempty"`
	Data      map[string]any `msgpack:"data,omitempty"`
}

func NewBreadcrumb(category, message string) *Breadcrumb {
	return &Breadcrumb{
		Timestamp: time.Now().UTC(),
		Category:  category,
		Message:   message,
		Level:     LevelInfo,
	}
}

// Clone 深拷贝，供 Scope 复制使用。
func (b *Breadcrumb) Clone() *Breadcrumb {
	dup := *b
	if b.Data != nil {
		dup.Data = make(map[string]any, len(b.Data))
		for k, v := range b.Data {
			dup.Data[k] = v
		}
	}
	return &dup
}

// TraceContext 是事件携带的分布式追踪上下文。
type TraceContext struct {
	TraceID      tr.TraceID `msgpack:"trace_id"`
	SpanID       tr.SpanID  `msgpack:"span_id"`
	ParentSpanID tr.SpanID  `msgpack:"parent_span_id,omitempty"`
	Op           string     `msgpack:"op,omitempty"`
}

// Event 是一次待上报的捕获。
type Event struct {
	ID          EventID           `msgpack:"event_id"`
	Timestamp   time.Time         `msgpack:"timestamp"`
	Level       Level             `msgpack:"level,omitempty"`
	Message     string            `msgpack:"message,omitempty"`
	Transaction string            `msgpack:"transaction,omitempty"`
	Release     string            `msgpack:"release,omitempty"`
	Environment string            `msgpack:"environment,omitempty"`
	Tags        map[string]string `msgpack:"tags,omitempty"`
	Extra       map[string]any    `msgpack:"extra,omitempty"`
	User        *User             `msgpack:"user,omitempty"`
	Fingerprint []string          `msgpack:"fingerprint,omitempty"`
	Breadcrumbs []*Breadcrumb     `msgpack:"breadcrumbs,omitempty"`
	Trace       *TraceContext     `msgpack:"trace,omitempty"`

	// 原始 error，仅进程内携带，用于 span 关联查询
	Err error `msgpack:"-"`
}

func NewEvent() *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		Level:     LevelInfo,
		Tags:      make(map[string]string),
		Extra:     make(map[string]any),
	}
}

// EventFromException 从 error 构建事件，保留原始 error。
func EventFromException(err error) *Event {
	if err == nil {
		return nil
	}
	event := NewEvent()
	event.Level = LevelError
	event.Message = err.Error()
	event.Err = err
	return event
}

// EventFromMessage 从纯文本消息构建事件。
func EventFromMessage(message string, level Level) *Event {
	if message == "" {
		return nil
	}
	event := NewEvent()
	event.Level = level
	event.Message = message
	return event
}

// UserFeedback 是用户对某次事件的反馈。
type UserFeedback struct {
	EventID  EventID `msgpack:"event_id"`
	Name     string  `msgpack:"name,omitempty"`
	Email    string  `msgpack:"email,omitempty"`
	Comments string  `msgpack:"comments,omitempty"`
}
