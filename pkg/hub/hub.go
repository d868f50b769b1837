// Package hub is the per-process coordination core of the caphub SDK.
// A Hub decides whether an event/session/transaction gets captured, what
// scope state rides along, and how that state is isolated across nested
// scopes, clones and goroutines.
package hub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
)

// ErrNilEnvelope 由 CaptureEnvelope 对 nil envelope 返回，先于 enabled 检查。
var ErrNilEnvelope = errors.New("caphub: nil envelope")

// Hub 对多 goroutine 并发调用安全。clone 之间仅共享 client。
type Hub struct {
	mu      sync.Mutex
	enabled bool

	stack     *scopeStack
	options   *config.Options
	tracker   *sessionTracker
	spanAssoc *spanAssocCache

	lastEventID protocol.EventID

	// 已注册 integration 的名字，仅根 Hub 填充
	integrations []string
}

// NewHub 构造根 Hub 并注册全部 integration，各注册一次。
// DSN 缺失时构造失败。
func NewHub(client Client, options *config.Options, integrations ...Integration) (*Hub, error) {
	if options == nil {
		return nil, config.ErrMissingDSN
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	h := &Hub{
		enabled:   true,
		options:   options,
		stack:     newScopeStack(client, newScope(options.MaxBreadcrumbs)),
		tracker:   &sessionTracker{},
		spanAssoc: newSpanAssocCache(),
	}

	for _, itg := range integrations {
		itg.Register(h, options)
		h.integrations = append(h.integrations, itg.Name())
		logrus.Debugf("Caphub registered integration %q", itg.Name())
	}
	return h, nil
}

// Clone 共享 client，Scope 深拷贝，不重复注册 integration。
func (h *Hub) Clone() *Hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	top := h.stack.top()
	return &Hub{
		enabled:   h.enabled,
		options:   h.options,
		stack:     newScopeStack(top.client, top.scope.Clone()),
		tracker:   &sessionTracker{},
		spanAssoc: newSpanAssocCache(),
	}
}

func (h *Hub) isEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Integrations 返回根 Hub 上已注册 integration 的名字。
func (h *Hub) Integrations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.integrations...)
}

// snapshot 取当前 client 与 Scope 快照，供锁外委托。
func (h *Hub) snapshot() (Client, *Scope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	top := h.stack.top()
	return top.client, top.scope.Clone()
}

// CurrentScope 返回栈顶 Scope 的直接引用。
func (h *Hub) CurrentScope() *Scope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack.top().scope
}

// BindClient 替换栈顶帧的 client 引用。
func (h *Hub) BindClient(client Client) {
	if !h.isEnabled() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack.top().client = client
}

// Client 返回当前绑定的 client。
func (h *Hub) Client() Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack.top().client
}

// Close 首次调用禁用 Hub 并关闭 client 与后台执行器，幂等。
// 禁用是单向的；已在途的捕获调用不被打断。
func (h *Hub) Close(timeout time.Duration) {
	h.mu.Lock()
	if !h.enabled {
		h.mu.Unlock()
		return
	}
	h.enabled = false
	client := h.stack.top().client
	h.mu.Unlock()

	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	if client != nil {
		client.Close(timeout)
	}
	if h.options.Executor != nil {
		h.options.Executor.Close(timeout)
	}
}

// LastEventID 返回最近一次成功捕获的事件标识，初始为空哨兵。
func (h *Hub) LastEventID() protocol.EventID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastEventID
}

func (h *Hub) setLastEventID(id protocol.EventID) {
	if id == protocol.EmptyEventID {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventID = id
}

// CaptureEvent 先尝试把既有 span 关联补到事件上，再委托 client。
// nil 事件与禁用状态都是空操作。
func (h *Hub) CaptureEvent(event *protocol.Event, hint Hint) protocol.EventID {
	if event == nil || !h.isEnabled() {
		return protocol.EmptyEventID
	}
	h.attachSpanContext(event)

	client, scope := h.snapshot()
	id := client.CaptureEvent(event, scope, hint)
	h.setLastEventID(id)
	return id
}

// attachSpanContext 沿事件所携 error 的 cause 链（自外向内）查找
// 既有关联；事件已带追踪上下文时保持不动。
func (h *Hub) attachSpanContext(event *protocol.Event) {
	if event.Trace != nil || event.Err == nil {
		return
	}
	assoc, hit := h.spanAssoc.lookupChain(event.Err)
	if !hit {
		return
	}
	event.Trace = assoc.span.TraceContext()
	event.Transaction = assoc.transactionName
}

// CaptureMessage 空消息为空操作；level 为空时取 INFO。
func (h *Hub) CaptureMessage(message string, level protocol.Level) protocol.EventID {
	if message == "" || !h.isEnabled() {
		return protocol.EmptyEventID
	}
	if level == "" {
		level = protocol.LevelInfo
	}
	client, scope := h.snapshot()
	id := client.CaptureMessage(message, level, scope)
	h.setLastEventID(id)
	return id
}

// CaptureException 等价于从 error 构建事件并走 CaptureEvent 路径。
func (h *Hub) CaptureException(err error, hint Hint) protocol.EventID {
	if err == nil {
		return protocol.EmptyEventID
	}
	return h.CaptureEvent(protocol.EventFromException(err), hint)
}

// CaptureUserFeedback 反馈提交永不影响调用方：client 的错误
// 乃至 panic 都就地吞掉。
func (h *Hub) CaptureUserFeedback(feedback *protocol.UserFeedback) {
	if feedback == nil || !h.isEnabled() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logrus.Debugf("Caphub discarded user feedback panic: %v", rec)
		}
	}()
	client, _ := h.snapshot()
	if err := client.CaptureUserFeedback(feedback); err != nil {
		logrus.WithError(err).Debug("Caphub discarded user feedback error")
	}
}

// CaptureEnvelope 原样转交，不应用任何 scope/session 逻辑。
// nil envelope 无论启用与否都是参数错误。
func (h *Hub) CaptureEnvelope(envelope *protocol.Envelope, hint Hint) error {
	if envelope == nil {
		return ErrNilEnvelope
	}
	if !h.isEnabled() {
		return nil
	}
	client, _ := h.snapshot()
	return client.CaptureEnvelope(envelope, hint)
}

// Flush 委托给 client，禁用时为空操作。
func (h *Hub) Flush(timeout time.Duration) bool {
	if !h.isEnabled() {
		return false
	}
	client, _ := h.snapshot()
	return client.Flush(timeout)
}

// WithScope 压入栈顶 Scope 的拷贝执行 callback，结束后无条件弹出。
// callback panic 时同样弹出后再传播。
func (h *Hub) WithScope(fn func(scope *Scope)) {
	if !h.isEnabled() {
		return
	}
	h.mu.Lock()
	top := h.stack.top()
	pushed := &layer{client: top.client, scope: top.scope.Clone()}
	h.stack.push(pushed)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.stack.pop()
		h.mu.Unlock()
	}()
	fn(pushed.scope)
}

// ConfigureScope 把栈顶 Scope 的可变引用交给 callback，不压栈。
func (h *Hub) ConfigureScope(fn func(scope *Scope)) {
	if !h.isEnabled() {
		return
	}
	fn(h.CurrentScope())
}

// AddBreadcrumb 先过 BeforeBreadcrumb 回调再入环：
// 返回 nil 丢弃；返回改写版本则存之；回调 panic 时存原始
// breadcrumb 并在诊断键下记录 panic 信息。
func (h *Hub) AddBreadcrumb(crumb *protocol.Breadcrumb, hint Hint) {
	if crumb == nil || !h.isEnabled() {
		return
	}

	stored := crumb
	if before := h.options.BeforeBreadcrumb; before != nil {
		result, hookErr := runBreadcrumbHook(before, crumb, hint)
		switch {
		case hookErr != nil:
			if crumb.Data == nil {
				crumb.Data = make(map[string]any, 1)
			}
			crumb.Data[protocol.DataKeyHookError] = hookErr.Error()
			stored = crumb
		case result == nil:
			config.Log4Dropped.WithField("category", crumb.Category).Debug(crumb.Message)
			return
		default:
			stored = result
		}
	}
	h.CurrentScope().AddBreadcrumb(stored)
}

// runBreadcrumbHook 把回调的 panic 转为 error 返回。
func runBreadcrumbHook(before config.BeforeBreadcrumb, crumb *protocol.Breadcrumb, hint Hint) (result *protocol.Breadcrumb, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return before(crumb, hint), nil
}

// 以下均为 configureScope 语义的便捷入口，禁用时为空操作，
// 空键/空值被忽略而不是报错。

func (h *Hub) SetTag(key, value string) {
	h.ConfigureScope(func(scope *Scope) { scope.SetTag(key, value) })
}

func (h *Hub) SetExtra(key string, value any) {
	h.ConfigureScope(func(scope *Scope) { scope.SetExtra(key, value) })
}

func (h *Hub) SetUser(user *protocol.User) {
	h.ConfigureScope(func(scope *Scope) { scope.SetUser(user) })
}

func (h *Hub) SetLevel(level protocol.Level) {
	h.ConfigureScope(func(scope *Scope) { scope.SetLevel(level) })
}

func (h *Hub) SetTransaction(name string) {
	h.ConfigureScope(func(scope *Scope) { scope.SetTransaction(name) })
}

func (h *Hub) SetFingerprint(fingerprint []string) {
	h.ConfigureScope(func(scope *Scope) { scope.SetFingerprint(fingerprint) })
}

func (h *Hub) ClearBreadcrumbs() {
	h.ConfigureScope(func(scope *Scope) { scope.ClearBreadcrumbs() })
}

// SetSpanContext 记录 err 被观测时活跃的 span，同一实例覆盖旧关联。
func (h *Hub) SetSpanContext(err error, span *Span, transactionName string) {
	if !h.isEnabled() {
		return
	}
	h.spanAssoc.set(err, span, transactionName)
}

// GetSpanContext 只查这一个实例；未关联过返回 nil。
func (h *Hub) GetSpanContext(err error) *protocol.TraceContext {
	assoc, hit := h.spanAssoc.get(err)
	if !hit {
		return nil
	}
	return assoc.span.TraceContext()
}
