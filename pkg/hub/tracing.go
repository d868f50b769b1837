package hub

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
	tr "go.opentelemetry.io/otel/trace"
)

// TransactionContext 是发起 transaction 的输入。
// Sampled 为调用方显式给出的采样决定，ParentSampled 为上游传播的决定。
type TransactionContext struct {
	Name          string
	Op            string
	TraceID       tr.TraceID
	ParentSpanID  tr.SpanID
	Sampled       *bool
	ParentSampled *bool
}

// Span 是一段被追踪的工作。结束后不可再修改。
type Span struct {
	TraceID      tr.TraceID
	SpanID       tr.SpanID
	ParentSpanID tr.SpanID
	Op           string
	Description  string
	StartTime    time.Time
	EndTime      time.Time
	Sampled      bool

	mu   sync.Mutex
	tags map[string]string

	// 回指所属 transaction，不拥有
	parent *Transaction
}

// SetTag 结束后的 span 不再接受修改。
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return
	}
	if s.tags == nil {
		s.tags = make(map[string]string)
	}
	s.tags[key] = value
}

func (s *Span) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// Finish 置结束时间，重复调用无效。
func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now().UTC()
}

func (s *Span) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.EndTime.IsZero()
}

// TraceContext 导出事件可携带的追踪上下文。
func (s *Span) TraceContext() *protocol.TraceContext {
	return &protocol.TraceContext{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		Op:           s.Op,
	}
}

// Transaction 拥有其子 span；noop transaction 什么也不记录，永不上报。
type Transaction struct {
	Span
	Name string

	noop bool

	childMu  sync.Mutex
	children []*Span
}

// StartChild 派生一个子 span，继承采样决定。
func (t *Transaction) StartChild(op string) *Span {
	child := &Span{
		TraceID:      t.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: t.SpanID,
		Op:           op,
		StartTime:    time.Now().UTC(),
		Sampled:      t.Sampled,
		parent:       t,
	}
	if t.noop {
		return child
	}
	t.childMu.Lock()
	t.children = append(t.children, child)
	t.childMu.Unlock()
	return child
}

// ActiveChild 返回最近一个未结束的子 span，没有则返回 nil。
func (t *Transaction) ActiveChild() *Span {
	t.childMu.Lock()
	defer t.childMu.Unlock()
	for i := len(t.children) - 1; i >= 0; i-- {
		if !t.children[i].IsFinished() {
			return t.children[i]
		}
	}
	return nil
}

// Children 返回子 span 的拷贝切片，供导出使用。
func (t *Transaction) Children() []*Span {
	t.childMu.Lock()
	defer t.childMu.Unlock()
	out := make([]*Span, len(t.children))
	copy(out, t.children)
	return out
}

func (t *Transaction) IsNoop() bool {
	return t.noop
}

func newTraceID() tr.TraceID {
	return tr.TraceID(uuid.New())
}

func newSpanID() tr.SpanID {
	var id tr.SpanID
	u := uuid.New()
	copy(id[:], u[:8])
	return id
}

// 采样决定的解析链，返回 nil 表示本级不作决定、落到下一级。
// 顺序：显式决定 > 自定义采样器 > 固定采样率 > 继承父决定。
type samplingResolver func(tc *TransactionContext, o *config.Options) *bool

var samplingChain = []samplingResolver{
	func(tc *TransactionContext, _ *config.Options) *bool {
		return tc.Sampled
	},
	func(tc *TransactionContext, o *config.Options) *bool {
		if o.Sampler == nil {
			return nil
		}
		return o.Sampler(config.SamplingContext{
			Name:          tc.Name,
			Op:            tc.Op,
			ParentSampled: tc.ParentSampled,
		})
	},
	func(_ *TransactionContext, o *config.Options) *bool {
		if o.SampleRate == nil {
			return nil
		}
		sampled := rand.Float64() < *o.SampleRate
		return &sampled
	},
	func(tc *TransactionContext, _ *config.Options) *bool {
		return tc.ParentSampled
	},
}

func resolveSampled(tc *TransactionContext, o *config.Options) (bool, bool) {
	for _, resolve := range samplingChain {
		if decision := resolve(tc, o); decision != nil {
			return *decision, true
		}
	}
	return false, false
}

// StartTransaction 解析采样决定并构造 transaction。
// 没有任何采样配置可用时返回 noop transaction。
// bindToScope 为 true 时把它设为当前 Scope 的活跃 span。
func (h *Hub) StartTransaction(tc TransactionContext, bindToScope bool) *Transaction {
	t := &Transaction{Name: tc.Name}
	t.Op = tc.Op
	t.TraceID = tc.TraceID
	if !t.TraceID.IsValid() {
		t.TraceID = newTraceID()
	}
	t.SpanID = newSpanID()
	t.ParentSpanID = tc.ParentSpanID
	t.StartTime = time.Now().UTC()

	if !h.isEnabled() {
		t.noop = true
		return t
	}

	sampled, decided := resolveSampled(&tc, h.options)
	if !decided {
		t.noop = true
		logrus.Debugf("Caphub has no sampling config, transaction %q is no-op", tc.Name)
		return t
	}
	t.Sampled = sampled

	if bindToScope {
		h.CurrentScope().SetSpan(t)
	}
	return t
}

// GetSpan 返回最内层活跃 span：绑定 transaction 的未结束子 span，
// 其次是 transaction 本身；无绑定时返回 nil。
func (h *Hub) GetSpan() *Span {
	t := h.CurrentScope().Span()
	if t == nil {
		return nil
	}
	if child := t.ActiveChild(); child != nil {
		return child
	}
	return &t.Span
}

// TraceHeader 是向下游传播的追踪头。
type TraceHeader struct {
	Name  string
	Value string
}

// TraceHeaders 由当前活跃 span 派生，无活跃 span 时返回 nil。
func (h *Hub) TraceHeaders() *TraceHeader {
	span := h.GetSpan()
	if span == nil {
		return nil
	}
	flags := "00"
	if span.Sampled {
		flags = "01"
	}
	return &TraceHeader{
		Name:  "traceparent",
		Value: fmt.Sprintf("00-%s-%s-%s", span.TraceID, span.SpanID, flags),
	}
}

// CaptureTransaction 仅上报采样命中的 transaction，未采样的静默丢弃。
func (h *Hub) CaptureTransaction(t *Transaction, hint Hint) {
	if t == nil || !h.isEnabled() {
		return
	}
	if t.noop || !t.Sampled {
		config.Log4Unsampled.WithField("transaction", t.Name).Debug("dropped unsampled transaction")
		return
	}
	client, scope := h.snapshot()
	client.CaptureTransaction(t, scope, hint)
}
