package hub

import (
	"sync"

	"github.com/stleox/caphub/pkg/protocol"
)

// Scope 是一帧可变的上下文状态，随每次捕获快照下发。
// 自带锁，同一 Hub 的并发调用方可以安全地读写同一帧。
type Scope struct {
	mu sync.RWMutex

	tags        map[string]string
	extra       map[string]any
	user        *protocol.User
	level       protocol.Level
	fingerprint []string
	transaction string

	// 绑定的 transaction，回指引用，不拥有
	span *Transaction

	crumbs *breadcrumbRing
}

func newScope(maxBreadcrumbs int) *Scope {
	return &Scope{
		tags:   make(map[string]string),
		extra:  make(map[string]any),
		crumbs: newBreadcrumbRing(maxBreadcrumbs),
	}
}

func (s *Scope) SetTag(key, value string) {
	if key == "" || value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

func (s *Scope) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

func (s *Scope) Tags() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

func (s *Scope) SetExtra(key string, value any) {
	if key == "" || value == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[key] = value
}

func (s *Scope) SetUser(user *protocol.User) {
	if user == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *user
	s.user = &dup
}

func (s *Scope) User() *protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Scope) SetLevel(level protocol.Level) {
	if level == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

func (s *Scope) SetFingerprint(fingerprint []string) {
	if len(fingerprint) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = append([]string(nil), fingerprint...)
}

func (s *Scope) SetTransaction(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transaction = name
}

func (s *Scope) Transaction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transaction
}

// SetSpan 绑定当前活跃 transaction，nil 表示解绑。
func (s *Scope) SetSpan(tx *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span = tx
}

func (s *Scope) Span() *Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.span
}

func (s *Scope) AddBreadcrumb(crumb *protocol.Breadcrumb) {
	if crumb == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crumbs.Add(crumb)
}

func (s *Scope) ClearBreadcrumbs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crumbs.Clear()
}

func (s *Scope) Breadcrumbs() []*protocol.Breadcrumb {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crumbs.Items()
}

// Clone 结构化深拷贝，供 withScope 压栈和 Hub.Clone 使用。
// span 是回指引用，按引用复制。
func (s *Scope) Clone() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dup := newScope(s.crumbs.max)
	for k, v := range s.tags {
		dup.tags[k] = v
	}
	for k, v := range s.extra {
		dup.extra[k] = v
	}
	if s.user != nil {
		u := *s.user
		dup.user = &u
	}
	dup.level = s.level
	dup.fingerprint = append([]string(nil), s.fingerprint...)
	dup.transaction = s.transaction
	dup.span = s.span
	dup.crumbs = s.crumbs.clone()
	return dup
}

// ApplyToEvent 把作用域状态合并进事件，事件已有的字段优先。
func (s *Scope) ApplyToEvent(event *protocol.Event) {
	if event == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if event.Tags == nil {
		event.Tags = make(map[string]string, len(s.tags))
	}
	for k, v := range s.tags {
		if _, ok := event.Tags[k]; !ok {
			event.Tags[k] = v
		}
	}
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(s.extra))
	}
	for k, v := range s.extra {
		if _, ok := event.Extra[k]; !ok {
			event.Extra[k] = v
		}
	}
	if event.User == nil && s.user != nil {
		u := *s.user
		event.User = &u
	}
	if event.Level == "" && s.level != "" {
		event.Level = s.level
	}
	if len(event.Fingerprint) == 0 {
		event.Fingerprint = append([]string(nil), s.fingerprint...)
	}
	if event.Transaction == "" {
		event.Transaction = s.transaction
	}
	if len(event.Breadcrumbs) == 0 {
		event.Breadcrumbs = s.crumbs.Items()
	}
	if event.Trace == nil && s.span != nil {
		event.Trace = s.span.TraceContext()
	}
}
