package hub

import (
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
)

// sessionTracker 维护 NoSession → Active → Ended 的状态机。
// 状态迁移在 Hub 锁内完成，client 通知在锁外发出。
type sessionTracker struct {
	session *protocol.Session
}

type sessionNotice struct {
	session *protocol.Session
	hint    Hint
}

// startSession 结束可能存在的活跃 session 并开启新的。
// 返回按序发出的通知：先 end（如有），后 start。
func (st *sessionTracker) startSession(o *config.Options) []sessionNotice {
	notices := make([]sessionNotice, 0, 2)
	if st.session != nil && st.session.Status == protocol.SessionStarted {
		st.session.End()
		notices = append(notices, sessionNotice{
			session: st.session,
			hint:    Hint{config.HintSessionEnd: true},
		})
	}
	st.session = protocol.NewSession(o.Release, o.Environment)
	notices = append(notices, sessionNotice{
		session: st.session,
		hint:    Hint{config.HintSessionStart: true},
	})
	return notices
}

// endSession 无活跃 session 时返回空。
func (st *sessionTracker) endSession() []sessionNotice {
	if st.session == nil || st.session.Status != protocol.SessionStarted {
		return nil
	}
	st.session.End()
	ended := st.session
	st.session = nil
	return []sessionNotice{{
		session: ended,
		hint:    Hint{config.HintSessionEnd: true},
	}}
}

// StartSession 开启新 session；已有活跃 session 时先通知其结束。
func (h *Hub) StartSession() {
	if !h.isEnabled() {
		return
	}
	h.mu.Lock()
	notices := h.tracker.startSession(h.options)
	client := h.stack.top().client
	h.mu.Unlock()

	for _, n := range notices {
		client.CaptureSession(n.session, n.hint)
	}
}

// EndSession 结束活跃 session；未配置 session 跟踪或无活跃 session 时为空操作。
func (h *Hub) EndSession() {
	if !h.isEnabled() || !h.options.SessionsEnabled() {
		return
	}
	h.mu.Lock()
	notices := h.tracker.endSession()
	client := h.stack.top().client
	h.mu.Unlock()

	for _, n := range notices {
		client.CaptureSession(n.session, n.hint)
	}
}
