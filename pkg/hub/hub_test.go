package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
	r "github.com/stretchr/testify/require"
)

func TestHub_RequiresDSN(t *testing.T) {
	_, err := NewHub(newMockClient(), &config.Options{})
	r.ErrorIs(t, err, config.ErrMissingDSN)

	_, err = NewHub(newMockClient(), nil)
	r.ErrorIs(t, err, config.ErrMissingDSN)
}

type countingIntegration struct {
	registered int
}

func (c *countingIntegration) Name() string { return "Counting" }

func (c *countingIntegration) Register(_ *Hub, _ *config.Options) { c.registered++ }

func TestHub_IntegrationsRegisterOnceNotOnClone(t *testing.T) {
	itg := &countingIntegration{}
	h, _ := mockNewHub(nil, itg)
	r.Equal(t, 1, itg.registered)
	r.Equal(t, []string{"Counting"}, h.Integrations())

	clone := h.Clone()
	r.Equal(t, 1, itg.registered)
	r.Empty(t, clone.Integrations())
}

func TestHub_CloneScopeIsolation(t *testing.T) {
	h, _ := mockNewHub(nil)
	h.SetTag("origin", "root")

	clone := h.Clone()
	clone.SetTag("origin", "clone")
	clone.SetTag("clone-only", "x")
	h.SetTag("root-only", "y")

	r.Equal(t, "root", h.CurrentScope().Tags()["origin"])
	r.Equal(t, "clone", clone.CurrentScope().Tags()["origin"])
	r.NotContains(t, h.CurrentScope().Tags(), "clone-only")
	r.NotContains(t, clone.CurrentScope().Tags(), "root-only")
}

func TestHub_CaptureEventUpdatesLastEventID(t *testing.T) {
	h, client := mockNewHub(nil)
	r.Equal(t, protocol.EmptyEventID, h.LastEventID())

	id := h.CaptureEvent(protocol.NewEvent(), nil)
	r.Equal(t, client.nextEventID, id)
	r.Equal(t, id, h.LastEventID())
}

func TestHub_NilPrimaryArgsAreNoops(t *testing.T) {
	h, client := mockNewHub(nil)

	r.Equal(t, protocol.EmptyEventID, h.CaptureEvent(nil, nil))
	r.Equal(t, protocol.EmptyEventID, h.CaptureMessage("", ""))
	r.Equal(t, protocol.EmptyEventID, h.CaptureException(nil, nil))

	r.Empty(t, client.calls)
	r.Equal(t, protocol.EmptyEventID, h.LastEventID())
}

func TestHub_CaptureEnvelopeNilFailsEvenWhenDisabled(t *testing.T) {
	h, _ := mockNewHub(nil)
	r.ErrorIs(t, h.CaptureEnvelope(nil, nil), ErrNilEnvelope)

	h.Close(time.Millisecond)
	r.ErrorIs(t, h.CaptureEnvelope(nil, nil), ErrNilEnvelope)
}

func TestHub_CaptureEnvelopeBypassesScope(t *testing.T) {
	h, client := mockNewHub(nil)
	env := protocol.NewEnvelope(protocol.EmptyEventID)
	r.NoError(t, h.CaptureEnvelope(env, nil))
	r.Equal(t, []string{"envelope"}, client.calls)
	r.Same(t, env, client.envelopes[0])
}

func TestHub_CloseDisablesEverything(t *testing.T) {
	h, client := mockNewHub(nil)
	h.SetTag("before", "close")
	h.Close(time.Millisecond)

	h.CaptureEvent(protocol.NewEvent(), nil)
	h.CaptureMessage("late", protocol.LevelError)
	h.CaptureException(errors.New("late"), nil)
	h.AddBreadcrumb(protocol.NewBreadcrumb("test", "late"), nil)
	h.SetTag("after", "close")
	h.StartSession()
	h.Flush(time.Millisecond)

	r.Empty(t, client.calls)
	r.Equal(t, protocol.EmptyEventID, h.LastEventID())

	// Scope 状态未被任何后续调用改变
	scope := h.stack.top().scope
	r.Equal(t, "close", scope.Tags()["before"])
	r.NotContains(t, scope.Tags(), "after")
	r.Empty(t, scope.Breadcrumbs())
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h, client := mockNewHub(nil)
	h.Close(time.Millisecond)
	h.Close(time.Millisecond)
	h.Close(time.Millisecond)
	r.Equal(t, 1, client.closed)
}

type mockExecutor struct {
	closed  int
	timeout time.Duration
}

func (e *mockExecutor) Submit(func()) error { return nil }

func (e *mockExecutor) Close(timeout time.Duration) {
	e.closed++
	e.timeout = timeout
}

func TestHub_ClosePassesTimeoutToExecutor(t *testing.T) {
	exec := &mockExecutor{}
	options := mockOptions()
	options.Executor = exec
	h, _ := mockNewHub(options)

	h.Close(time.Second)
	h.Close(time.Second)
	r.Equal(t, 1, exec.closed)
	r.Equal(t, time.Second, exec.timeout)
}

func TestHub_WithScopePushPop(t *testing.T) {
	h, _ := mockNewHub(nil)
	h.SetTag("outer", "1")

	h.WithScope(func(scope *Scope) {
		scope.SetTag("inner", "2")
		r.Equal(t, "1", scope.Tags()["outer"])
		r.Equal(t, 2, h.stack.depth())

		// 嵌套压栈复制的是当前栈顶
		h.WithScope(func(nested *Scope) {
			r.Equal(t, "2", nested.Tags()["inner"])
			r.Equal(t, 3, h.stack.depth())
		})
	})

	r.Equal(t, 1, h.stack.depth())
	r.NotContains(t, h.CurrentScope().Tags(), "inner")
}

func TestHub_WithScopePopsOnPanic(t *testing.T) {
	h, _ := mockNewHub(nil)
	r.Panics(t, func() {
		h.WithScope(func(scope *Scope) {
			panic("callback exploded")
		})
	})
	r.Equal(t, 1, h.stack.depth())
}

func TestHub_WithScopeNoopWhenDisabled(t *testing.T) {
	h, _ := mockNewHub(nil)
	h.Close(time.Millisecond)

	invoked := false
	h.WithScope(func(scope *Scope) { invoked = true })
	h.ConfigureScope(func(scope *Scope) { invoked = true })
	r.False(t, invoked)
}

func TestHub_AddBreadcrumbNoHook(t *testing.T) {
	h, _ := mockNewHub(nil)
	h.AddBreadcrumb(protocol.NewBreadcrumb("test", "plain"), nil)

	crumbs := h.CurrentScope().Breadcrumbs()
	r.Equal(t, 1, len(crumbs))
	r.Equal(t, "plain", crumbs[0].Message)
}

func TestHub_AddBreadcrumbHookDiscards(t *testing.T) {
	options := mockOptions()
	options.BeforeBreadcrumb = func(_ *protocol.Breadcrumb, _ map[string]any) *protocol.Breadcrumb {
		return nil
	}
	h, _ := mockNewHub(options)

	for i := 0; i < 10; i++ {
		h.AddBreadcrumb(protocol.NewBreadcrumb("test", "never stored"), nil)
	}
	r.Empty(t, h.CurrentScope().Breadcrumbs())
}

func TestHub_AddBreadcrumbHookMutates(t *testing.T) {
	options := mockOptions()
	options.BeforeBreadcrumb = func(crumb *protocol.Breadcrumb, _ map[string]any) *protocol.Breadcrumb {
		crumb.Message = "mutated"
		return crumb
	}
	h, _ := mockNewHub(options)

	h.AddBreadcrumb(protocol.NewBreadcrumb("test", "original"), nil)
	crumbs := h.CurrentScope().Breadcrumbs()
	r.Equal(t, 1, len(crumbs))
	r.Equal(t, "mutated", crumbs[0].Message)
}

func TestHub_AddBreadcrumbHookPanics(t *testing.T) {
	options := mockOptions()
	options.BeforeBreadcrumb = func(crumb *protocol.Breadcrumb, _ map[string]any) *protocol.Breadcrumb {
		crumb.Message = "half mutated"
		panic("hook exploded")
	}
	h, _ := mockNewHub(options)

	original := protocol.NewBreadcrumb("test", "original")
	h.AddBreadcrumb(original, nil)

	crumbs := h.CurrentScope().Breadcrumbs()
	r.Equal(t, 1, len(crumbs))
	// 存的是原 breadcrumb 实例，带上诊断信息
	r.Same(t, original, crumbs[0])
	r.Equal(t, "hook exploded", crumbs[0].Data[protocol.DataKeyHookError])
}

func TestHub_BreadcrumbOverflowScenario(t *testing.T) {
	options := mockOptions()
	options.MaxBreadcrumbs = 5
	h, _ := mockNewHub(options)

	for i := 0; i < 10; i++ {
		h.AddBreadcrumb(protocol.NewBreadcrumb("test", "crumb"), nil)
	}
	r.Equal(t, 5, len(h.CurrentScope().Breadcrumbs()))
}

func TestHub_ClearBreadcrumbsAffectsTopFrameOnly(t *testing.T) {
	h, _ := mockNewHub(nil)
	h.AddBreadcrumb(protocol.NewBreadcrumb("test", "root crumb"), nil)

	h.WithScope(func(scope *Scope) {
		h.ClearBreadcrumbs()
		r.Empty(t, scope.Breadcrumbs())
	})
	r.Equal(t, 1, len(h.CurrentScope().Breadcrumbs()))
}

func TestHub_UserFeedbackErrorsSwallowed(t *testing.T) {
	h, client := mockNewHub(nil)
	client.feedbackErr = errors.New("transport down")

	r.NotPanics(t, func() {
		h.CaptureUserFeedback(&protocol.UserFeedback{Comments: "hello"})
	})

	client.feedbackPanic = true
	r.NotPanics(t, func() {
		h.CaptureUserFeedback(&protocol.UserFeedback{Comments: "again"})
	})
}

func TestHub_BindClientReplacesTopReference(t *testing.T) {
	h, first := mockNewHub(nil)
	second := newMockClient()

	h.BindClient(second)
	h.CaptureMessage("routed", protocol.LevelInfo)

	r.Empty(t, first.calls)
	r.Equal(t, []string{"message"}, second.calls)
}

func TestHub_CaptureMessageDefaultsToInfo(t *testing.T) {
	h, client := mockNewHub(nil)
	h.CaptureMessage("hello", "")
	r.Equal(t, protocol.LevelInfo, client.events[0].Level)
}
