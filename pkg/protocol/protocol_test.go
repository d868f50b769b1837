package protocol

import (
	"errors"
	"testing"

	r "github.com/stretchr/testify/require"
)

func TestNewEventID_Format(t *testing.T) {
	id := NewEventID()
	r.Len(t, string(id), 32)
	r.NotEqual(t, NewEventID(), id)
}

func TestEventFromException(t *testing.T) {
	err := errors.New("boom")
	event := EventFromException(err)
	r.Equal(t, LevelError, event.Level)
	r.Equal(t, "boom", event.Message)
	r.Same(t, err, event.Err)

	r.Nil(t, EventFromException(nil))
}

func TestEventFromMessage(t *testing.T) {
	event := EventFromMessage("hello", LevelWarning)
	r.Equal(t, LevelWarning, event.Level)
	r.Equal(t, "hello", event.Message)

	r.Nil(t, EventFromMessage("", LevelInfo))
}

func TestBreadcrumbClone(t *testing.T) {
	crumb := NewBreadcrumb("test", "msg")
	crumb.Data = map[string]any{"k": "v"}

	dup := crumb.Clone()
	dup.Data["k"] = "changed"
	r.Equal(t, "v", crumb.Data["k"])
}

func TestSessionEndIsTerminal(t *testing.T) {
	session := NewSession("rel", "env")
	r.Equal(t, SessionStarted, session.Status)

	session.End()
	first := session.EndedAt
	r.Equal(t, SessionEnded, session.Status)

	session.End()
	r.Equal(t, first, session.EndedAt)
}

func TestEnvelopeAdd(t *testing.T) {
	env := NewEnvelope(NewEventID())
	env.Add(ItemTypeEvent, NewEvent())
	env.Add(ItemTypeSession, NewSession("rel", "env"))
	r.Equal(t, 2, len(env.Items))
	r.Equal(t, ItemTypeEvent, env.Items[0].Type)
	r.Equal(t, ItemTypeSession, env.Items[1].Type)
}
