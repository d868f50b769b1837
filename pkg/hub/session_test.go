package hub

import (
	"testing"
	"time"

	"github.com/stleox/caphub/pkg/protocol"
	r "github.com/stretchr/testify/require"
)

func TestSession_StartThenEnd(t *testing.T) {
	h, client := mockNewHub(nil)

	h.StartSession()
	h.EndSession()

	r.Equal(t, []string{"session:start", "session:end"}, client.calls)
	r.Equal(t, protocol.SessionEnded, client.sessions[1].Status)
	r.Same(t, client.sessions[0], client.sessions[1])
}

func TestSession_DoubleStartEndsPrevious(t *testing.T) {
	h, client := mockNewHub(nil)

	h.StartSession()
	h.StartSession()

	// 第二次 start 先结束上一个：start, end, start
	r.Equal(t, []string{"session:start", "session:end", "session:start"}, client.calls)
	r.Equal(t, protocol.SessionEnded, client.sessions[1].Status)
	r.NotEqual(t, client.sessions[0].ID, client.sessions[2].ID)
}

func TestSession_EndWithoutActiveIsNoop(t *testing.T) {
	h, client := mockNewHub(nil)
	h.EndSession()
	r.Empty(t, client.calls)
}

func TestSession_EndTwiceNotifiesOnce(t *testing.T) {
	h, client := mockNewHub(nil)
	h.StartSession()
	h.EndSession()
	h.EndSession()
	r.Equal(t, []string{"session:start", "session:end"}, client.calls)
}

func TestSession_EndRequiresRelease(t *testing.T) {
	options := mockOptions()
	options.Release = ""
	h, client := mockNewHub(options)

	h.StartSession()
	h.EndSession()

	// 未配置 release 时 endSession 不通知
	r.Equal(t, []string{"session:start"}, client.calls)
}

func TestSession_NoopWhenDisabled(t *testing.T) {
	h, client := mockNewHub(nil)
	h.Close(time.Millisecond)

	h.StartSession()
	h.EndSession()
	r.Empty(t, client.calls)
}

func TestSession_CarriesReleaseAndEnvironment(t *testing.T) {
	options := mockOptions()
	options.Environment = "staging"
	h, client := mockNewHub(options)

	h.StartSession()
	r.Equal(t, options.Release, client.sessions[0].Release)
	r.Equal(t, "staging", client.sessions[0].Environment)
}
