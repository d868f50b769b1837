package integration

import (
	"os"
	"runtime"

	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/hub"
)

// RuntimeContext 把进程级信息打到根 Scope 的 tags 上。
type RuntimeContext struct{}

func (itg *RuntimeContext) Name() string {
	return "RuntimeContext"
}

func (itg *RuntimeContext) Register(h *hub.Hub, o *config.Options) {
	h.ConfigureScope(func(scope *hub.Scope) {
		scope.SetTag("runtime.version", runtime.Version())
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		if host, err := os.Hostname(); err == nil {
			scope.SetTag("server_name", host)
		}
		if o.Release != "" {
			scope.SetTag("release", o.Release)
		}
		if o.Environment != "" {
			scope.SetTag("environment", o.Environment)
		}
	})
}
