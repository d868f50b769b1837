// Package integration ships the built-in integrations registered on root
// Hub construction.
package integration

import (
	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/hub"
	"github.com/stleox/caphub/pkg/protocol"
)

// LogrusBreadcrumbs 安装一个 logrus hook，把日志条目转成 breadcrumb。
type LogrusBreadcrumbs struct {
	// 捕获的最低级别，零值取 InfoLevel
	MinLevel logrus.Level

	// 安装目标，nil 取 logrus 标准 logger
	Logger *logrus.Logger
}

func (itg *LogrusBreadcrumbs) Name() string {
	return "LogrusBreadcrumbs"
}

func (itg *LogrusBreadcrumbs) Register(h *hub.Hub, _ *config.Options) {
	logger := itg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	minLevel := itg.MinLevel
	if minLevel == 0 {
		minLevel = logrus.InfoLevel
	}
	logger.AddHook(&crumbHook{hub: h, minLevel: minLevel})
}

type crumbHook struct {
	hub      *hub.Hub
	minLevel logrus.Level
}

func (ch *crumbHook) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0, ch.minLevel+1)
	for l := logrus.PanicLevel; l <= ch.minLevel; l++ {
		levels = append(levels, l)
	}
	return levels
}

func (ch *crumbHook) Fire(entry *logrus.Entry) error {
	crumb := protocol.NewBreadcrumb("log", entry.Message)
	crumb.Timestamp = entry.Time.UTC()
	crumb.Level = crumbLevel(entry.Level)
	if len(entry.Data) > 0 {
		crumb.Data = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			crumb.Data[k] = v
		}
	}
	ch.hub.AddBreadcrumb(crumb, nil)
	return nil
}

func crumbLevel(level logrus.Level) protocol.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return protocol.LevelFatal
	case logrus.ErrorLevel:
		return protocol.LevelError
	case logrus.WarnLevel:
		return protocol.LevelWarning
	case logrus.DebugLevel, logrus.TraceLevel:
		return protocol.LevelDebug
	default:
		return protocol.LevelInfo
	}
}
