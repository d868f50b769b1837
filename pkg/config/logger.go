package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// for Log

func initLog4(path string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	tmpLog, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(err)
	}
	// defer tmpLog.Close()
	logger.SetOutput(tmpLog)
	return logger
}

const (
	// 被 BeforeBreadcrumb 丢弃的 breadcrumb
	PathDropped = "/tmp/caphub_dropped_crumbs.log.json"
	// 未采样而被丢弃的 transaction
	PathUnsampled = "/tmp/caphub_unsampled_tx.log.json"
)

var (
	Log4Dropped   = initLog4(PathDropped)
	Log4Unsampled = initLog4(PathUnsampled)
)

func init() {
	Log4Dropped.SetLevel(logrus.DebugLevel)
	Log4Unsampled.SetLevel(logrus.DebugLevel)
}
