package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// well-known hint keys passed through capture calls
const (
	HintSessionStart = "session.start"
	HintSessionEnd   = "session.end"
)

// for root
var (
	Debug = false
)

// for pkg hub
var (
	// breadcrumb 环的默认容量
	DefaultMaxBreadcrumbs = 100

	// breadcrumb 环容量的硬上限
	MaxBreadcrumbsCeiling = 500

	// span 关联缓存的容量
	MaxNumSpanAssoc = 1024
)

// for pkg worker
var (
	DefaultQueueSize  = 64
	DefaultNumWorkers = 2

	// cron 周期刷新的间隔
	DefaultFlushSchedule = "@every 30s"

	// Close 未指定超时时的兜底
	DefaultShutdownTimeout = 2 * time.Second
)

// for DB
var (
	// 测试账号
	CAPHUB_DEFAULT_OLAP_DSN = "root:@tcp(127.0.0.1:9030)/caphub"

	// DATE6 = "2006-01-02 15:04:05.000000" 的长度
	L_DATE6 = 26
)

// initializes logrus
func initLogrus(_ *viper.Viper) {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: time.DateTime,
	})
	if Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func init() {
	initLogrus(nil)
}
