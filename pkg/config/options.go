package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
	"github.com/stleox/caphub/pkg/protocol"
)

// ErrMissingDSN 表示构造 Hub 时缺少必需的 DSN。
var ErrMissingDSN = errors.New("caphub: DSN is required")

// BeforeBreadcrumb 在 breadcrumb 入环前执行一次过滤/改写。
// 返回 nil 表示丢弃；返回值（可以是改写后的）将被存储。
type BeforeBreadcrumb func(crumb *protocol.Breadcrumb, hint map[string]any) *protocol.Breadcrumb

// SamplingContext 是采样回调可见的 transaction 信息。
type SamplingContext struct {
	Name          string
	Op            string
	ParentSampled *bool
}

// TracesSampler 自定义采样回调，返回 nil 表示不作决定。
type TracesSampler func(sc SamplingContext) *bool

// Executor 是后台执行器的关闭契约，实现见 pkg/worker。
type Executor interface {
	Submit(task func()) error
	Close(timeout time.Duration)
}

// Options 是构造 Hub/Client 的根配置。
type Options struct {
	// 必填，上报端点标识。仅校验非空，解析细节由 transport 负责。
	DSN string

	Release     string
	Environment string

	// breadcrumb 环容量，0 取 DefaultMaxBreadcrumbs
	MaxBreadcrumbs int

	// 固定采样率，nil 表示未配置
	SampleRate *float64
	// 自定义采样器，优先于 SampleRate
	Sampler TracesSampler

	BeforeBreadcrumb BeforeBreadcrumb

	// 周期 Flush 的 cron 表达式，空串关闭周期刷新
	FlushSchedule string

	// 事件落库的 OLAP DSN，空串关闭落库
	OlapDSN string

	// transaction 导出方式：grpc | stdout | dummy
	Exporter string

	Executor Executor

	Debug bool
}

// NewOptions 从 viper 读取配置，未设置项取默认值。
func NewOptions(vp *viper.Viper) *Options {
	o := &Options{
		DSN:            vp.GetString("CAPHUB_DSN"),
		Release:        vp.GetString("CAPHUB_RELEASE"),
		Environment:    vp.GetString("CAPHUB_ENVIRONMENT"),
		MaxBreadcrumbs: vp.GetInt("CAPHUB_MAX_BREADCRUMBS"),
		FlushSchedule:  vp.GetString("CAPHUB_FLUSH_SCHEDULE"),
		OlapDSN:        vp.GetString("CAPHUB_OLAP_DSN"),
		Exporter:       vp.GetString("CAPHUB_EXPORTER"),
		Debug:          vp.GetBool("CAPHUB_DEBUG"),
	}
	if vp.IsSet("CAPHUB_TRACES_SAMPLE_RATE") {
		rate := vp.GetFloat64("CAPHUB_TRACES_SAMPLE_RATE")
		o.SampleRate = &rate
	}
	return o
}

// Validate 检查必填项并归一化边界值。
func (o *Options) Validate() error {
	if o.DSN == "" {
		return ErrMissingDSN
	}
	if o.MaxBreadcrumbs <= 0 {
		o.MaxBreadcrumbs = DefaultMaxBreadcrumbs
	}
	if o.MaxBreadcrumbs > MaxBreadcrumbsCeiling {
		o.MaxBreadcrumbs = MaxBreadcrumbsCeiling
	}
	return nil
}

// SessionsEnabled 报告 session 跟踪是否开启（以 Release 为开关）。
func (o *Options) SessionsEnabled() bool {
	return o.Release != ""
}
