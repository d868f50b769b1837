package hub

import (
	"errors"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
)

// spanAssociation 记录 error 被观测时活跃的 span 与事务名。
type spanAssociation struct {
	span            *Span
	transactionName string
}

// spanAssocCache 按 error 实例身份作键。
// 原设计没有淘汰策略，这里用有界 LRU 防止长时间运行下的无界增长。
type spanAssocCache struct {
	cache *lru.Cache[error, spanAssociation]
}

func newSpanAssocCache() *spanAssocCache {
	c, _ := lru.New[error, spanAssociation](config.MaxNumSpanAssoc)
	return &spanAssocCache{cache: c}
}

// comparableErr 报告 err 的动态类型可否作 map 键。
// 动态类型不可比较的 error 直接跳过，避免 runtime panic。
func comparableErr(err error) bool {
	return err != nil && reflect.TypeOf(err).Comparable()
}

// set 覆盖同一实例的既有关联。
func (sc *spanAssocCache) set(err error, span *Span, transactionName string) {
	if err == nil || span == nil {
		return
	}
	if !comparableErr(err) {
		logrus.Debugf("Caphub couldn't associate span with non-comparable error type %T", err)
		return
	}
	sc.cache.Add(err, spanAssociation{span: span, transactionName: transactionName})
}

// get 只查这一个实例，不走 cause 链。
func (sc *spanAssocCache) get(err error) (spanAssociation, bool) {
	if !comparableErr(err) {
		return spanAssociation{}, false
	}
	return sc.cache.Get(err)
}

// lookupChain 自外向内沿 Unwrap 链查找，返回首个命中。
func (sc *spanAssocCache) lookupChain(err error) (spanAssociation, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if assoc, hit := sc.get(e); hit {
			return assoc, true
		}
	}
	return spanAssociation{}, false
}
