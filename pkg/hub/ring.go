package hub

import (
	"github.com/stleox/caphub/pkg/protocol"
)

// breadcrumbRing 是有界的 FIFO breadcrumb 缓冲。
// 满后插入会淘汰最旧一条。非并发安全，由持有它的 Scope 加锁。
type breadcrumbRing struct {
	max    int
	crumbs []*protocol.Breadcrumb
}

func newBreadcrumbRing(max int) *breadcrumbRing {
	return &breadcrumbRing{
		max:    max,
		crumbs: make([]*protocol.Breadcrumb, 0, max),
	}
}

// Add 尾部插入；到达容量时先淘汰头部。
func (r *breadcrumbRing) Add(crumb *protocol.Breadcrumb) {
	if len(r.crumbs) >= r.max {
		evict := len(r.crumbs) - r.max + 1
		r.crumbs = append(r.crumbs[:0], r.crumbs[evict:]...)
	}
	r.crumbs = append(r.crumbs, crumb)
}

func (r *breadcrumbRing) Len() int {
	return len(r.crumbs)
}

func (r *breadcrumbRing) Clear() {
	r.crumbs = r.crumbs[:0]
}

// Items 返回插入序的拷贝切片。
func (r *breadcrumbRing) Items() []*protocol.Breadcrumb {
	out := make([]*protocol.Breadcrumb, len(r.crumbs))
	copy(out, r.crumbs)
	return out
}

// clone 深拷贝，元素本身也拷贝，避免跨栈帧共享。
func (r *breadcrumbRing) clone() *breadcrumbRing {
	dup := newBreadcrumbRing(r.max)
	for _, c := range r.crumbs {
		dup.crumbs = append(dup.crumbs, c.Clone())
	}
	return dup
}
