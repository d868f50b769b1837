package hub

// layer 是 scope 栈的一帧：client 引用加一份 Scope。
type layer struct {
	client Client
	scope  *Scope
}

// scopeStack 始终至少保留根帧。由 Hub 的锁串行访问。
type scopeStack struct {
	layers []*layer
}

func newScopeStack(client Client, scope *Scope) *scopeStack {
	return &scopeStack{
		layers: []*layer{{client: client, scope: scope}},
	}
}

func (st *scopeStack) top() *layer {
	return st.layers[len(st.layers)-1]
}

func (st *scopeStack) push(l *layer) {
	st.layers = append(st.layers, l)
}

// pop 弹出栈顶；根帧不可弹出。
func (st *scopeStack) pop() {
	if len(st.layers) <= 1 {
		return
	}
	st.layers = st.layers[:len(st.layers)-1]
}

func (st *scopeStack) depth() int {
	return len(st.layers)
}
