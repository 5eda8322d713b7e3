package mna

import (
	"fmt"
	"sort"
)

// Registry 命名值注册表
// 元件在此发布命名值（标签节点电位、方程行输出等），
// 表达式求值通过它解析引用；每个电路实例持有独立注册表
type Registry struct {
	m         *MNA
	nodes     map[string]NodeRef        // 节点背书的名字
	providers map[string]func() float64 // 计算值提供者
	aliases   map[string]string         // 别名 -> 目标名
	committed map[string]float64        // 上一步提交快照
}

// NewRegistry 创建注册表
func NewRegistry(m *MNA) *Registry {
	return &Registry{
		m:         m,
		nodes:     make(map[string]NodeRef),
		providers: make(map[string]func() float64),
		aliases:   make(map[string]string),
		committed: make(map[string]float64),
	}
}

func (r *Registry) checkDup(name string) error {
	if _, ok := r.nodes[name]; ok {
		return fmt.Errorf("命名值 %q 重复注册: %w", name, ErrBadStamp)
	}
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("命名值 %q 重复注册: %w", name, ErrBadStamp)
	}
	if _, ok := r.aliases[name]; ok {
		return fmt.Errorf("命名值 %q 重复注册: %w", name, ErrBadStamp)
	}
	return nil
}

// RegisterNode 注册节点背书的命名值
func (r *Registry) RegisterNode(name string, n NodeRef) error {
	if err := r.checkDup(name); err != nil {
		return err
	}
	r.nodes[name] = n
	return nil
}

// RegisterProvider 注册计算值提供者
func (r *Registry) RegisterProvider(name string, fn func() float64) error {
	if err := r.checkDup(name); err != nil {
		return err
	}
	r.providers[name] = fn
	return nil
}

// RegisterAlias 注册别名（可链式；解析时逐级展开）
func (r *Registry) RegisterAlias(name, target string) error {
	if err := r.checkDup(name); err != nil {
		return err
	}
	r.aliases[name] = target
	return nil
}

// resolveAlias 展开别名链，返回最终名字（带环路保护）
func (r *Registry) resolveAlias(name string) (string, bool) {
	seen := 0
	for {
		target, ok := r.aliases[name]
		if !ok {
			return name, true
		}
		name = target
		seen++
		if seen > len(r.aliases) {
			return "", false // 别名环
		}
	}
}

// NodeOf 返回名字背后的节点句柄（展开别名链）
// 名字不存在或不是节点背书时返回 false
func (r *Registry) NodeOf(name string) (NodeRef, bool) {
	final, ok := r.resolveAlias(name)
	if !ok {
		return NodeRef{}, false
	}
	n, ok := r.nodes[final]
	return n, ok
}

// Value 返回名字的当前值（迭代期间为本轮最新值）
func (r *Registry) Value(name string) (float64, bool) {
	final, ok := r.resolveAlias(name)
	if !ok {
		return 0, false
	}
	if n, ok := r.nodes[final]; ok {
		return r.m.X(n), true
	}
	if fn, ok := r.providers[final]; ok {
		return fn(), true
	}
	return 0, false
}

// Committed 返回名字上一步提交的值（无快照时返回 false）
func (r *Registry) Committed(name string) (float64, bool) {
	final, ok := r.resolveAlias(name)
	if !ok {
		return 0, false
	}
	v, ok := r.committed[final]
	return v, ok
}

// Snapshot 在时间步提交后为全部名字保存快照
func (r *Registry) Snapshot() {
	for name := range r.nodes {
		v, _ := r.Value(name)
		r.committed[name] = v
	}
	for name := range r.providers {
		v, _ := r.Value(name)
		r.committed[name] = v
	}
}

// Names 返回全部已注册名字（含别名，按字典序）
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.nodes)+len(r.providers)+len(r.aliases))
	for name := range r.nodes {
		out = append(out, name)
	}
	for name := range r.providers {
		out = append(out, name)
	}
	for name := range r.aliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset 清空全部注册与快照（重新装配前调用）
func (r *Registry) Reset() {
	r.nodes = make(map[string]NodeRef)
	r.providers = make(map[string]func() float64)
	r.aliases = make(map[string]string)
	r.committed = make(map[string]float64)
}
