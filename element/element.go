// Package element 提供元件实现：
// 方程表、单行方程、电阻、电压源、电流源与标签节点。
// 全部元件实现 mna.Face 契约，通过具体结构体表达，无继承层级。
package element

import (
	"gonum.org/v1/gonum/mat"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// Base 元件公共基座
// 保存外部引脚、装配阶段分配的内部未知量以及各引脚电流
type Base struct {
	Pins     []mna.NodeRef
	Internal []mna.NodeRef
	Sources  []mna.VsRef
	Current  *mat.VecDense // 每引脚电流（提交时更新）
}

// NewBase 以外部引脚创建基座
func NewBase(pins ...mna.NodeRef) Base {
	return Base{
		Pins:    pins,
		Current: mat.NewVecDense(maxInt(len(pins), 1), nil),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetInternal 接收装配阶段分配的内部未知量
func (b *Base) SetInternal(nodes []mna.NodeRef, sources []mna.VsRef) {
	b.Internal = nodes
	b.Sources = sources
}

// 以下为契约的缺省实现，具体元件按需覆盖

func (b *Base) RequestedVoltageSourceCount() int { return 0 }

func (b *Base) RequestedInternalNodeCount() int { return 0 }

func (b *Base) ResolveDeferred(ctx *mna.Context) error { return nil }

func (b *Base) IsNonlinear() bool { return false }

func (b *Base) EvaluateAndRestamp(ctx *mna.Context) error { return nil }

func (b *Base) CommitTimestep(ctx *mna.Context) {}

func (b *Base) Reset() {
	b.Current.Zero()
}
