package element

import (
	"strconv"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// CurrentSource 直流电流源（电流从 a 流向 b）
type CurrentSource struct {
	Base
	I float64
}

// NewCurrentSource 在节点 a、b 间创建电流源
func NewCurrentSource(a, b mna.NodeRef, i float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(a, b), I: i}
}

func (e *CurrentSource) Kind() string { return "current" }

func (e *CurrentSource) Stamp(ctx *mna.Context) error {
	return ctx.M.StampCurrentSource(e.Pins[0], e.Pins[1], e.I)
}

func (e *CurrentSource) CommitTimestep(ctx *mna.Context) {
	e.Current.SetVec(0, e.I)
	e.Current.SetVec(1, -e.I)
}

func (e *CurrentSource) Dump() []string {
	return []string{
		strconv.Itoa(e.Pins[0].Num()),
		strconv.Itoa(e.Pins[1].Num()),
		strconv.FormatFloat(e.I, 'g', -1, 64),
	}
}

// LabeledNode 标签节点：以用户名字发布所在节点的电位
type LabeledNode struct {
	Base
	Name string
}

// NewLabeledNode 为节点 n 创建标签
func NewLabeledNode(n mna.NodeRef, name string) *LabeledNode {
	return &LabeledNode{Base: NewBase(n), Name: name}
}

func (e *LabeledNode) Kind() string { return "label" }

func (e *LabeledNode) Stamp(ctx *mna.Context) error {
	return ctx.Reg.RegisterNode(e.Name, e.Pins[0])
}

func (e *LabeledNode) Dump() []string {
	return []string{
		strconv.Itoa(e.Pins[0].Num()),
		mna.EscapeText(e.Name),
	}
}

func init() {
	mna.RegisterKind("current", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		an, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		bn, err := mna.TokenInt(tokens, 1)
		if err != nil {
			return nil, err
		}
		i, err := mna.TokenFloat(tokens, 2)
		if err != nil {
			return nil, err
		}
		a, err := m.EnsureNode(an)
		if err != nil {
			return nil, err
		}
		b, err := m.EnsureNode(bn)
		if err != nil {
			return nil, err
		}
		return NewCurrentSource(a, b, i), nil
	})
	mna.RegisterKind("label", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		nn, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		if len(tokens) < 2 {
			return nil, mna.ErrParse
		}
		n, err := m.EnsureNode(nn)
		if err != nil {
			return nil, err
		}
		return NewLabeledNode(n, mna.UnescapeText(tokens[1])), nil
	})
}
