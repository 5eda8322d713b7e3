package element

import (
	"fmt"
	"strconv"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// Resistor 电阻
type Resistor struct {
	Base
	R float64
}

// NewResistor 在节点 a、b 间创建电阻
func NewResistor(a, b mna.NodeRef, r float64) *Resistor {
	return &Resistor{Base: NewBase(a, b), R: r}
}

func (e *Resistor) Kind() string { return "resistor" }

func (e *Resistor) Stamp(ctx *mna.Context) error {
	return ctx.M.StampResistor(e.Pins[0], e.Pins[1], e.R)
}

// CommitTimestep 按欧姆定律更新引脚电流
func (e *Resistor) CommitTimestep(ctx *mna.Context) {
	i := (ctx.M.X(e.Pins[0]) - ctx.M.X(e.Pins[1])) / e.R
	e.Current.SetVec(0, i)
	e.Current.SetVec(1, -i)
}

func (e *Resistor) Dump() []string {
	return []string{
		strconv.Itoa(e.Pins[0].Num()),
		strconv.Itoa(e.Pins[1].Num()),
		strconv.FormatFloat(e.R, 'g', -1, 64),
	}
}

func init() {
	mna.RegisterKind("resistor", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		an, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		bn, err := mna.TokenInt(tokens, 1)
		if err != nil {
			return nil, err
		}
		r, err := mna.TokenFloat(tokens, 2)
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
		if r == 0 {
			return nil, fmt.Errorf("电阻值不能为零: %w", mna.ErrParse)
		}
		return NewResistor(a, b, r), nil
	})
}
