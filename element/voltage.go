package element

import (
	"math"
	"strconv"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// VoltageSource 电压源（直流或正弦驱动）
// V(正极) - V(负极) = 输出电压
type VoltageSource struct {
	Base
	DC        float64
	Amplitude float64 // 正弦幅值（0 表示纯直流）
	Frequency float64 // 正弦频率（Hz）
	Phase     float64 // 初相（弧度）

	stamped float64 // 上一轮迭代装入的右端项
}

// NewVoltageSource 在 neg、pos 间创建直流电压源
func NewVoltageSource(neg, pos mna.NodeRef, dc float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(neg, pos), DC: dc}
}

// NewSineSource 在 neg、pos 间创建正弦电压源（直流偏置 dc）
func NewSineSource(neg, pos mna.NodeRef, dc, amplitude, freq, phase float64) *VoltageSource {
	return &VoltageSource{
		Base: NewBase(neg, pos), DC: dc,
		Amplitude: amplitude, Frequency: freq, Phase: phase,
	}
}

func (e *VoltageSource) Kind() string { return "voltage" }

func (e *VoltageSource) RequestedVoltageSourceCount() int { return 1 }

// voltage 给定时刻的输出电压
func (e *VoltageSource) voltage(t float64) float64 {
	if e.Amplitude == 0 {
		return e.DC
	}
	return e.DC + e.Amplitude*math.Sin(2*math.Pi*e.Frequency*t+e.Phase)
}

func (e *VoltageSource) Stamp(ctx *mna.Context) error {
	// 时变源的右端项逐轮重装，装配阶段只印章矩阵部分
	v := e.DC
	if e.IsNonlinear() {
		v = 0
		if err := ctx.M.StampNonLinearVs(e.Sources[0]); err != nil {
			return err
		}
	}
	return ctx.M.StampVoltageSource(e.Pins[0], e.Pins[1], e.Sources[0], v)
}

func (e *VoltageSource) IsNonlinear() bool { return e.Amplitude != 0 }

func (e *VoltageSource) EvaluateAndRestamp(ctx *mna.Context) error {
	v := e.voltage(ctx.T)
	// 时间推进后装入值发生变化，上一轮的解不可接受
	if v != e.stamped {
		ctx.MarkNotConverged("voltage")
		e.stamped = v
	}
	return ctx.M.UpdateVoltageSource(e.Sources[0], v)
}

func (e *VoltageSource) Reset() {
	e.Base.Reset()
	e.stamped = 0
}

func (e *VoltageSource) CommitTimestep(ctx *mna.Context) {
	i := ctx.M.VsCurrent(e.Sources[0])
	e.Current.SetVec(0, i)
	e.Current.SetVec(1, -i)
}

func (e *VoltageSource) Dump() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(e.Pins[0].Num()),
		strconv.Itoa(e.Pins[1].Num()),
		f(e.DC), f(e.Amplitude), f(e.Frequency), f(e.Phase),
	}
}

func init() {
	mna.RegisterKind("voltage", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		an, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		bn, err := mna.TokenInt(tokens, 1)
		if err != nil {
			return nil, err
		}
		var vals [4]float64
		for i := range vals {
			if vals[i], err = mna.TokenFloat(tokens, 2+i); err != nil {
				return nil, err
			}
		}
		neg, err := m.EnsureNode(an)
		if err != nil {
			return nil, err
		}
		pos, err := m.EnsureNode(bn)
		if err != nil {
			return nil, err
		}
		return NewSineSource(neg, pos, vals[0], vals[1], vals[2], vals[3]), nil
	})
}
