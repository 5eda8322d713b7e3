package element

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/johnnewto/circuitjs1-sub000/expr"
	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// Equation 单行方程元件
// 将外部输出引脚驱动到表达式的值，按动态行参与松弛迭代
type Equation struct {
	Base
	Text string

	parsed   *expr.Parsed
	state    *expr.State
	usesDiff bool

	prevEval      float64
	lastCommitted float64
	unresolved    []string
	parseErr      error
}

// NewEquation 创建驱动 out 引脚的单行方程
// 表达式解析失败时元件仍然创建（输出恒零），错误作为诊断一并返回
func NewEquation(out mna.NodeRef, text string) (*Equation, error) {
	if out.IsGround() {
		return nil, fmt.Errorf("方程输出不能接地: %w", mna.ErrBadStamp)
	}
	p, parseErr := expr.Parse(text)
	if parseErr != nil {
		parseErr = fmt.Errorf("方程 %q: %w", text, parseErr)
		p, _ = expr.Parse("")
	}
	e := &Equation{
		Base:     NewBase(out),
		Text:     text,
		parsed:   p,
		state:    p.NewState(),
		usesDiff: expr.UsesDiff(p.Root),
		parseErr: parseErr,
	}
	e.state.OnUnresolved = func(ref string) {
		e.unresolved = append(e.unresolved, ref)
	}
	return e, parseErr
}

func (e *Equation) Kind() string { return "equation" }

func (e *Equation) RequestedVoltageSourceCount() int { return 1 }

func (e *Equation) Stamp(ctx *mna.Context) error {
	e.state.Resolve = func(name string) (float64, bool) {
		return ctx.Reg.Value(name)
	}
	if err := ctx.M.StampVoltageSource(mna.Ground(), e.Pins[0], e.Sources[0], 0); err != nil {
		return err
	}
	if err := ctx.M.StampResistor(e.Pins[0], mna.Ground(), ctx.Cfg.LoadResistance); err != nil {
		return err
	}
	return ctx.M.StampNonLinearVs(e.Sources[0])
}

func (e *Equation) IsNonlinear() bool { return true }

func (e *Equation) EvaluateAndRestamp(ctx *mna.Context) error {
	es := e.state
	es.T = ctx.T
	es.Timestep = ctx.Cfg.Timestep
	es.LastOutput = e.lastCommitted

	val := e.parsed.Root.Eval(es)
	if !(e.usesDiff && ctx.InDiffGrace()) {
		mag := math.Max(math.Abs(val), math.Abs(e.prevEval))
		if math.Abs(val-e.prevEval) > ctx.ConvergeLimit(mag, e.usesDiff) {
			ctx.MarkNotConverged(e.Text)
		}
	}
	e.prevEval = val
	return ctx.M.UpdateVoltageSource(e.Sources[0], val)
}

func (e *Equation) CommitTimestep(ctx *mna.Context) {
	e.state.CommitStep(ctx.T)
	e.lastCommitted = e.prevEval
	i := ctx.M.VsCurrent(e.Sources[0])
	e.Current.SetVec(0, i)
}

func (e *Equation) Reset() {
	e.Base.Reset()
	e.state.Reset()
	e.prevEval = 0
	e.lastCommitted = 0
	e.unresolved = nil
}

// Unresolved 返回求值遇到的未解析引用
func (e *Equation) Unresolved() []string { return e.unresolved }

// Diagnostics 汇总解析错误与未解析引用诊断
func (e *Equation) Diagnostics() []string {
	var out []string
	if e.parseErr != nil {
		out = append(out, e.parseErr.Error())
	}
	for _, ref := range e.unresolved {
		out = append(out, fmt.Sprintf("方程 %q: 未解析引用 %q", e.Text, ref))
	}
	return out
}

func (e *Equation) Dump() []string {
	return []string{
		strconv.Itoa(e.Pins[0].Num()),
		mna.EscapeText(e.Text),
	}
}

func init() {
	mna.RegisterKind("equation", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		nn, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		if len(tokens) < 2 {
			return nil, mna.ErrParse
		}
		out, err := m.EnsureNode(nn)
		if err != nil {
			return nil, err
		}
		e, err := NewEquation(out, mna.UnescapeText(tokens[1]))
		// 坏公式不拖垮整个网表：元件保留为恒零输出并记入诊断
		if err != nil && !errors.Is(err, expr.ErrParse) {
			return nil, err
		}
		return e, nil
	})
}
