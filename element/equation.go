package element

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/johnnewto/circuitjs1-sub000/expr"
	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// RowClass 方程行分类
type RowClass int

const (
	// ClassAlias 裸名字引用：不新增未知量，名字绑定到目标的未知量
	ClassAlias RowClass = iota
	// ClassConstant 纯常量：装配时一次性印章
	ClassConstant
	// ClassLinear 线性组合 Σ cᵢ·nameᵢ + k：以电压源加受控系数印章
	ClassLinear
	// ClassDynamic 其余：每轮松弛迭代重新求值
	ClassDynamic
)

func (c RowClass) String() string {
	switch c {
	case ClassAlias:
		return "alias"
	case ClassConstant:
		return "constant"
	case ClassLinear:
		return "linear"
	case ClassDynamic:
		return "dynamic"
	}
	return "unknown"
}

// classify 按优先级对解析后的行分类
// 别名 > 常量 > 线性 > 动态；带初值的行不参与别名分类
func classify(p *expr.Parsed, hasInit bool) RowClass {
	if _, ok := expr.AliasTarget(p.Root); ok && !hasInit {
		return ClassAlias
	}
	if _, ok := expr.IsConstant(p.Root); ok {
		return ClassConstant
	}
	if _, _, ok := expr.LinearTerms(p.Root); ok {
		return ClassLinear
	}
	return ClassDynamic
}

// Row 方程表中的一行
type Row struct {
	Name    string
	Text    string
	Init    float64
	HasInit bool

	// 可调参数：以 ParamName 发布到注册表，供本行或他行引用
	ParamName  string
	ParamValue float64

	parsed    *expr.Parsed
	state     *expr.State
	baseClass RowClass // 语法分类
	class     RowClass // 生效分类（线性行解析失败时降级为动态）
	usesDiff  bool

	out mna.NodeRef
	vs  mna.VsRef

	prevEval      float64
	lastCommitted float64
	initApplied   bool
	unresolved    []string
	parseErr      error // 表达式解析失败时的诊断（行本身保留，输出恒零）
}

// Class 返回本行当前生效的分类
func (r *Row) Class() RowClass { return r.class }

// Unresolved 返回本行求值遇到的未解析引用
func (r *Row) Unresolved() []string { return r.unresolved }

// EquationTable 方程表元件
// 每个非别名行占用一个内部节点与一个电压源；
// 行输出以行名发布到注册表，供其他行和元件引用
type EquationTable struct {
	Base
	Rows []*Row
}

// NewEquationTable 创建空方程表
func NewEquationTable() *EquationTable {
	return &EquationTable{Base: NewBase()}
}

// AddRow 追加一行 name = text
func (t *EquationTable) AddRow(name, text string) error {
	return t.addRow(name, text, 0, false)
}

// AddRowInit 追加一行带初值的行（初值使行脱离别名分类）
func (t *EquationTable) AddRowInit(name, text string, init float64) error {
	return t.addRow(name, text, init, true)
}

func (t *EquationTable) addRow(name, text string, init float64, hasInit bool) error {
	if name == "" {
		return fmt.Errorf("行名字不能为空: %w", mna.ErrParse)
	}
	// 解析失败不越过本行：行保留为输出恒零的动态行，错误只作诊断返回
	p, parseErr := expr.Parse(text)
	if parseErr != nil {
		parseErr = fmt.Errorf("行 %q: %w", name, parseErr)
		p, _ = expr.Parse("")
	}
	r := &Row{
		Name:      name,
		Text:      text,
		Init:      init,
		HasInit:   hasInit,
		parsed:    p,
		state:     p.NewState(),
		baseClass: classify(p, hasInit),
		usesDiff:  expr.UsesDiff(p.Root),
		parseErr:  parseErr,
	}
	if parseErr != nil {
		r.baseClass = ClassDynamic
	}
	r.class = r.baseClass
	r.state.OnUnresolved = func(ref string) {
		r.unresolved = append(r.unresolved, ref)
	}
	t.Rows = append(t.Rows, r)
	return parseErr
}

// SetRowParam 为某行设置可调参数
// 参数值可在时间步之间修改，下一步生效；结构不变，无须重新装配
func (t *EquationTable) SetRowParam(row, paramName string, v float64) error {
	for _, r := range t.Rows {
		if r.Name != row {
			continue
		}
		if r.ParamName != "" && r.ParamName != paramName {
			return fmt.Errorf("行 %q 已有参数 %q: %w", row, r.ParamName, mna.ErrBadStamp)
		}
		r.ParamName = paramName
		r.ParamValue = v
		return nil
	}
	return fmt.Errorf("行 %q 不存在: %w", row, mna.ErrBadStamp)
}

func (t *EquationTable) Kind() string { return "eqtable" }

func (t *EquationTable) nonAliasCount() int {
	n := 0
	for _, r := range t.Rows {
		if r.baseClass != ClassAlias {
			n++
		}
	}
	return n
}

func (t *EquationTable) RequestedInternalNodeCount() int { return t.nonAliasCount() }

func (t *EquationTable) RequestedVoltageSourceCount() int { return t.nonAliasCount() }

// SetInternal 将内部未知量按序分配给非别名行
func (t *EquationTable) SetInternal(nodes []mna.NodeRef, sources []mna.VsRef) {
	t.Base.SetInternal(nodes, sources)
	i := 0
	for _, r := range t.Rows {
		if r.baseClass == ClassAlias {
			continue
		}
		r.out = nodes[i]
		r.vs = sources[i]
		i++
	}
}

// stampDynamicExtras 动态行的负载电阻与迭代重装标记
func (t *EquationTable) stampDynamicExtras(ctx *mna.Context, r *Row) error {
	if err := ctx.M.StampResistor(r.out, mna.Ground(), ctx.Cfg.LoadResistance); err != nil {
		return err
	}
	return ctx.M.StampNonLinearVs(r.vs)
}

func (t *EquationTable) Stamp(ctx *mna.Context) error {
	for _, r := range t.Rows {
		r.class = r.baseClass
		r.state.Resolve = func(name string) (float64, bool) {
			return ctx.Reg.Value(name)
		}
		if r.ParamName != "" {
			if err := ctx.Reg.RegisterProvider(r.ParamName, func() float64 { return r.ParamValue }); err != nil {
				return err
			}
		}

		if r.class == ClassAlias {
			target, _ := expr.AliasTarget(r.parsed.Root)
			if err := ctx.Reg.RegisterAlias(r.Name, target); err != nil {
				return err
			}
			continue
		}

		if err := ctx.Reg.RegisterNode(r.Name, r.out); err != nil {
			return err
		}
		if r.HasInit {
			r.state.SeedIntegrals(r.Init)
			r.lastCommitted = r.Init
		}

		switch r.class {
		case ClassConstant:
			// 常量行装配时印章一次，之后不再触碰
			k, _ := expr.IsConstant(r.parsed.Root)
			if err := ctx.M.StampVoltageSource(mna.Ground(), r.out, r.vs, k); err != nil {
				return err
			}
		case ClassLinear:
			// 系数依赖他行注册，延迟到第二阶段
			if err := ctx.M.StampVoltageSource(mna.Ground(), r.out, r.vs, 0); err != nil {
				return err
			}
		case ClassDynamic:
			if err := ctx.M.StampVoltageSource(mna.Ground(), r.out, r.vs, 0); err != nil {
				return err
			}
			if err := t.stampDynamicExtras(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveDeferred 第二阶段：装载线性行系数
// 引用的名字未绑定到 MNA 未知量时整行降级为动态；
// 别名目标在全部元件印章后仍不存在时记入诊断
func (t *EquationTable) ResolveDeferred(ctx *mna.Context) error {
	for _, r := range t.Rows {
		if r.class == ClassAlias {
			target, _ := expr.AliasTarget(r.parsed.Root)
			if _, ok := ctx.Reg.Value(target); !ok {
				r.unresolved = append(r.unresolved, target)
			}
			continue
		}
		if r.class != ClassLinear {
			continue
		}
		coefs, k, _ := expr.LinearTerms(r.parsed.Root)
		resolved := make(map[string]mna.NodeRef, len(coefs))
		ok := true
		for name := range coefs {
			n, found := ctx.Reg.NodeOf(name)
			if !found {
				ok = false
				break
			}
			resolved[name] = n
		}
		if !ok {
			r.class = ClassDynamic
			if err := t.stampDynamicExtras(ctx, r); err != nil {
				return err
			}
			continue
		}
		// 电压源方程: V(out) - Σ cᵢ·V(nameᵢ) = k
		if err := ctx.M.UpdateVoltageSource(r.vs, k); err != nil {
			return err
		}
		for name, c := range coefs {
			if err := ctx.M.StampVCVS(resolved[name], mna.Ground(), -c, r.vs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *EquationTable) IsNonlinear() bool {
	for _, r := range t.Rows {
		if r.class == ClassDynamic {
			return true
		}
	}
	return false
}

func (t *EquationTable) EvaluateAndRestamp(ctx *mna.Context) error {
	for _, r := range t.Rows {
		if r.class != ClassDynamic {
			continue
		}
		es := r.state
		es.T = ctx.T
		es.Timestep = ctx.Cfg.Timestep
		es.LastOutput = r.lastCommitted

		val := r.parsed.Root.Eval(es)
		if r.HasInit && !r.initApplied {
			val = r.Init
			r.initApplied = true
		}

		// 收敛判定：与上一轮迭代的行输出比较
		if !(r.usesDiff && ctx.InDiffGrace()) {
			mag := math.Max(math.Abs(val), math.Abs(r.prevEval))
			if math.Abs(val-r.prevEval) > ctx.ConvergeLimit(mag, r.usesDiff) {
				ctx.MarkNotConverged(r.Name)
			}
		}
		r.prevEval = val

		if err := ctx.M.UpdateVoltageSource(r.vs, val); err != nil {
			return err
		}
	}
	return nil
}

func (t *EquationTable) CommitTimestep(ctx *mna.Context) {
	for _, r := range t.Rows {
		if r.class != ClassDynamic {
			continue
		}
		r.state.CommitStep(ctx.T)
		r.lastCommitted = r.prevEval
	}
}

func (t *EquationTable) Reset() {
	t.Base.Reset()
	for _, r := range t.Rows {
		r.state.Reset()
		r.class = r.baseClass
		r.prevEval = 0
		r.lastCommitted = 0
		r.initApplied = false
		r.unresolved = nil
	}
}

// Diagnostics 汇总全部行的解析错误与未解析引用诊断
func (t *EquationTable) Diagnostics() []string {
	var out []string
	for _, r := range t.Rows {
		if r.parseErr != nil {
			out = append(out, r.parseErr.Error())
		}
		for _, ref := range r.unresolved {
			out = append(out, fmt.Sprintf("行 %q: 未解析引用 %q", r.Name, ref))
		}
	}
	return out
}

func (t *EquationTable) Dump() []string {
	out := []string{strconv.Itoa(len(t.Rows))}
	for _, r := range t.Rows {
		init := "-"
		if r.HasInit {
			init = strconv.FormatFloat(r.Init, 'g', -1, 64)
		}
		param, paramVal := "-", "0"
		if r.ParamName != "" {
			param = mna.EscapeText(r.ParamName)
			paramVal = strconv.FormatFloat(r.ParamValue, 'g', -1, 64)
		}
		out = append(out,
			mna.EscapeText(r.Name), mna.EscapeText(r.Text), init, param, paramVal)
	}
	return out
}

func init() {
	mna.RegisterKind("eqtable", func(tokens []string, m *mna.MNA) (mna.Face, error) {
		count, err := mna.TokenInt(tokens, 0)
		if err != nil {
			return nil, err
		}
		t := NewEquationTable()
		for i := 0; i < count; i++ {
			base := 1 + i*5
			if base+4 >= len(tokens) {
				return nil, fmt.Errorf("方程表行 %d 记号不足: %w", i, mna.ErrParse)
			}
			name := mna.UnescapeText(tokens[base])
			text := mna.UnescapeText(tokens[base+1])
			if tokens[base+2] == "-" {
				err = t.AddRow(name, text)
			} else {
				var init float64
				if init, err = mna.TokenFloat(tokens, base+2); err == nil {
					err = t.AddRowInit(name, text, init)
				}
			}
			// 公式解析错误不拖垮整个网表：坏行已保留为恒零行并记入诊断
			if err != nil && !errors.Is(err, expr.ErrParse) {
				return nil, err
			}
			if tokens[base+3] != "-" {
				var pv float64
				if pv, err = mna.TokenFloat(tokens, base+4); err != nil {
					return nil, err
				}
				if err = t.SetRowParam(name, mna.UnescapeText(tokens[base+3]), pv); err != nil {
					return nil, err
				}
			}
		}
		return t, nil
	})
}
