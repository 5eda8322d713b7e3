package mna

// Face 元件契约
// 元件的外部节点在构造时由调用方分配；内部节点与电压源
// 由 Sim 在装配阶段按申报数量分配后通过 SetInternal 下发。
// 印章分两个阶段：Stamp 装载可立即确定的部分，
// ResolveDeferred 在全部元件完成第一阶段后装载依赖他人注册的部分。
type Face interface {
	// Kind 返回元件类型标签（序列化用）
	Kind() string
	// RequestedVoltageSourceCount 申报所需电压源数量
	RequestedVoltageSourceCount() int
	// RequestedInternalNodeCount 申报所需内部节点数量
	RequestedInternalNodeCount() int
	// SetInternal 接收装配阶段分配的内部节点与电压源
	SetInternal(nodes []NodeRef, sources []VsRef)
	// Stamp 第一阶段印章
	Stamp(ctx *Context) error
	// ResolveDeferred 第二阶段印章（无延迟工作时为空实现）
	ResolveDeferred(ctx *Context) error
	// IsNonlinear 是否参与松弛迭代
	IsNonlinear() bool
	// EvaluateAndRestamp 每轮迭代重新求值并印章动态部分
	EvaluateAndRestamp(ctx *Context) error
	// CommitTimestep 时间步收敛后提交状态
	CommitTimestep(ctx *Context)
	// Reset 清空全部时间状态
	Reset()
	// Dump 序列化为扁平记号（不含类型标签）
	Dump() []string
}

// Context 元件与求解循环之间的单步上下文
type Context struct {
	M   *MNA
	Reg *Registry
	Cfg Config

	T       float64 // 当前仿真时间
	Step    int64   // 已完成的时间步数
	SubIter int     // 当前松弛迭代序号

	converged bool
	worstRow  string
}

// Converged 本轮迭代是否收敛（元件可将其置否）
func (c *Context) Converged() bool { return c.converged }

// MarkNotConverged 报告某行未收敛
func (c *Context) MarkNotConverged(name string) {
	c.converged = false
	c.worstRow = name
}

// ConvergeLimit 按当前迭代序号计算给定量级的收敛限
// usesDiff 为真时放宽容差
func (c *Context) ConvergeLimit(magnitude float64, usesDiff bool) float64 {
	tol := c.Cfg.Tol(c.SubIter)
	if usesDiff {
		tol *= c.Cfg.DiffTolFactor
	}
	if magnitude < 1 {
		magnitude = 1
	}
	return magnitude * tol
}

// InDiffGrace 含 diff 行是否处于收敛判定豁免期
func (c *Context) InDiffGrace() bool {
	return c.SubIter < c.Cfg.DiffGraceIters
}
