package mna

import (
	"fmt"
	"log/slog"
)

// Sim 仿真驱动
// 持有 MNA 系统、注册表与全部元件，按时间步推进松弛迭代
type Sim struct {
	Cfg Config
	M   *MNA
	Reg *Registry

	faces []Face

	// 装配前的外部未知量基数（复位重装时恢复）
	baseNodes    int
	baseVs       int
	baseRecorded bool

	assembled bool
	factored  bool

	T         float64
	StepCount int64
	// LastIters 最近一个时间步使用的松弛迭代轮数
	LastIters int
}

// NewSim 创建仿真驱动
func NewSim(cfg Config) *Sim {
	m := NewMNA()
	return &Sim{
		Cfg: cfg,
		M:   m,
		Reg: NewRegistry(m),
	}
}

// Add 登记元件（须在首次 Step 之前完成）
func (s *Sim) Add(f Face) {
	s.faces = append(s.faces, f)
	s.assembled = false
}

// Faces 返回已登记元件
func (s *Sim) Faces() []Face { return s.faces }

// newContext 构建本步上下文
func (s *Sim) newContext() *Context {
	return &Context{
		M:    s.M,
		Reg:  s.Reg,
		Cfg:  s.Cfg,
		T:    s.T,
		Step: s.StepCount,
	}
}

// Assemble 装配线性系统
// 流程：分配内部未知量 -> 构建矩阵 -> 两阶段印章 -> 线性部分落盘
func (s *Sim) Assemble() error {
	if len(s.faces) == 0 {
		return fmt.Errorf("电路没有元件: %w", ErrBadStamp)
	}
	if !s.baseRecorded {
		s.baseNodes = s.M.nodeCount
		s.baseVs = s.M.vsCount
		s.baseRecorded = true
	} else {
		// 复位后的重装：恢复外部未知量基数
		s.M.nodeCount = s.baseNodes
		s.M.vsCount = s.baseVs
	}
	s.Reg.Reset()

	for _, f := range s.faces {
		nodes := make([]NodeRef, f.RequestedInternalNodeCount())
		for i := range nodes {
			nodes[i] = s.M.AllocNode()
		}
		sources := make([]VsRef, f.RequestedVoltageSourceCount())
		for i := range sources {
			sources[i] = s.M.AllocVoltageSource()
		}
		f.SetInternal(nodes, sources)
	}

	if err := s.M.Build(s.Cfg); err != nil {
		return err
	}

	ctx := s.newContext()
	for _, f := range s.faces {
		if err := f.Stamp(ctx); err != nil {
			return fmt.Errorf("元件 %s 印章失败: %w", f.Kind(), err)
		}
	}
	for _, f := range s.faces {
		if err := f.ResolveDeferred(ctx); err != nil {
			return fmt.Errorf("元件 %s 延迟印章失败: %w", f.Kind(), err)
		}
	}
	s.M.foldLinear()
	s.assembled = true
	s.factored = false
	return nil
}

// Step 推进一个时间步
// 迭代未收敛或矩阵奇异时返回错误且时间不推进、暂存状态不提交
func (s *Sim) Step() error {
	if !s.assembled {
		if err := s.Assemble(); err != nil {
			return err
		}
	}
	ctx := s.newContext()
	converged := false

	// 每轮迭代：先解当前系统，再求值动态部分并重装下一轮的印章；
	// 求值结果与上一轮一致时本步收敛
	for sub := 0; sub < s.Cfg.MaxIter; sub++ {
		ctx.SubIter = sub

		if s.M.HasNonlinear() || !s.factored {
			if err := s.M.factor(); err != nil {
				return fmt.Errorf("时间 %g: %w", s.T, err)
			}
			s.factored = true
		}
		if err := s.M.solve(); err != nil {
			return fmt.Errorf("时间 %g: %w", s.T, err)
		}
		s.LastIters = sub + 1

		s.M.rollback()
		ctx.converged = true
		ctx.worstRow = ""
		for _, f := range s.faces {
			if !f.IsNonlinear() {
				continue
			}
			if err := f.EvaluateAndRestamp(ctx); err != nil {
				return fmt.Errorf("元件 %s 迭代求值失败: %w", f.Kind(), err)
			}
		}

		if ctx.converged {
			converged = true
			slog.Debug("时间步收敛", "t", s.T, "迭代", sub+1)
			break
		}
	}

	if !converged {
		return fmt.Errorf("时间 %g: 行 %q 经 %d 轮迭代: %w",
			s.T, ctx.worstRow, s.Cfg.MaxIter, ErrConvergenceFailure)
	}

	// 收尾求解：让解向量与最后一轮求值的印章一致
	if s.M.HasNonlinear() {
		if err := s.M.factor(); err != nil {
			return fmt.Errorf("时间 %g: %w", s.T, err)
		}
		if err := s.M.solve(); err != nil {
			return fmt.Errorf("时间 %g: %w", s.T, err)
		}
	}

	// 提交：推进时间并落盘全部暂存状态
	s.T += s.Cfg.Timestep
	s.StepCount++
	ctx.T = s.T
	ctx.Step = s.StepCount
	for _, f := range s.faces {
		f.CommitTimestep(ctx)
	}
	s.Reg.Snapshot()
	return nil
}

// Run 连续推进若干时间步
func (s *Sim) Run(steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Reset 复位仿真
// 时间归零、全部元件清空时间状态；下一次 Step 重新装配并
// 从行文本重跑解析与分类，结果与首次运行一致
func (s *Sim) Reset() {
	for _, f := range s.faces {
		f.Reset()
	}
	s.M.Release()
	s.Reg.Reset()
	s.assembled = false
	s.factored = false
	s.T = 0
	s.StepCount = 0
}
