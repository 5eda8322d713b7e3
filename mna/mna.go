package mna

import (
	"fmt"

	"github.com/johnnewto/circuitjs1-sub000/maths"
)

// NodeRef 节点句柄（不透明）
// 零值即地节点，其行列被过滤，不进入未知量向量
type NodeRef struct{ idx int32 }

// VsRef 电压源句柄（不透明，编号从 1 起，零值非法）
type VsRef struct{ idx int32 }

// Ground 返回地节点句柄
func Ground() NodeRef { return NodeRef{} }

// IsGround 判断句柄是否为地
func (n NodeRef) IsGround() bool { return n.idx == 0 }

// Num 返回节点编号（地为 0，序列化用）
func (n NodeRef) Num() int { return int(n.idx) }

// Node 由编号还原节点句柄（序列化用，0 为地）
func Node(i int) NodeRef { return NodeRef{idx: int32(i)} }

// Num 返回电压源编号（序列化用）
func (v VsRef) Num() int { return int(v.idx) }

// Vs 由编号还原电压源句柄（序列化用）
func Vs(i int) VsRef { return VsRef{idx: int32(i)} }

// MNA 改进节点分析系统
// 未知量布局：先节点电位（1..nodeCount），后电压源电流；
// 系数矩阵与右端项为分层结构：底层存一次性装载的线性部分，
// 叠加层存每轮迭代重装的动态部分
type MNA struct {
	nodeCount int // 不含地
	vsCount   int
	size      int

	matJ maths.UpdateMatrix
	vecB maths.UpdateVector
	vecX maths.Vector

	solver    maths.Solver
	nonlinear map[int]struct{} // 迭代重装的行
	built     bool
}

// NewMNA 创建空的 MNA 系统（先分配未知量，再 Build 构建矩阵）
func NewMNA() *MNA {
	return &MNA{nonlinear: make(map[int]struct{})}
}

// AllocNode 分配一个新节点未知量
func (m *MNA) AllocNode() NodeRef {
	m.nodeCount++
	return NodeRef{idx: int32(m.nodeCount)}
}

// AllocVoltageSource 分配一个新电压源未知量
func (m *MNA) AllocVoltageSource() VsRef {
	m.vsCount++
	return VsRef{idx: int32(m.vsCount)}
}

// EnsureNode 保证编号 i 的节点已分配并返回其句柄（网表装载用）
func (m *MNA) EnsureNode(i int) (NodeRef, error) {
	if i < 0 {
		return NodeRef{}, fmt.Errorf("节点编号非法: %d: %w", i, ErrBadStamp)
	}
	if i > m.nodeCount {
		m.nodeCount = i
	}
	return NodeRef{idx: int32(i)}, nil
}

// NodeCount 返回已分配节点数（不含地）
func (m *MNA) NodeCount() int { return m.nodeCount }

// VsCount 返回已分配电压源数
func (m *MNA) VsCount() int { return m.vsCount }

// Size 返回未知量总数
func (m *MNA) Size() int { return m.nodeCount + m.vsCount }

// Build 按当前未知量规模构建矩阵与求解后端
func (m *MNA) Build(cfg Config) error {
	m.Release()
	m.size = m.nodeCount + m.vsCount
	if m.size < 1 {
		return fmt.Errorf("电路没有未知量: %w", ErrBadStamp)
	}
	m.matJ = maths.NewUpdateMatrix(maths.NewDenseMatrix(m.size, m.size))
	m.vecB = maths.NewUpdateVector(maths.NewDenseVector(m.size))
	m.vecX = maths.NewDenseVector(m.size)
	solver, err := maths.NewSolver(m.size, cfg.SparseThreshold)
	if err != nil {
		return fmt.Errorf("创建求解后端失败: %w", err)
	}
	m.solver = solver
	m.nonlinear = make(map[int]struct{})
	m.built = true
	return nil
}

// Release 释放矩阵与求解后端
func (m *MNA) Release() {
	if m.solver != nil {
		m.solver.Release()
		m.solver = nil
	}
	m.matJ = nil
	m.vecB = nil
	m.vecX = nil
	m.built = false
}

// nodeRow 节点句柄到矩阵行号（地返回 false）
func (m *MNA) nodeRow(n NodeRef) (int, bool) {
	if n.idx == 0 {
		return -1, false
	}
	return int(n.idx) - 1, true
}

func (m *MNA) checkNode(n NodeRef) error {
	if n.idx < 0 || int(n.idx) > m.nodeCount {
		return fmt.Errorf("节点句柄越界: %d (节点数 %d): %w", n.idx, m.nodeCount, ErrBadStamp)
	}
	return nil
}

func (m *MNA) checkVs(v VsRef) error {
	if v.idx < 1 || int(v.idx) > m.vsCount {
		return fmt.Errorf("电压源句柄越界: %d (电压源数 %d): %w", v.idx, m.vsCount, ErrBadStamp)
	}
	return nil
}

// vsRow 电压源句柄到矩阵行号（句柄编号从 1 起）
func (m *MNA) vsRow(v VsRef) int { return m.nodeCount + int(v.idx) - 1 }

// ------ 印章接口 ------

// stampAt 向系数矩阵累加（任一侧为地时丢弃）
func (m *MNA) stampAt(row, col int, v float64) {
	if row < 0 || col < 0 {
		return
	}
	m.matJ.Increment(row, col, v)
}

// StampMatrix 低层矩阵印章（0 基未知量行列号）
func (m *MNA) StampMatrix(row, col int, v float64) error {
	if !m.built {
		return fmt.Errorf("矩阵尚未构建: %w", ErrBadStamp)
	}
	if row < 0 || row >= m.size || col < 0 || col >= m.size {
		return fmt.Errorf("矩阵印章越界: (%d, %d): %w", row, col, ErrBadStamp)
	}
	m.matJ.Increment(row, col, v)
	return nil
}

// StampRightSide 低层右端项印章（0 基未知量行号）
func (m *MNA) StampRightSide(row int, v float64) error {
	if !m.built {
		return fmt.Errorf("矩阵尚未构建: %w", ErrBadStamp)
	}
	if row < 0 || row >= m.size {
		return fmt.Errorf("右端项印章越界: %d: %w", row, ErrBadStamp)
	}
	m.vecB.Increment(row, v)
	return nil
}

// StampConductance 在节点 a、b 间印章电导 g
func (m *MNA) StampConductance(a, b NodeRef, g float64) error {
	if err := m.checkNode(a); err != nil {
		return err
	}
	if err := m.checkNode(b); err != nil {
		return err
	}
	ra, okA := m.nodeRow(a)
	rb, okB := m.nodeRow(b)
	if okA {
		m.stampAt(ra, ra, g)
	}
	if okB {
		m.stampAt(rb, rb, g)
	}
	if okA && okB {
		m.stampAt(ra, rb, -g)
		m.stampAt(rb, ra, -g)
	}
	return nil
}

// StampResistor 在节点 a、b 间印章电阻 r
func (m *MNA) StampResistor(a, b NodeRef, r float64) error {
	if r == 0 {
		return fmt.Errorf("电阻值不能为零: %w", ErrBadStamp)
	}
	return m.StampConductance(a, b, 1/r)
}

// StampCurrentSource 印章从 a 流向 b 的电流源
func (m *MNA) StampCurrentSource(a, b NodeRef, i float64) error {
	if err := m.checkNode(a); err != nil {
		return err
	}
	if err := m.checkNode(b); err != nil {
		return err
	}
	if ra, ok := m.nodeRow(a); ok {
		m.vecB.Increment(ra, -i)
	}
	if rb, ok := m.nodeRow(b); ok {
		m.vecB.Increment(rb, i)
	}
	return nil
}

// StampVoltageSource 印章电压源：V(b) - V(a) = v
func (m *MNA) StampVoltageSource(a, b NodeRef, vs VsRef, v float64) error {
	if err := m.checkNode(a); err != nil {
		return err
	}
	if err := m.checkNode(b); err != nil {
		return err
	}
	if err := m.checkVs(vs); err != nil {
		return err
	}
	vn := m.vsRow(vs)
	if ra, ok := m.nodeRow(a); ok {
		m.stampAt(vn, ra, -1)
		m.stampAt(ra, vn, 1)
	}
	if rb, ok := m.nodeRow(b); ok {
		m.stampAt(vn, rb, 1)
		m.stampAt(rb, vn, -1)
	}
	m.vecB.Increment(vn, v)
	return nil
}

// UpdateVoltageSource 只更新电压源的右端项（迭代或按步重装用）
func (m *MNA) UpdateVoltageSource(vs VsRef, v float64) error {
	if err := m.checkVs(vs); err != nil {
		return err
	}
	m.vecB.Increment(m.vsRow(vs), v)
	return nil
}

// StampVCVS 向电压源 vs 的方程追加受控项 coef*(V(a) - V(b))
// 配合 StampVoltageSource 使用可表达 V(out) = Σ coefᵢ·Vᵢ + k
func (m *MNA) StampVCVS(a, b NodeRef, coef float64, vs VsRef) error {
	if err := m.checkNode(a); err != nil {
		return err
	}
	if err := m.checkNode(b); err != nil {
		return err
	}
	if err := m.checkVs(vs); err != nil {
		return err
	}
	vn := m.vsRow(vs)
	if ra, ok := m.nodeRow(a); ok {
		m.stampAt(vn, ra, coef)
	}
	if rb, ok := m.nodeRow(b); ok {
		m.stampAt(vn, rb, -coef)
	}
	return nil
}

// StampVCCS 压控电流源：从 a 流向 b 的电流 = g*(V(c) - V(d))
func (m *MNA) StampVCCS(a, b, c, d NodeRef, g float64) error {
	for _, n := range []NodeRef{a, b, c, d} {
		if err := m.checkNode(n); err != nil {
			return err
		}
	}
	ra, okA := m.nodeRow(a)
	rb, okB := m.nodeRow(b)
	rc, okC := m.nodeRow(c)
	rd, okD := m.nodeRow(d)
	if okA && okC {
		m.stampAt(ra, rc, g)
	}
	if okA && okD {
		m.stampAt(ra, rd, -g)
	}
	if okB && okC {
		m.stampAt(rb, rc, -g)
	}
	if okB && okD {
		m.stampAt(rb, rd, g)
	}
	return nil
}

// StampCCCS 流控电流源：从 a 流向 b 的电流 = gain * I(vs)
func (m *MNA) StampCCCS(a, b NodeRef, vs VsRef, gain float64) error {
	if err := m.checkNode(a); err != nil {
		return err
	}
	if err := m.checkNode(b); err != nil {
		return err
	}
	if err := m.checkVs(vs); err != nil {
		return err
	}
	vn := m.vsRow(vs)
	if ra, ok := m.nodeRow(a); ok {
		m.stampAt(ra, vn, gain)
	}
	if rb, ok := m.nodeRow(b); ok {
		m.stampAt(rb, vn, -gain)
	}
	return nil
}

// StampNonLinearNode 标记节点行为迭代重装行
func (m *MNA) StampNonLinearNode(n NodeRef) error {
	if err := m.checkNode(n); err != nil {
		return err
	}
	if r, ok := m.nodeRow(n); ok {
		m.nonlinear[r] = struct{}{}
	}
	return nil
}

// StampNonLinearVs 标记电压源行为迭代重装行
func (m *MNA) StampNonLinearVs(vs VsRef) error {
	if err := m.checkVs(vs); err != nil {
		return err
	}
	m.nonlinear[m.vsRow(vs)] = struct{}{}
	return nil
}

// HasNonlinear 判断系统是否含迭代重装行
func (m *MNA) HasNonlinear() bool { return len(m.nonlinear) > 0 }

// ------ 解访问 ------

// X 返回节点电位（地恒为 0）
func (m *MNA) X(n NodeRef) float64 {
	if r, ok := m.nodeRow(n); ok && m.vecX != nil {
		return m.vecX.Get(r)
	}
	return 0
}

// VsCurrent 返回流过电压源的电流
func (m *MNA) VsCurrent(vs VsRef) float64 {
	if m.vecX == nil || vs.idx < 1 || int(vs.idx) > m.vsCount {
		return 0
	}
	return m.vecX.Get(m.vsRow(vs))
}

// ------ 迭代控制（由 Sim 驱动） ------

// rollback 丢弃叠加层（每轮迭代重装前调用）
func (m *MNA) rollback() {
	m.matJ.Rollback()
	m.vecB.Rollback()
}

// foldLinear 将装配阶段的印章落入底层（装配完成时调用一次）
func (m *MNA) foldLinear() {
	m.matJ.Update()
	m.vecB.Update()
}

// factor 分解当前系数矩阵
func (m *MNA) factor() error {
	return m.solver.Factor(m.matJ)
}

// solve 求解并更新解向量
func (m *MNA) solve() error {
	return m.solver.Solve(m.vecB, m.vecX)
}
