package expr

// slot 带时间状态函数的单个调用点状态
// integrate: committed 为已提交积分值，pending 为本步最新输入
// diff:      committed 为上一步收敛输入，pending 为本步最新输入
// last:      committed 为上一步提交的参数值
type slot struct {
	kind        Op
	committed   float64
	pending     float64
	initialized bool
}

// State 表达式求值状态
// 每个方程行持有一个实例；迭代期间只更新暂存值，
// 时间步收敛后由 CommitStep 一次性提交
type State struct {
	T          float64 // 当前仿真时间
	Timestep   float64 // 时间步长
	LastOutput float64 // 本行上一步提交的输出值

	// Resolve 命名值解析回调（nil 或未命中时求值为 0）
	Resolve func(name string) (float64, bool)
	// OnUnresolved 未解析引用诊断回调（同名只报告一次）
	OnUnresolved func(name string)

	slots          []slot
	unresolved     map[string]struct{}
	lastCommitTime float64
}

// NewState 创建求值状态
// 参数:
//
//	slotCount - 表达式中带时间状态的调用点数量（解析器给出）
func NewState(slotCount int) *State {
	es := &State{
		slots:          make([]slot, slotCount),
		unresolved:     make(map[string]struct{}),
		lastCommitTime: -1,
	}
	return es
}

func (es *State) noteUnresolved(name string) {
	if _, seen := es.unresolved[name]; seen {
		return
	}
	es.unresolved[name] = struct{}{}
	if es.OnUnresolved != nil {
		es.OnUnresolved(name)
	}
}

// Unresolved 返回求值过程中遇到的未解析引用名
func (es *State) Unresolved() []string {
	out := make([]string, 0, len(es.unresolved))
	for name := range es.unresolved {
		out = append(out, name)
	}
	return out
}

// CommitStep 在时间步收敛后提交全部暂存状态
// 同一时间点只提交一次，重复调用被忽略
func (es *State) CommitStep(t float64) {
	if t == es.lastCommitTime {
		return
	}
	es.lastCommitTime = t
	for i := range es.slots {
		s := &es.slots[i]
		switch s.kind {
		case OpIntegrate:
			s.committed += es.Timestep * s.pending
		case OpDiff, OpLast:
			s.committed = s.pending
		}
		s.initialized = true
	}
}

// SeedIntegrals 设置全部积分槽位的初始值（用于带初值的方程行）
func (es *State) SeedIntegrals(v float64) {
	for i := range es.slots {
		if es.slots[i].kind == OpIntegrate {
			es.slots[i].committed = v
		}
	}
}

// Reset 清空全部时间状态，使下一次运行与首次运行一致
func (es *State) Reset() {
	for i := range es.slots {
		kind := es.slots[i].kind
		es.slots[i] = slot{kind: kind}
	}
	es.unresolved = make(map[string]struct{})
	es.lastCommitTime = -1
	es.T = 0
	es.LastOutput = 0
}

// bindSlots 解析完成后为带时间状态的调用点登记槽位类型
func (es *State) bindSlots(kinds []Op) {
	for i, k := range kinds {
		if i < len(es.slots) {
			es.slots[i].kind = k
		}
	}
}
