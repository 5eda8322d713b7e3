package expr

// 形态分析：行分类依赖的纯语法查询。
// 全部函数只检查语法树结构，不做任何求值副作用。

// AliasTarget 判断表达式是否为裸命名引用（别名行形态）
func AliasTarget(n *Node) (string, bool) {
	if n.Op == OpName {
		return n.Name, true
	}
	return "", false
}

// IsConstant 判断表达式是否为纯常量并返回折叠值
// 含时间、命名引用或带时间状态函数的表达式不是常量
func IsConstant(n *Node) (float64, bool) {
	if UsesTime(n) || len(Names(n)) > 0 {
		return 0, false
	}
	// 无引用无时间依赖，可安全地用空状态折叠
	es := NewState(0)
	return n.Eval(es), true
}

// LinearTerms 判断表达式是否为线性组合 Σ cᵢ·nameᵢ + k
// 识别的形态: 常量、name、c*name、name*c、name/c、-项、项±项
// 返回每个名字的系数与常数项；不满足线性形态时 ok 为 false
func LinearTerms(n *Node) (coefs map[string]float64, k float64, ok bool) {
	coefs = make(map[string]float64)
	k, ok = accumulateLinear(n, 1, coefs)
	if !ok || len(coefs) == 0 {
		// 没有任何命名项的"线性"行实为常量行，不按线性处理
		return nil, 0, false
	}
	return coefs, k, true
}

// accumulateLinear 以给定比例累加线性项，返回常数部分
func accumulateLinear(n *Node, scale float64, coefs map[string]float64) (float64, bool) {
	switch n.Op {
	case OpNumber:
		return scale * n.Val, true
	case OpName:
		coefs[n.Name] += scale
		return 0, true
	case OpNeg:
		return accumulateLinear(n.Kids[0], -scale, coefs)
	case OpAdd:
		k1, ok1 := accumulateLinear(n.Kids[0], scale, coefs)
		if !ok1 {
			return 0, false
		}
		k2, ok2 := accumulateLinear(n.Kids[1], scale, coefs)
		if !ok2 {
			return 0, false
		}
		return k1 + k2, true
	case OpSub:
		k1, ok1 := accumulateLinear(n.Kids[0], scale, coefs)
		if !ok1 {
			return 0, false
		}
		k2, ok2 := accumulateLinear(n.Kids[1], -scale, coefs)
		if !ok2 {
			return 0, false
		}
		return k1 + k2, true
	case OpMul:
		// 常量 * 线性项（任一侧为常量）
		if c, isConst := IsConstant(n.Kids[0]); isConst {
			return accumulateLinear(n.Kids[1], scale*c, coefs)
		}
		if c, isConst := IsConstant(n.Kids[1]); isConst {
			return accumulateLinear(n.Kids[0], scale*c, coefs)
		}
		return 0, false
	case OpDiv:
		// 线性项 / 非零常量
		if c, isConst := IsConstant(n.Kids[1]); isConst && c != 0 {
			return accumulateLinear(n.Kids[0], scale/c, coefs)
		}
		return 0, false
	}
	return 0, false
}

// Names 返回表达式引用的全部命名值（去重，出现顺序）
func Names(n *Node) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(*Node)
	walk = func(x *Node) {
		if x.Op == OpName {
			if _, dup := seen[x.Name]; !dup {
				seen[x.Name] = struct{}{}
				out = append(out, x.Name)
			}
		}
		for _, k := range x.Kids {
			walk(k)
		}
	}
	walk(n)
	return out
}

// UsesTime 判断表达式是否依赖时间
// t、timestep、lastoutput 以及带时间状态函数均视为时间依赖
func UsesTime(n *Node) bool {
	switch n.Op {
	case OpTime, OpTimestep, OpLastOutput, OpIntegrate, OpDiff, OpLast:
		return true
	}
	for _, k := range n.Kids {
		if UsesTime(k) {
			return true
		}
	}
	return false
}

// UsesDiff 判断表达式是否包含 diff 调用（收敛判定放宽用）
func UsesDiff(n *Node) bool {
	if n.Op == OpDiff {
		return true
	}
	for _, k := range n.Kids {
		if UsesDiff(k) {
			return true
		}
	}
	return false
}
