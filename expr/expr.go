// Package expr 实现方程行使用的表达式语言：
// 词法分析、递归下降解析、求值以及形态分析（别名/常量/线性识别）。
package expr

import (
	"fmt"
	"math"
	"strings"
)

// Op 表达式节点操作码
type Op int

const (
	OpNumber Op = iota // 数值字面量
	OpName             // 命名值引用
	OpTime             // 仿真时间 t
	OpTimestep         // 时间步长
	OpLastOutput       // 本行上一步提交输出

	// 二元算术
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow

	// 一元
	OpNeg
	OpNot

	// 比较与逻辑（结果为 0/1）
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLeq
	OpGeq
	OpAnd
	OpOr

	// 三目条件
	OpTernary

	// 单参数函数
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpSinh
	OpCosh
	OpTanh
	OpAbs
	OpExp
	OpLog
	OpSqrt
	OpFloor
	OpCeil
	OpTri
	OpSaw

	// 多参数函数
	OpMin
	OpMax
	OpPwr
	OpPwrs
	OpAtan2
	OpStep
	OpClamp
	OpSelect
	OpPwl

	// 带时间状态的函数（每个调用点占用一个状态槽位）
	OpIntegrate
	OpDiff
	OpLast
)

// Node 表达式语法树节点
type Node struct {
	Op   Op
	Kids []*Node
	Val  float64 // OpNumber 的字面值
	Name string  // OpName 的引用名
	Slot int     // integrate/diff/last 的状态槽位索引
}

// Eval 在给定状态下求值
// 未解析的命名引用求值为 0 并通过状态记录诊断
func (n *Node) Eval(es *State) float64 {
	switch n.Op {
	case OpNumber:
		return n.Val
	case OpName:
		if es.Resolve != nil {
			if v, ok := es.Resolve(n.Name); ok {
				return v
			}
		}
		es.noteUnresolved(n.Name)
		return 0
	case OpTime:
		return es.T
	case OpTimestep:
		return es.Timestep
	case OpLastOutput:
		return es.LastOutput
	case OpAdd:
		return n.Kids[0].Eval(es) + n.Kids[1].Eval(es)
	case OpSub:
		return n.Kids[0].Eval(es) - n.Kids[1].Eval(es)
	case OpMul:
		return n.Kids[0].Eval(es) * n.Kids[1].Eval(es)
	case OpDiv:
		return n.Kids[0].Eval(es) / n.Kids[1].Eval(es)
	case OpMod:
		divisor := n.Kids[1].Eval(es)
		// 除数过小时保护，避免产生 NaN 污染迭代
		if math.Abs(divisor) < 1e-12 {
			return 0
		}
		return math.Mod(n.Kids[0].Eval(es), divisor)
	case OpPow:
		return math.Pow(n.Kids[0].Eval(es), n.Kids[1].Eval(es))
	case OpNeg:
		return -n.Kids[0].Eval(es)
	case OpNot:
		return boolVal(n.Kids[0].Eval(es) == 0)
	case OpEq:
		return boolVal(n.Kids[0].Eval(es) == n.Kids[1].Eval(es))
	case OpNeq:
		return boolVal(n.Kids[0].Eval(es) != n.Kids[1].Eval(es))
	case OpLt:
		return boolVal(n.Kids[0].Eval(es) < n.Kids[1].Eval(es))
	case OpGt:
		return boolVal(n.Kids[0].Eval(es) > n.Kids[1].Eval(es))
	case OpLeq:
		return boolVal(n.Kids[0].Eval(es) <= n.Kids[1].Eval(es))
	case OpGeq:
		return boolVal(n.Kids[0].Eval(es) >= n.Kids[1].Eval(es))
	case OpAnd:
		return boolVal(n.Kids[0].Eval(es) != 0 && n.Kids[1].Eval(es) != 0)
	case OpOr:
		return boolVal(n.Kids[0].Eval(es) != 0 || n.Kids[1].Eval(es) != 0)
	case OpTernary:
		if n.Kids[0].Eval(es) != 0 {
			return n.Kids[1].Eval(es)
		}
		return n.Kids[2].Eval(es)
	case OpSin:
		return math.Sin(n.Kids[0].Eval(es))
	case OpCos:
		return math.Cos(n.Kids[0].Eval(es))
	case OpTan:
		return math.Tan(n.Kids[0].Eval(es))
	case OpAsin:
		return math.Asin(n.Kids[0].Eval(es))
	case OpAcos:
		return math.Acos(n.Kids[0].Eval(es))
	case OpAtan:
		return math.Atan(n.Kids[0].Eval(es))
	case OpSinh:
		return math.Sinh(n.Kids[0].Eval(es))
	case OpCosh:
		return math.Cosh(n.Kids[0].Eval(es))
	case OpTanh:
		return math.Tanh(n.Kids[0].Eval(es))
	case OpAbs:
		return math.Abs(n.Kids[0].Eval(es))
	case OpExp:
		return math.Exp(n.Kids[0].Eval(es))
	case OpLog:
		return math.Log(n.Kids[0].Eval(es))
	case OpSqrt:
		return math.Sqrt(n.Kids[0].Eval(es))
	case OpFloor:
		return math.Floor(n.Kids[0].Eval(es))
	case OpCeil:
		return math.Ceil(n.Kids[0].Eval(es))
	case OpTri:
		// 周期 2π、幅值 ±1 的三角波
		x := posmod(n.Kids[0].Eval(es), 2*math.Pi) / math.Pi
		if x < 1 {
			return -1 + x*2
		}
		return 3 - x*2
	case OpSaw:
		// 周期 2π、幅值 ±1 的锯齿波
		x := posmod(n.Kids[0].Eval(es), 2*math.Pi) / math.Pi
		return x - 1
	case OpMin:
		return math.Min(n.Kids[0].Eval(es), n.Kids[1].Eval(es))
	case OpMax:
		return math.Max(n.Kids[0].Eval(es), n.Kids[1].Eval(es))
	case OpPwr:
		return math.Pow(math.Abs(n.Kids[0].Eval(es)), n.Kids[1].Eval(es))
	case OpPwrs:
		x := n.Kids[0].Eval(es)
		if x < 0 {
			return -math.Pow(-x, n.Kids[1].Eval(es))
		}
		return math.Pow(x, n.Kids[1].Eval(es))
	case OpAtan2:
		return math.Atan2(n.Kids[0].Eval(es), n.Kids[1].Eval(es))
	case OpStep:
		x := n.Kids[0].Eval(es)
		if x < 0 {
			return 0
		}
		if len(n.Kids) == 2 && x > n.Kids[1].Eval(es) {
			return 0
		}
		return 1
	case OpClamp:
		return math.Min(math.Max(n.Kids[0].Eval(es), n.Kids[1].Eval(es)), n.Kids[2].Eval(es))
	case OpSelect:
		if n.Kids[0].Eval(es) > 0 {
			return n.Kids[2].Eval(es)
		}
		return n.Kids[1].Eval(es)
	case OpPwl:
		return n.evalPwl(es)
	case OpIntegrate:
		// 迭代期间返回本步提交后的积分预估值，输入暂存待提交
		input := n.Kids[0].Eval(es)
		s := &es.slots[n.Slot]
		s.pending = input
		return s.committed + es.Timestep*input
	case OpDiff:
		// 初始化前返回 0；提交后以上一步收敛输入计算差分
		input := n.Kids[0].Eval(es)
		s := &es.slots[n.Slot]
		s.pending = input
		if !s.initialized {
			return 0
		}
		return (input - s.committed) / es.Timestep
	case OpLast:
		// 仅返回上一步提交值，绝不回退到本步迭代值
		s := &es.slots[n.Slot]
		s.pending = n.Kids[0].Eval(es)
		return s.committed
	}
	panic(fmt.Sprintf("未知操作码: %d", n.Op))
}

// evalPwl 分段线性插值: pwl(x, x0,y0, x1,y1, ...)
// 单点形式 pwl(x, x0, y0) 恒为 y0
func (n *Node) evalPwl(es *State) float64 {
	x := n.Kids[0].Eval(es)
	x0 := n.Kids[1].Eval(es)
	y0 := n.Kids[2].Eval(es)
	if x < x0 || len(n.Kids) < 5 {
		return y0
	}
	x1 := n.Kids[3].Eval(es)
	y1 := n.Kids[4].Eval(es)
	i := 5
	for {
		if x < x1 {
			return y0 + (x-x0)*(y1-y0)/(x1-x0)
		}
		if i+1 >= len(n.Kids) {
			break
		}
		x0, y0 = x1, y1
		x1 = n.Kids[i].Eval(es)
		y1 = n.Kids[i+1].Eval(es)
		i += 2
	}
	return y1
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// posmod 非负取模
func posmod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// String 返回表达式的规范文本形式
func (n *Node) String() string {
	switch n.Op {
	case OpNumber:
		return fmt.Sprintf("%g", n.Val)
	case OpName:
		return n.Name
	case OpTime:
		return "t"
	case OpTimestep:
		return "timestep"
	case OpLastOutput:
		return "lastoutput"
	case OpNeg:
		return "-" + n.Kids[0].String()
	case OpNot:
		return "!" + n.Kids[0].String()
	case OpTernary:
		return fmt.Sprintf("(%s ? %s : %s)", n.Kids[0], n.Kids[1], n.Kids[2])
	}
	if sym, ok := binarySymbols[n.Op]; ok {
		return fmt.Sprintf("(%s %s %s)", n.Kids[0], sym, n.Kids[1])
	}
	if name, ok := funcNames[n.Op]; ok {
		args := make([]string, len(n.Kids))
		for i, k := range n.Kids {
			args[i] = k.String()
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("<op %d>", n.Op)
}

var binarySymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpPow: "^",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpGt: ">", OpLeq: "<=", OpGeq: ">=",
	OpAnd: "&&", OpOr: "||",
}

var funcNames = map[Op]string{
	OpSin: "sin", OpCos: "cos", OpTan: "tan",
	OpAsin: "asin", OpAcos: "acos", OpAtan: "atan",
	OpSinh: "sinh", OpCosh: "cosh", OpTanh: "tanh",
	OpAbs: "abs", OpExp: "exp", OpLog: "log", OpSqrt: "sqrt",
	OpFloor: "floor", OpCeil: "ceil", OpTri: "tri", OpSaw: "saw",
	OpMin: "min", OpMax: "max", OpMod: "mod",
	OpPwr: "pwr", OpPwrs: "pwrs", OpAtan2: "atan2",
	OpStep: "step", OpClamp: "clamp", OpSelect: "select", OpPwl: "pwl",
	OpIntegrate: "integrate", OpDiff: "diff", OpLast: "last",
}
