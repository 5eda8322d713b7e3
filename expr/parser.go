package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParse 表达式解析错误（所有解析失败均可用 errors.Is 匹配）
var ErrParse = errors.New("表达式解析错误")

// Parsed 解析结果
// 持有语法树与带时间状态调用点的槽位登记表
type Parsed struct {
	Root      *Node
	Text      string
	slotKinds []Op
}

// NewState 为该表达式创建配套的求值状态
func (p *Parsed) NewState() *State {
	es := NewState(len(p.slotKinds))
	es.bindSlots(p.slotKinds)
	return es
}

// SlotCount 返回带时间状态的调用点数量
func (p *Parsed) SlotCount() int { return len(p.slotKinds) }

// funcSpec 内建函数签名
type funcSpec struct {
	op       Op
	min, max int
	stateful bool // 每个调用点占用一个状态槽位
}

var functions = map[string]funcSpec{
	"sin":   {op: OpSin, min: 1, max: 1},
	"cos":   {op: OpCos, min: 1, max: 1},
	"tan":   {op: OpTan, min: 1, max: 1},
	"asin":  {op: OpAsin, min: 1, max: 1},
	"acos":  {op: OpAcos, min: 1, max: 1},
	"atan":  {op: OpAtan, min: 1, max: 1},
	"sinh":  {op: OpSinh, min: 1, max: 1},
	"cosh":  {op: OpCosh, min: 1, max: 1},
	"tanh":  {op: OpTanh, min: 1, max: 1},
	"abs":   {op: OpAbs, min: 1, max: 1},
	"exp":   {op: OpExp, min: 1, max: 1},
	"log":   {op: OpLog, min: 1, max: 1},
	"sqrt":  {op: OpSqrt, min: 1, max: 1},
	"floor": {op: OpFloor, min: 1, max: 1},
	"ceil":  {op: OpCeil, min: 1, max: 1},
	"tri":   {op: OpTri, min: 1, max: 1},
	"saw":   {op: OpSaw, min: 1, max: 1},

	"min":   {op: OpMin, min: 2, max: 2},
	"max":   {op: OpMax, min: 2, max: 2},
	"mod":   {op: OpMod, min: 2, max: 2},
	"pwr":   {op: OpPwr, min: 2, max: 2},
	"pwrs":  {op: OpPwrs, min: 2, max: 2},
	"atan2": {op: OpAtan2, min: 2, max: 2},

	"step":   {op: OpStep, min: 1, max: 2},
	"clamp":  {op: OpClamp, min: 3, max: 3},
	"select": {op: OpSelect, min: 3, max: 3},
	"pwl":    {op: OpPwl, min: 3, max: 1001},

	"integrate": {op: OpIntegrate, min: 1, max: 1, stateful: true},
	"diff":      {op: OpDiff, min: 1, max: 1, stateful: true},
	"last":      {op: OpLast, min: 1, max: 1, stateful: true},
}

// parser 递归下降解析器（手写定位词法）
type parser struct {
	text      string
	pos       int // 下一个待扫描位置
	tokPos    int // 当前 token 起始位置（用于错误定位）
	token     string
	err       error
	slotKinds []Op
}

// Parse 解析表达式文本
// 空文本解析为常量 0；任何失败返回包装 ErrParse 的错误
func Parse(text string) (*Parsed, error) {
	p := &parser{text: text}
	p.next()
	if p.token == "" {
		return &Parsed{Root: &Node{Op: OpNumber, Val: 0}, Text: text}, nil
	}
	root := p.parseTernary()
	if p.err == nil && p.token != "" {
		p.fail("意外的符号 %q", p.token)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &Parsed{Root: root, Text: text, slotKinds: p.slotKinds}, nil
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		msg := fmt.Sprintf(format, args...)
		p.err = fmt.Errorf("第 %d 列: %s: %w", p.tokPos+1, msg, ErrParse)
	}
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '\\'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '^' || c == '{' || c == '}'
}

// next 扫描下一个 token（到达末尾时 token 为空串）
func (p *parser) next() {
	for p.pos < len(p.text) && (p.text[p.pos] == ' ' || p.text[p.pos] == '\t') {
		p.pos++
	}
	p.tokPos = p.pos
	if p.pos == len(p.text) {
		p.token = ""
		return
	}
	i := p.pos
	c := p.text[i]
	switch {
	case (c >= '0' && c <= '9') || c == '.':
		for i < len(p.text) {
			ch := p.text[i]
			if ch == 'e' || ch == 'E' {
				i++
				if i < len(p.text) && (p.text[i] == '+' || p.text[i] == '-') {
					i++
				}
				continue
			}
			if !((ch >= '0' && ch <= '9') || ch == '.') {
				break
			}
			i++
		}
	case isIdentStart(c):
		for i < len(p.text) && isIdentPart(p.text[i]) {
			i++
		}
	default:
		i++
		if i < len(p.text) {
			nc := p.text[i]
			// ||, &&, ==, <=, >=, !=
			if (nc == c && (c == '|' || c == '&' || c == '=')) ||
				(nc == '=' && (c == '<' || c == '>' || c == '!')) {
				i++
			}
		}
	}
	p.token = p.text[p.pos:i]
	p.pos = i
}

// skip 当前 token 匹配时消耗并返回 true
func (p *parser) skip(s string) bool {
	if p.token != s {
		return false
	}
	p.next()
	return true
}

func (p *parser) expect(s string) {
	if !p.skip(s) {
		p.fail("期望 %q, 实际 %q", s, p.token)
	}
}

// parseTernary 三目条件（最低优先级）
func (p *parser) parseTernary() *Node {
	e := p.parseOr()
	if p.skip("?") {
		then := p.parseOr()
		p.expect(":")
		els := p.parseTernary()
		return &Node{Op: OpTernary, Kids: []*Node{e, then, els}}
	}
	return e
}

func (p *parser) parseOr() *Node {
	e := p.parseAnd()
	for p.skip("||") {
		e = &Node{Op: OpOr, Kids: []*Node{e, p.parseAnd()}}
	}
	return e
}

func (p *parser) parseAnd() *Node {
	e := p.parseEquals()
	for p.skip("&&") {
		e = &Node{Op: OpAnd, Kids: []*Node{e, p.parseEquals()}}
	}
	return e
}

func (p *parser) parseEquals() *Node {
	e := p.parseCompare()
	if p.skip("==") {
		return &Node{Op: OpEq, Kids: []*Node{e, p.parseCompare()}}
	}
	return e
}

func (p *parser) parseCompare() *Node {
	e := p.parseAdd()
	switch {
	case p.skip("<="):
		return &Node{Op: OpLeq, Kids: []*Node{e, p.parseAdd()}}
	case p.skip(">="):
		return &Node{Op: OpGeq, Kids: []*Node{e, p.parseAdd()}}
	case p.skip("!="):
		return &Node{Op: OpNeq, Kids: []*Node{e, p.parseAdd()}}
	case p.skip("<"):
		return &Node{Op: OpLt, Kids: []*Node{e, p.parseAdd()}}
	case p.skip(">"):
		return &Node{Op: OpGt, Kids: []*Node{e, p.parseAdd()}}
	}
	return e
}

func (p *parser) parseAdd() *Node {
	e := p.parseMult()
	for {
		switch {
		case p.skip("+"):
			e = &Node{Op: OpAdd, Kids: []*Node{e, p.parseMult()}}
		case p.skip("-"):
			e = &Node{Op: OpSub, Kids: []*Node{e, p.parseMult()}}
		default:
			return e
		}
	}
}

func (p *parser) parseMult() *Node {
	e := p.parseUnary()
	for {
		switch {
		case p.skip("*"):
			e = &Node{Op: OpMul, Kids: []*Node{e, p.parseUnary()}}
		case p.skip("/"):
			e = &Node{Op: OpDiv, Kids: []*Node{e, p.parseUnary()}}
		case p.skip("%"):
			e = &Node{Op: OpMod, Kids: []*Node{e, p.parseUnary()}}
		default:
			return e
		}
	}
}

func (p *parser) parseUnary() *Node {
	p.skip("+")
	if p.skip("!") {
		return &Node{Op: OpNot, Kids: []*Node{p.parseUnary()}}
	}
	if p.skip("-") {
		return &Node{Op: OpNeg, Kids: []*Node{p.parseUnary()}}
	}
	return p.parsePow()
}

// parsePow 幂运算右结合
func (p *parser) parsePow() *Node {
	e := p.parseTerm()
	if p.skip("^") {
		return &Node{Op: OpPow, Kids: []*Node{e, p.parseUnary()}}
	}
	return e
}

func (p *parser) parseTerm() *Node {
	if p.skip("(") {
		e := p.parseTernary()
		p.expect(")")
		return e
	}
	tok := p.token
	if tok == "" {
		p.fail("表达式意外结束")
		return &Node{Op: OpNumber}
	}
	c := tok[0]
	if (c >= '0' && c <= '9') || c == '.' {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			p.fail("非法数值 %q", tok)
			v = 0
		}
		p.next()
		return &Node{Op: OpNumber, Val: v}
	}
	if !isIdentStart(c) {
		p.fail("意外的符号 %q", tok)
		p.next()
		return &Node{Op: OpNumber}
	}

	lower := strings.ToLower(tok)
	switch lower {
	case "t":
		p.next()
		return &Node{Op: OpTime}
	case "pi":
		p.next()
		return &Node{Op: OpNumber, Val: math.Pi}
	case "timestep":
		p.next()
		return &Node{Op: OpTimestep}
	case "lastoutput":
		p.next()
		return &Node{Op: OpLastOutput}
	}

	if spec, ok := functions[lower]; ok {
		p.next()
		return p.parseCall(lower, spec)
	}

	// 普通命名值引用
	p.next()
	return &Node{Op: OpName, Name: tok}
}

// parseCall 解析函数调用并检查参数个数
func (p *parser) parseCall(name string, spec funcSpec) *Node {
	p.expect("(")
	kids := []*Node{p.parseTernary()}
	for p.skip(",") {
		kids = append(kids, p.parseTernary())
	}
	p.expect(")")
	if len(kids) < spec.min || len(kids) > spec.max {
		p.fail("函数 %s 参数个数错误: %d", name, len(kids))
	}
	if spec.op == OpPwl && len(kids)%2 == 0 {
		p.fail("函数 pwl 参数个数必须为奇数: %d", len(kids))
	}
	n := &Node{Op: spec.op, Kids: kids}
	if spec.stateful {
		n.Slot = len(p.slotKinds)
		p.slotKinds = append(p.slotKinds, spec.op)
	}
	return n
}
