package mna

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// 网表为扁平记号格式：每行一个元件，
// 首个记号为类型标签，其余由元件自行定义。
// 表达式文本等含空白的字段经 EscapeText 编码为单个记号。

// Loader 元件装载函数：由记号重建元件（不含类型标签）
type Loader func(tokens []string, m *MNA) (Face, error)

var loaders = map[string]Loader{}

// RegisterKind 登记元件类型的装载函数（元件包 init 时调用）
func RegisterKind(kind string, fn Loader) {
	if _, dup := loaders[kind]; dup {
		panic(fmt.Sprintf("元件类型 %q 重复登记", kind))
	}
	loaders[kind] = fn
}

// EscapeText 将任意文本编码为不含空白的单个记号
func EscapeText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case ' ':
			sb.WriteString(`\s`)
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '+':
			sb.WriteString(`\p`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UnescapeText 还原 EscapeText 编码的记号
func UnescapeText(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 's':
			sb.WriteByte(' ')
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'p':
			sb.WriteByte('+')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// TokenInt 解析整数记号
func TokenInt(tokens []string, i int) (int, error) {
	if i >= len(tokens) {
		return 0, fmt.Errorf("缺少第 %d 个记号: %w", i, ErrParse)
	}
	v, err := strconv.Atoi(tokens[i])
	if err != nil {
		return 0, fmt.Errorf("记号 %q 不是整数: %w", tokens[i], ErrParse)
	}
	return v, nil
}

// TokenFloat 解析浮点记号
func TokenFloat(tokens []string, i int) (float64, error) {
	if i >= len(tokens) {
		return 0, fmt.Errorf("缺少第 %d 个记号: %w", i, ErrParse)
	}
	v, err := strconv.ParseFloat(tokens[i], 64)
	if err != nil {
		return 0, fmt.Errorf("记号 %q 不是数值: %w", tokens[i], ErrParse)
	}
	return v, nil
}

// Dump 将全部元件序列化为网表
func (s *Sim) Dump(w io.Writer) error {
	for _, f := range s.faces {
		fields := append([]string{f.Kind()}, f.Dump()...)
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// Load 由网表重建仿真驱动
// 每行重建一个元件；装载后的电路从零开始重跑解析与分类
func Load(r io.Reader, cfg Config) (*Sim, error) {
	s := NewSim(cfg)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		loader, ok := loaders[tokens[0]]
		if !ok {
			return nil, fmt.Errorf("第 %d 行: 未知元件类型 %q: %w", lineNo, tokens[0], ErrParse)
		}
		f, err := loader(tokens[1:], s.M)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", lineNo, err)
		}
		s.Add(f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取网表失败: %w", err)
	}
	return s, nil
}
