// Package mna 实现改进节点分析（MNA）核心：
// 未知量分配、印章（stamp）接口、命名值注册表、
// 松弛迭代循环以及网表序列化。
package mna

import (
	"errors"

	"github.com/johnnewto/circuitjs1-sub000/maths"
)

// 错误分类：所有可导出操作返回的错误均可用 errors.Is 匹配到其一
var (
	// ErrParse 表达式或网表解析失败
	ErrParse = errors.New("解析失败")
	// ErrUnresolvedReference 命名引用无法解析
	ErrUnresolvedReference = errors.New("未解析的命名引用")
	// ErrSingularMatrix 系数矩阵奇异（与 maths.ErrSingular 同一哨兵）
	ErrSingularMatrix = maths.ErrSingular
	// ErrConvergenceFailure 松弛迭代在预算内未收敛
	ErrConvergenceFailure = errors.New("迭代未收敛")
	// ErrBadStamp 印章参数非法（引用越界或来源不明）
	ErrBadStamp = errors.New("印章参数非法")
)
