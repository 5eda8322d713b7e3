package maths

import (
	"errors"
	"fmt"

	"github.com/edp1096/sparse"
)

// luSparse 加速稀疏求解后端
// 包装 edp1096/sparse 库，矩阵规模超过阈值时代替稠密 LU，
// 行为与稠密后端完全一致（同一 Solver 契约）
type luSparse struct {
	n      int
	matrix *sparse.Matrix
	rhs    []float64 // 库内部使用 1 基索引，长度 n+1
}

// NewLUSparse 创建加速稀疏求解器（输入矩阵维度 n）
func NewLUSparse(n int) (Solver, error) {
	if n < 1 {
		return nil, fmt.Errorf("稀疏求解器维度必须为正整数: %d", n)
	}
	config := &sparse.Configuration{
		Real:           true,
		Expandable:     true,
		Translate:      true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
	}
	mat, err := sparse.Create(int64(n), config)
	if err != nil {
		return nil, fmt.Errorf("创建稀疏矩阵失败: %w", err)
	}
	return &luSparse{
		n:      n,
		matrix: mat,
		rhs:    make([]float64, n+1),
	}, nil
}

// Factor 装载并分解系数矩阵
// 0 基稠密索引转换为库的 1 基索引；分解失败映射为 ErrSingular
func (lu *luSparse) Factor(m Matrix) error {
	if m.Rows() != lu.n || m.Cols() != lu.n {
		return fmt.Errorf("稀疏分解维度不匹配: 期望 %dx%d, 实际 %dx%d", lu.n, lu.n, m.Rows(), m.Cols())
	}
	lu.matrix.Clear()
	for i := 0; i < lu.n; i++ {
		for j := 0; j < lu.n; j++ {
			if v := m.Get(i, j); v != 0 {
				lu.matrix.GetElement(int64(i+1), int64(j+1)).Real += v
			}
		}
	}
	if err := lu.matrix.Factor(); err != nil {
		return fmt.Errorf("稀疏分解失败: %w: %w", ErrSingular, err)
	}
	return nil
}

// Solve 利用已有分解求解 Ax=b，结果写入 x
func (lu *luSparse) Solve(b Vector, x Vector) error {
	if b.Length() != lu.n || x.Length() != lu.n {
		return fmt.Errorf("稀疏求解长度不匹配: 期望 %d, 实际 b=%d x=%d", lu.n, b.Length(), x.Length())
	}
	for i := 0; i < lu.n; i++ {
		lu.rhs[i+1] = b.Get(i)
	}
	solution, err := lu.matrix.Solve(lu.rhs)
	if err != nil {
		return fmt.Errorf("稀疏回代失败: %w", err)
	}
	for i := 0; i < lu.n; i++ {
		x.Set(i, solution[i+1])
	}
	return nil
}

// Release 释放库内部资源（之后不可再使用）
func (lu *luSparse) Release() {
	if lu.matrix != nil {
		lu.matrix.Destroy()
		lu.matrix = nil
	}
}

// DefaultSparseThreshold 默认后端切换阈值
// 小系统上稠密 LU 更快，超过该规模切换到加速后端
const DefaultSparseThreshold = 30

// NewSolver 按矩阵规模选择求解后端
// 参数:
//
//	n - 矩阵维度
//	threshold - 切换阈值（<=0 时使用 DefaultSparseThreshold）
func NewSolver(n, threshold int) (Solver, error) {
	if threshold <= 0 {
		threshold = DefaultSparseThreshold
	}
	if n >= threshold {
		s, err := NewLUSparse(n)
		if err == nil {
			return s, nil
		}
		// 加速后端不可用时退回稠密实现
		if !errors.Is(err, ErrSingular) {
			return NewLU(n)
		}
		return nil, err
	}
	return NewLU(n)
}
