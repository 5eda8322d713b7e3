package maths

import (
	"fmt"
	"math"
)

// luDense 稠密 LU 分解求解器（PA=LU，带部分主元）
// L 与 U 共用一个 n×n 存储：严格下三角存放消元因子，对角线及以上存放 U
type luDense struct {
	n    int
	lu   Matrix // 原位分解结果
	y    Vector // 中间变量：前向替换结果 Ly=Pb
	perm []int  // 置换向量：perm[i] = 分解后第 i 行对应的原始行索引
}

// NewLU 创建稠密 LU 求解器（输入矩阵维度 n）
// 参数:
//
//	n - 矩阵维度（必须为正整数）
//
// 返回:
//
//	Solver 接口实例，错误信息
func NewLU(n int) (Solver, error) {
	if n < 1 {
		return nil, fmt.Errorf("LU 维度必须为正整数: %d", n)
	}
	return &luDense{
		n:    n,
		lu:   NewDenseMatrix(n, n),
		y:    NewDenseVector(n),
		perm: make([]int, n),
	}, nil
}

// Factor 对矩阵执行带部分主元的原位 LU 分解
// 分解过程:
//  1. 将输入矩阵拷贝到工作区
//  2. 逐列选取绝对值最大的主元并交换行
//  3. 主元小于 Epsilon 时判定矩阵奇异
func (lu *luDense) Factor(m Matrix) error {
	if m.Rows() != lu.n || m.Cols() != lu.n {
		return fmt.Errorf("LU 分解维度不匹配: 期望 %dx%d, 实际 %dx%d", lu.n, lu.n, m.Rows(), m.Cols())
	}
	m.Copy(lu.lu)
	for i := range lu.perm {
		lu.perm[i] = i
	}
	for k := 0; k < lu.n; k++ {
		// 部分主元：在第 k 列的 k..n-1 行中找最大值
		maxRow := k
		maxVal := math.Abs(lu.lu.Get(k, k))
		for i := k + 1; i < lu.n; i++ {
			if v := math.Abs(lu.lu.Get(i, k)); v > maxVal {
				maxVal = v
				maxRow = i
			}
		}
		if maxVal < Epsilon {
			return fmt.Errorf("第 %d 列主元 %g 过小: %w", k, maxVal, ErrSingular)
		}
		if maxRow != k {
			lu.swapRows(k, maxRow)
			lu.perm[k], lu.perm[maxRow] = lu.perm[maxRow], lu.perm[k]
		}
		pivot := lu.lu.Get(k, k)
		for i := k + 1; i < lu.n; i++ {
			factor := lu.lu.Get(i, k) / pivot
			lu.lu.Set(i, k, factor) // 严格下三角存消元因子
			if factor == 0 {
				continue
			}
			for j := k + 1; j < lu.n; j++ {
				lu.lu.Increment(i, j, -factor*lu.lu.Get(k, j))
			}
		}
	}
	return nil
}

func (lu *luDense) swapRows(a, b int) {
	for j := 0; j < lu.n; j++ {
		va, vb := lu.lu.Get(a, j), lu.lu.Get(b, j)
		lu.lu.Set(a, j, vb)
		lu.lu.Set(b, j, va)
	}
}

// Solve 利用已有分解求解 Ax=b，结果写入 x
// 过程: 前向替换 Ly=Pb，后向替换 Ux=y；分解因子可重复使用
func (lu *luDense) Solve(b Vector, x Vector) error {
	if b.Length() != lu.n || x.Length() != lu.n {
		return fmt.Errorf("LU 求解长度不匹配: 期望 %d, 实际 b=%d x=%d", lu.n, b.Length(), x.Length())
	}
	// 前向替换 Ly = Pb（L 对角线为 1）
	for i := 0; i < lu.n; i++ {
		sum := b.Get(lu.perm[i])
		for j := 0; j < i; j++ {
			sum -= lu.lu.Get(i, j) * lu.y.Get(j)
		}
		lu.y.Set(i, sum)
	}
	// 后向替换 Ux = y
	for i := lu.n - 1; i >= 0; i-- {
		sum := lu.y.Get(i)
		for j := i + 1; j < lu.n; j++ {
			sum -= lu.lu.Get(i, j) * x.Get(j)
		}
		x.Set(i, sum/lu.lu.Get(i, i))
	}
	return nil
}

// Release 稠密后端无外部资源，空实现
func (lu *luDense) Release() {}
