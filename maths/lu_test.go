package maths

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// TestLuDenseSolve 验证稠密 LU 分解与求解的正确性。
func TestLuDenseSolve(t *testing.T) {
	// 求解线性方程组 Ax = b
	// A = [[2, 3, 1],
	//      [1, 2, 3],
	//      [3, 1, 2]]
	// b = [9, 6, 8]
	// 预期解 x = [35/18, 29/18, 5/18]
	a := NewDenseMatrix(3, 3)
	a.Set(0, 0, 2)
	a.Set(0, 1, 3)
	a.Set(0, 2, 1)
	a.Set(1, 0, 1)
	a.Set(1, 1, 2)
	a.Set(1, 2, 3)
	a.Set(2, 0, 3)
	a.Set(2, 1, 1)
	a.Set(2, 2, 2)

	b := NewDenseVector(3)
	b.Set(0, 9)
	b.Set(1, 6)
	b.Set(2, 8)

	lu, err := NewLU(3)
	if err != nil {
		t.Fatalf("NewLU 失败: %v", err)
	}
	if err := lu.Factor(a); err != nil {
		t.Fatalf("分解失败: %v", err)
	}

	x := NewDenseVector(3)
	if err := lu.Solve(b, x); err != nil {
		t.Fatalf("求解失败: %v", err)
	}

	expected := []float64{35.0 / 18.0, 29.0 / 18.0, 5.0 / 18.0}
	for i := 0; i < 3; i++ {
		if math.Abs(x.Get(i)-expected[i]) > 1e-9 {
			t.Errorf("x[%d] 结果错误: 得到 %f, 期望 %f", i, x.Get(i), expected[i])
		}
	}
}

// TestLuDenseSingular 验证奇异矩阵返回 ErrSingular 错误。
func TestLuDenseSingular(t *testing.T) {
	// 两行线性相关，矩阵奇异
	a := NewDenseMatrix(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 2)
	a.Set(1, 1, 4)

	lu, err := NewLU(2)
	if err != nil {
		t.Fatalf("NewLU 失败: %v", err)
	}
	err = lu.Factor(a)
	if err == nil {
		t.Fatal("奇异矩阵分解应当失败")
	}
	if !errors.Is(err, ErrSingular) {
		t.Errorf("错误类型不正确: %v", err)
	}
}

// TestLuDenseReuse 验证分解因子可重复用于多个右端项。
func TestLuDenseReuse(t *testing.T) {
	a := NewDenseMatrix(2, 2)
	a.Set(0, 0, 4)
	a.Set(0, 1, 1)
	a.Set(1, 0, 1)
	a.Set(1, 1, 3)

	lu, err := NewLU(2)
	if err != nil {
		t.Fatalf("NewLU 失败: %v", err)
	}
	if err := lu.Factor(a); err != nil {
		t.Fatalf("分解失败: %v", err)
	}

	x := NewDenseVector(2)
	for _, bs := range [][2]float64{{1, 2}, {5, -3}, {0, 7}} {
		b := NewDenseVector(2)
		b.Set(0, bs[0])
		b.Set(1, bs[1])
		if err := lu.Solve(b, x); err != nil {
			t.Fatalf("求解失败: %v", err)
		}
		// 验证 Ax = b
		for i := 0; i < 2; i++ {
			got := a.Get(i, 0)*x.Get(0) + a.Get(i, 1)*x.Get(1)
			if math.Abs(got-bs[i]) > 1e-12 {
				t.Errorf("残差过大: 行 %d 得到 %f, 期望 %f", i, got, bs[i])
			}
		}
	}
}

// TestSolverBackendEquivalence 验证稠密与加速后端在同一系统上结果一致。
func TestSolverBackendEquivalence(t *testing.T) {
	const n = 40
	rng := rand.New(rand.NewSource(42))

	a := NewDenseMatrix(n, n)
	b := NewDenseVector(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rng.Float64()-0.5)
		}
		a.Increment(i, i, float64(n)) // 对角占优，保证非奇异
		b.Set(i, rng.Float64())
	}

	dense, err := NewLU(n)
	if err != nil {
		t.Fatalf("NewLU 失败: %v", err)
	}
	accel, err := NewSolver(n, DefaultSparseThreshold)
	if err != nil {
		t.Fatalf("NewSolver 失败: %v", err)
	}
	defer accel.Release()
	if _, ok := accel.(*luSparse); !ok {
		t.Fatalf("规模 %d 应当选择加速后端", n)
	}

	xd := NewDenseVector(n)
	xs := NewDenseVector(n)
	if err := dense.Factor(a); err != nil {
		t.Fatalf("稠密分解失败: %v", err)
	}
	if err := dense.Solve(b, xd); err != nil {
		t.Fatalf("稠密求解失败: %v", err)
	}
	if err := accel.Factor(a); err != nil {
		t.Fatalf("加速分解失败: %v", err)
	}
	if err := accel.Solve(b, xs); err != nil {
		t.Fatalf("加速求解失败: %v", err)
	}

	for i := 0; i < n; i++ {
		if math.Abs(xd.Get(i)-xs.Get(i)) > 1e-8 {
			t.Errorf("后端结果不一致: x[%d] 稠密 %g, 加速 %g", i, xd.Get(i), xs.Get(i))
		}
	}
}

// TestSolverThreshold 验证阈值以下选择稠密后端。
func TestSolverThreshold(t *testing.T) {
	s, err := NewSolver(5, DefaultSparseThreshold)
	if err != nil {
		t.Fatalf("NewSolver 失败: %v", err)
	}
	defer s.Release()
	if _, ok := s.(*luDense); !ok {
		t.Errorf("规模 5 应当选择稠密后端")
	}
}
