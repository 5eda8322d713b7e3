package maths

import (
	"fmt"
	"strings"
)

// denseMatrix 稠密矩阵实现（行优先一维存储）
type denseMatrix struct {
	rows, cols int
	data       []float64
}

// NewDenseMatrix 创建稠密矩阵
// 参数:
//
//	rows, cols - 矩阵行列数（必须为正整数）
func NewDenseMatrix(rows, cols int) Matrix {
	if rows < 1 || cols < 1 {
		panic(fmt.Sprintf("矩阵维度非法: %dx%d", rows, cols))
	}
	return &denseMatrix{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
	}
}

func (m *denseMatrix) Rows() int { return m.rows }
func (m *denseMatrix) Cols() int { return m.cols }

func (m *denseMatrix) index(row, col int) int {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("矩阵索引越界: row=%d, col=%d (rows=%d, cols=%d)", row, col, m.rows, m.cols))
	}
	return row*m.cols + col
}

func (m *denseMatrix) Get(row, col int) float64 {
	return m.data[m.index(row, col)]
}

func (m *denseMatrix) Set(row, col int, value float64) {
	m.data[m.index(row, col)] = value
}

func (m *denseMatrix) Increment(row, col int, value float64) {
	m.data[m.index(row, col)] += value
}

func (m *denseMatrix) Zero() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// Copy 将本矩阵内容复制到目标矩阵（维度必须一致）
func (m *denseMatrix) Copy(a Matrix) {
	if a.Rows() != m.rows || a.Cols() != m.cols {
		panic(fmt.Sprintf("矩阵复制维度不匹配: %dx%d -> %dx%d", m.rows, m.cols, a.Rows(), a.Cols()))
	}
	if dst, ok := a.(*denseMatrix); ok {
		copy(dst.data, m.data)
		return
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			a.Set(i, j, m.data[i*m.cols+j])
		}
	}
}

func (m *denseMatrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			fmt.Fprintf(&sb, "%12.6g ", m.data[i*m.cols+j])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// denseVector 稠密向量实现
type denseVector struct {
	data []float64
}

// NewDenseVector 创建稠密向量
func NewDenseVector(length int) Vector {
	if length < 0 {
		panic(fmt.Sprintf("向量长度非法: %d", length))
	}
	return &denseVector{data: make([]float64, length)}
}

func (v *denseVector) Length() int { return len(v.data) }

func (v *denseVector) check(index int) {
	if index < 0 || index >= len(v.data) {
		panic(fmt.Sprintf("向量索引越界: index=%d (length=%d)", index, len(v.data)))
	}
}

func (v *denseVector) Get(index int) float64 {
	v.check(index)
	return v.data[index]
}

func (v *denseVector) Set(index int, value float64) {
	v.check(index)
	v.data[index] = value
}

func (v *denseVector) Increment(index int, value float64) {
	v.check(index)
	v.data[index] += value
}

func (v *denseVector) Zero() {
	for i := range v.data {
		v.data[i] = 0
	}
}

// Copy 将本向量内容复制到目标向量（长度必须一致）
func (v *denseVector) Copy(a Vector) {
	if a.Length() != len(v.data) {
		panic(fmt.Sprintf("向量复制长度不匹配: %d -> %d", len(v.data), a.Length()))
	}
	if dst, ok := a.(*denseVector); ok {
		copy(dst.data, v.data)
		return
	}
	for i, x := range v.data {
		a.Set(i, x)
	}
}

func (v *denseVector) ToDense() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

func (v *denseVector) String() string {
	var sb strings.Builder
	for _, x := range v.data {
		fmt.Fprintf(&sb, "%12.6g ", x)
	}
	return sb.String()
}
