package maths

import "errors"

// Epsilon 浮点精度阈值（主元小于该值视为奇异）
const Epsilon = 1e-16

// ErrSingular 矩阵奇异错误（分解阶段主元过小时返回）
var ErrSingular = errors.New("矩阵奇异")

// Matrix 通用矩阵接口
// 定义求解器所需的矩阵基本操作
type Matrix interface {
	// Rows 返回矩阵行数
	Rows() int
	// Cols 返回矩阵列数
	Cols() int
	// Get 获取指定位置的元素值
	Get(row int, col int) float64
	// Set 设置矩阵元素值
	Set(row int, col int, value float64)
	// Increment 增量设置矩阵元素（累加值）
	Increment(row int, col int, value float64)
	// Zero 清空矩阵，重置为零矩阵
	Zero()
	// Copy 复制矩阵内容到另一个矩阵
	Copy(a Matrix)
	// String 返回矩阵的字符串表示
	String() string
}

// Vector 通用向量接口
// 定义求解器所需的向量基本操作
type Vector interface {
	// Length 返回向量长度
	Length() int
	// Get 获取指定位置的元素值
	Get(index int) float64
	// Set 设置向量元素值
	Set(index int, value float64)
	// Increment 增量设置向量元素（累加值）
	Increment(index int, value float64)
	// Zero 清空向量，重置为零向量
	Zero()
	// Copy 复制向量内容到另一个向量
	Copy(a Vector)
	// ToDense 转换为稠密切片副本
	ToDense() []float64
	// String 返回向量的字符串表示
	String() string
}

// UpdateMatrix 分层叠加矩阵接口
// 写操作先进入叠加层，Update 落盘到底层，Rollback 丢弃叠加层
type UpdateMatrix interface {
	Matrix

	// Update 将叠加层写入底层并清空叠加层
	Update()
	// Rollback 丢弃叠加层的全部修改
	Rollback()
}

// UpdateVector 分层叠加向量接口
type UpdateVector interface {
	Vector

	// Update 将叠加层写入底层并清空叠加层
	Update()
	// Rollback 丢弃叠加层的全部修改
	Rollback()
}

// Solver 线性方程组求解后端接口
// 稠密 LU 与加速稀疏后端共用同一契约
type Solver interface {
	// Factor 对系数矩阵进行分解（奇异时返回 ErrSingular）
	Factor(m Matrix) error
	// Solve 求解 Ax=b，结果写入 x（须先 Factor）
	Solve(b Vector, x Vector) error
	// Release 释放后端资源
	Release()
}
