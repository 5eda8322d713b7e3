package maths

// updateMatrix 分层叠加矩阵实现
// 底层保存一次性装载的线性部分，叠加层保存迭代重装的增量；
// Rollback 在每轮迭代前丢弃叠加层，Update 在时间步提交时落盘
type updateMatrix struct {
	base  Matrix
	delta map[int]float64 // 线性索引 -> 相对底层的差值
}

// NewUpdateMatrix 包装基础矩阵为分层叠加矩阵（直接持有底层引用）
func NewUpdateMatrix(base Matrix) UpdateMatrix {
	return &updateMatrix{
		base:  base,
		delta: make(map[int]float64),
	}
}

func (um *updateMatrix) Rows() int { return um.base.Rows() }
func (um *updateMatrix) Cols() int { return um.base.Cols() }

func (um *updateMatrix) Get(row, col int) float64 {
	return um.base.Get(row, col) + um.delta[row*um.base.Cols()+col]
}

func (um *updateMatrix) Set(row, col int, value float64) {
	um.delta[row*um.base.Cols()+col] = value - um.base.Get(row, col)
}

func (um *updateMatrix) Increment(row, col int, value float64) {
	um.delta[row*um.base.Cols()+col] += value
}

// Zero 清空叠加视图（底层与叠加层一并归零）
func (um *updateMatrix) Zero() {
	um.base.Zero()
	um.delta = make(map[int]float64)
}

func (um *updateMatrix) Copy(a Matrix) {
	rows, cols := um.base.Rows(), um.base.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, um.Get(i, j))
		}
	}
}

func (um *updateMatrix) String() string {
	tmp := NewDenseMatrix(um.base.Rows(), um.base.Cols())
	um.Copy(tmp)
	return tmp.String()
}

func (um *updateMatrix) Update() {
	cols := um.base.Cols()
	for idx, d := range um.delta {
		um.base.Increment(idx/cols, idx%cols, d)
	}
	um.delta = make(map[int]float64)
}

func (um *updateMatrix) Rollback() {
	um.delta = make(map[int]float64)
}

// updateVector 分层叠加向量实现（与 updateMatrix 同一缓存策略）
type updateVector struct {
	base  Vector
	delta map[int]float64
}

// NewUpdateVector 包装基础向量为分层叠加向量
func NewUpdateVector(base Vector) UpdateVector {
	return &updateVector{
		base:  base,
		delta: make(map[int]float64),
	}
}

func (uv *updateVector) Length() int { return uv.base.Length() }

func (uv *updateVector) Get(index int) float64 {
	return uv.base.Get(index) + uv.delta[index]
}

func (uv *updateVector) Set(index int, value float64) {
	uv.delta[index] = value - uv.base.Get(index)
}

func (uv *updateVector) Increment(index int, value float64) {
	uv.delta[index] += value
}

func (uv *updateVector) Zero() {
	uv.base.Zero()
	uv.delta = make(map[int]float64)
}

func (uv *updateVector) Copy(a Vector) {
	for i := 0; i < uv.base.Length(); i++ {
		a.Set(i, uv.Get(i))
	}
}

func (uv *updateVector) ToDense() []float64 {
	out := make([]float64, uv.base.Length())
	for i := range out {
		out[i] = uv.Get(i)
	}
	return out
}

func (uv *updateVector) String() string {
	tmp := NewDenseVector(uv.base.Length())
	uv.Copy(tmp)
	return tmp.String()
}

func (uv *updateVector) Update() {
	for idx, d := range uv.delta {
		uv.base.Increment(idx, d)
	}
	uv.delta = make(map[int]float64)
}

func (uv *updateVector) Rollback() {
	uv.delta = make(map[int]float64)
}
