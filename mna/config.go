package mna

// Config 求解配置
// 全部容差与预算常量集中于此，按实例可调，无全局状态
type Config struct {
	// Timestep 时间步长（秒）
	Timestep float64
	// MaxIter 单个时间步的松弛迭代预算
	MaxIter int
	// SparseThreshold 求解后端切换阈值（矩阵规模达到该值时启用加速后端）
	SparseThreshold int
	// LoadResistance 动态行输出节点对地的负载电阻
	LoadResistance float64

	// 容差调度：迭代越多容差越宽
	TolEarly      float64 // 迭代次数 < TolEarlyIters
	TolMid        float64 // 迭代次数 < TolMidIters
	TolLate       float64 // 迭代次数 < TolLateIters
	TolFinal      float64 // 其余
	TolEarlyIters int
	TolMidIters   int
	TolLateIters  int

	// DiffTolFactor 含 diff 行的容差放宽倍数
	DiffTolFactor float64
	// DiffGraceIters 含 diff 行在前几轮迭代内不参与收敛判定
	DiffGraceIters int
}

// DefaultConfig 返回默认求解配置
func DefaultConfig() Config {
	return Config{
		Timestep:        5e-6,
		MaxIter:         5000,
		SparseThreshold: 30,
		LoadResistance:  1e9,

		TolEarly:      1e-3,
		TolMid:        1e-2,
		TolLate:       5e-2,
		TolFinal:      1e-1,
		TolEarlyIters: 3,
		TolMidIters:   10,
		TolLateIters:  50,

		DiffTolFactor:  10,
		DiffGraceIters: 5,
	}
}

// Tol 返回给定迭代序号下的相对容差
func (c Config) Tol(subIter int) float64 {
	switch {
	case subIter < c.TolEarlyIters:
		return c.TolEarly
	case subIter < c.TolMidIters:
		return c.TolMid
	case subIter < c.TolLateIters:
		return c.TolLate
	default:
		return c.TolFinal
	}
}
