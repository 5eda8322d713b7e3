package debug

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// Recorder 记录仿真历史状态
// 每个时间步提交后采样一次：时间、节点电位、电压源电流与全部命名值
type Recorder struct {
	Watch      []string    // 采样的命名值；为空时采样全部
	Names      []string    // 实际采样到的命名值列名
	NodeStr    []string    // 节点列名
	CurrentStr []string    // 电压源电流列名
	Time       []float64   // 时间列
	Voltage    [][]float64 // 每步的节点电位
	Current    [][]float64 // 每步的电压源电流
	Values     [][]float64 // 每步的命名值
}

// NewRecorder 构建记录器；watch 为空表示采样注册表内全部名字
func NewRecorder(watch ...string) *Recorder {
	return &Recorder{Watch: watch}
}

// Init 初始化列名；须在装配完成后调用
func (rec *Recorder) Init(s *mna.Sim) {
	if len(rec.Watch) > 0 {
		rec.Names = append([]string{}, rec.Watch...)
	} else {
		rec.Names = s.Reg.Names()
	}
	rec.NodeStr = rec.NodeStr[:0]
	for i := 1; i <= s.M.NodeCount(); i++ {
		rec.NodeStr = append(rec.NodeStr, fmt.Sprintf("Node(%d)", i))
	}
	rec.CurrentStr = rec.CurrentStr[:0]
	for i := 0; i < s.M.VsCount(); i++ {
		rec.CurrentStr = append(rec.CurrentStr, fmt.Sprintf("电压源(%d)", i+1))
	}
}

// Sample 采样一个已提交的时间步
func (rec *Recorder) Sample(s *mna.Sim) {
	if rec.Names == nil {
		rec.Init(s)
	}
	rec.Time = append(rec.Time, s.T)

	volt := make([]float64, 0, s.M.NodeCount())
	for i := 1; i <= s.M.NodeCount(); i++ {
		volt = append(volt, s.M.X(mna.Node(i)))
	}
	rec.Voltage = append(rec.Voltage, volt)

	cur := make([]float64, 0, s.M.VsCount())
	for i := 1; i <= s.M.VsCount(); i++ {
		cur = append(cur, s.M.VsCurrent(mna.Vs(i)))
	}
	rec.Current = append(rec.Current, cur)

	vals := make([]float64, len(rec.Names))
	for i, name := range rec.Names {
		vals[i], _ = s.Reg.Committed(name)
	}
	rec.Values = append(rec.Values, vals)
}

// Run 推进若干时间步并逐步采样
func (rec *Recorder) Run(s *mna.Sim, steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return err
		}
		rec.Sample(s)
	}
	return nil
}

// Render 格式化输出记录内容
func (rec *Recorder) Render(w io.Writer) error { return json.NewEncoder(w).Encode(rec) }

// Column 取某个命名值的完整轨迹
func (rec *Recorder) Column(name string) []float64 {
	for i, n := range rec.Names {
		if n != name {
			continue
		}
		out := make([]float64, len(rec.Values))
		for step, row := range rec.Values {
			out[step] = row[i]
		}
		return out
	}
	return nil
}
