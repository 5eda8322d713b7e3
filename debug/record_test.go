package debug

import (
	"bytes"
	"math"
	"testing"

	"github.com/johnnewto/circuitjs1-sub000/element"
	"github.com/johnnewto/circuitjs1-sub000/mna"
)

func buildSim(t *testing.T) *mna.Sim {
	t.Helper()
	cfg := mna.DefaultConfig()
	cfg.Timestep = 1e-3
	s := mna.NewSim(cfg)
	n1 := s.M.AllocNode()
	s.Add(element.NewSineSource(mna.Ground(), n1, 0, 1, 10, 0))
	s.Add(element.NewLabeledNode(n1, "vin"))
	tab := element.NewEquationTable()
	if err := tab.AddRow("q", "integrate(1)"); err != nil {
		t.Fatalf("添加行失败: %v", err)
	}
	if err := tab.AddRow("d", "2*q"); err != nil {
		t.Fatalf("添加行失败: %v", err)
	}
	s.Add(tab)
	return s
}

func TestRecorderRun(t *testing.T) {
	s := buildSim(t)
	rec := NewRecorder()
	const steps = 20
	if err := rec.Run(s, steps); err != nil {
		t.Fatalf("采样运行失败: %v", err)
	}
	if len(rec.Time) != steps || len(rec.Values) != steps {
		t.Fatalf("采样步数不符: %d, %d", len(rec.Time), len(rec.Values))
	}
	if len(rec.Names) < 3 {
		t.Fatalf("命名值列不足: %v", rec.Names)
	}
	q := rec.Column("q")
	if q == nil {
		t.Fatal("缺少 q 列")
	}
	for i := 1; i < len(q); i++ {
		if q[i] <= q[i-1] {
			t.Fatalf("q 第 %d 步非单调: %g <= %g", i, q[i], q[i-1])
		}
	}
	if got := q[steps-1]; math.Abs(got-float64(steps)*s.Cfg.Timestep) > 1e-9 {
		t.Errorf("q 终值 = %g, 期望 %g", got, float64(steps)*s.Cfg.Timestep)
	}
	if rec.Column("没有这列") != nil {
		t.Error("不存在的列应返回 nil")
	}
}

func TestRecorderWatch(t *testing.T) {
	s := buildSim(t)
	rec := NewRecorder("q")
	if err := rec.Run(s, 5); err != nil {
		t.Fatalf("采样运行失败: %v", err)
	}
	if len(rec.Names) != 1 || rec.Names[0] != "q" {
		t.Fatalf("采样列 = %v, 期望只有 q", rec.Names)
	}
}

func TestChartsRender(t *testing.T) {
	s := buildSim(t)
	c := &Charts{}
	if err := c.Recorder.Run(s, 10); err != nil {
		t.Fatalf("采样运行失败: %v", err)
	}
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("echarts")) {
		t.Error("渲染结果缺少图表脚本")
	}
}

func TestChartsRenderEmpty(t *testing.T) {
	c := &Charts{}
	if err := c.Render(&bytes.Buffer{}); err == nil {
		t.Error("空记录渲染应报错")
	}
}

func TestPlotPNG(t *testing.T) {
	s := buildSim(t)
	p := &Plot{}
	if err := p.Recorder.Run(s, 10); err != nil {
		t.Fatalf("采样运行失败: %v", err)
	}
	var buf bytes.Buffer
	if err := p.WritePNG(&buf); err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	if buf.Len() < 8 || !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("输出不是 PNG")
	}
}
