package element

import (
	"bytes"
	"math"
	"testing"

	"github.com/johnnewto/circuitjs1-sub000/mna"
)

// buildMixedSim 构建覆盖全部行分类与基础元件的电路
func buildMixedSim(t *testing.T) (*mna.Sim, *EquationTable) {
	t.Helper()
	s := newTestSim()
	n1 := s.M.AllocNode()
	n2 := s.M.AllocNode()
	s.Add(NewSineSource(mna.Ground(), n1, 0, 5, 50, 0))
	s.Add(NewResistor(n1, n2, 1000))
	s.Add(NewResistor(n2, mna.Ground(), 1000))
	s.Add(NewCurrentSource(mna.Ground(), n2, 1e-3))
	s.Add(NewLabeledNode(n2, "vmid"))

	tab := NewEquationTable()
	rows := [][2]string{
		{"k", "2*pi"},      // 常量
		{"m", "vmid"},      // 别名
		{"lin", "3*k - 1"}, // 线性
		{"q", "integrate(vmid)"},
		{"w", "sin(2*pi*10*t) + q"},
	}
	for _, r := range rows {
		if err := tab.AddRow(r[0], r[1]); err != nil {
			t.Fatalf("添加行 %q 失败: %v", r[0], err)
		}
	}
	if err := tab.AddRowInit("acc", "integrate(w)", 1); err != nil {
		t.Fatalf("添加行失败: %v", err)
	}
	if err := tab.AddRow("g", "2*gain"); err != nil {
		t.Fatalf("添加行失败: %v", err)
	}
	if err := tab.SetRowParam("g", "gain", 1.5); err != nil {
		t.Fatalf("设置参数失败: %v", err)
	}
	s.Add(tab)
	return s, tab
}

// TestNetlistRoundTrip 验证序列化往返后分类与波形一致。
func TestNetlistRoundTrip(t *testing.T) {
	s1, tab1 := buildMixedSim(t)

	var buf bytes.Buffer
	if err := s1.Dump(&buf); err != nil {
		t.Fatalf("序列化失败: %v", err)
	}

	s2, err := mna.Load(bytes.NewReader(buf.Bytes()), s1.Cfg)
	if err != nil {
		t.Fatalf("装载失败: %v", err)
	}

	// 装载后的电路从行文本重跑解析与分类
	var tab2 *EquationTable
	for _, f := range s2.Faces() {
		if tt, ok := f.(*EquationTable); ok {
			tab2 = tt
		}
	}
	if tab2 == nil {
		t.Fatal("装载结果缺少方程表")
	}
	if len(tab2.Rows) != len(tab1.Rows) {
		t.Fatalf("行数不一致: %d != %d", len(tab2.Rows), len(tab1.Rows))
	}
	for i := range tab1.Rows {
		if tab2.Rows[i].Class() != tab1.Rows[i].Class() {
			t.Errorf("行 %q 分类不一致: %v != %v",
				tab1.Rows[i].Name, tab2.Rows[i].Class(), tab1.Rows[i].Class())
		}
	}

	// 两侧各跑 50 步，全部命名值轨迹一致
	for step := 0; step < 50; step++ {
		if err := s1.Step(); err != nil {
			t.Fatalf("原电路第 %d 步失败: %v", step, err)
		}
		if err := s2.Step(); err != nil {
			t.Fatalf("装载电路第 %d 步失败: %v", step, err)
		}
		for _, name := range []string{"vmid", "k", "m", "lin", "q", "w", "acc", "g", "gain"} {
			v1, ok1 := s1.Reg.Value(name)
			v2, ok2 := s2.Reg.Value(name)
			if !ok1 || !ok2 {
				t.Fatalf("命名值 %q 缺失: %v, %v", name, ok1, ok2)
			}
			if math.Abs(v1-v2) > 1e-12 {
				t.Fatalf("第 %d 步 %q 不一致: %g != %g", step, name, v1, v2)
			}
		}
	}
}

// TestNetlistLoadBadRow 验证坏公式行不拖垮网表装载。
func TestNetlistLoadBadRow(t *testing.T) {
	s1 := newTestSim()
	n := s1.M.AllocNode()
	s1.Add(NewVoltageSource(mna.Ground(), n, 2))
	s1.Add(NewLabeledNode(n, "vin"))
	tab := NewEquationTable()
	if err := tab.AddRow("d", "2*vin"); err != nil {
		t.Fatalf("添加行失败: %v", err)
	}
	if err := tab.AddRow("bad", "2*+"); err == nil {
		t.Fatal("坏公式应返回诊断错误")
	}
	s1.Add(tab)

	var buf bytes.Buffer
	if err := s1.Dump(&buf); err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	s2, err := mna.Load(bytes.NewReader(buf.Bytes()), s1.Cfg)
	if err != nil {
		t.Fatalf("装载失败: %v", err)
	}
	if err := s2.Step(); err != nil {
		t.Fatalf("时间步失败: %v", err)
	}
	if v, _ := s2.Reg.Value("d"); math.Abs(v-4) > 1e-9 {
		t.Errorf("d = %g, 期望 4", v)
	}
	if v, _ := s2.Reg.Value("bad"); math.Abs(v) > 1e-9 {
		t.Errorf("坏公式行应输出 0, 实际 %g", v)
	}
	for _, f := range s2.Faces() {
		if tt, ok := f.(*EquationTable); ok && len(tt.Diagnostics()) == 0 {
			t.Error("装载后应保留解析错误诊断")
		}
	}
}

// TestEscapeRoundTrip 验证文本转义往返。
func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"a + b",
		`x\beta`,
		"line1\nline2",
		"tab\there",
		"plain",
	}
	for _, s := range cases {
		enc := mna.EscapeText(s)
		for _, r := range enc {
			if r == ' ' || r == '\n' || r == '\t' {
				t.Errorf("转义结果含空白: %q -> %q", s, enc)
			}
		}
		if got := mna.UnescapeText(enc); got != s {
			t.Errorf("转义往返失败: %q -> %q -> %q", s, enc, got)
		}
	}
}

// TestResetIdempotent 验证复位后重跑与首次运行逐位一致。
func TestResetIdempotent(t *testing.T) {
	s, _ := buildMixedSim(t)

	record := func() map[string][]float64 {
		out := make(map[string][]float64)
		for step := 0; step < 30; step++ {
			if err := s.Step(); err != nil {
				t.Fatalf("第 %d 步失败: %v", step, err)
			}
			for _, name := range []string{"vmid", "q", "w", "acc"} {
				v, _ := s.Reg.Value(name)
				out[name] = append(out[name], v)
			}
			// 迭代轮数也须逐步一致
			out["迭代轮数"] = append(out["迭代轮数"], float64(s.LastIters))
		}
		return out
	}

	first := record()
	s.Reset()
	second := record()

	for name, w1 := range first {
		w2 := second[name]
		for i := range w1 {
			if w1[i] != w2[i] {
				t.Fatalf("复位后 %q 第 %d 步不一致: %g != %g", name, i, w1[i], w2[i])
			}
		}
	}

	// 复位幂等：连续复位后再跑仍一致
	s.Reset()
	s.Reset()
	third := record()
	for name, w1 := range first {
		if w1[0] != third[name][0] {
			t.Errorf("连续复位后 %q 首步不一致: %g != %g", name, w1[0], third[name][0])
		}
	}
}
