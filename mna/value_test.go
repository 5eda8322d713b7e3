package mna

import (
	"errors"
	"testing"
)

func TestRegistryNodeValue(t *testing.T) {
	m := buildMNA(t, 2, 0)
	defer m.Release()
	reg := NewRegistry(m)

	n := Node(1)
	if err := reg.RegisterNode("vin", n); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	m.vecX.Set(0, 2.5)
	if v, ok := reg.Value("vin"); !ok || v != 2.5 {
		t.Errorf("Value(vin) = %g, %v", v, ok)
	}
	if got, ok := reg.NodeOf("vin"); !ok || got.Num() != n.Num() {
		t.Errorf("NodeOf(vin) = %v, %v", got, ok)
	}
	if _, ok := reg.Value("不存在"); ok {
		t.Error("未注册的名字不应有值")
	}
}

func TestRegistryDuplicate(t *testing.T) {
	m := buildMNA(t, 1, 0)
	defer m.Release()
	reg := NewRegistry(m)

	if err := reg.RegisterNode("x", Node(1)); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := reg.RegisterNode("x", Node(1)); !errors.Is(err, ErrBadStamp) {
		t.Errorf("重复注册节点: err = %v", err)
	}
	if err := reg.RegisterProvider("x", func() float64 { return 0 }); !errors.Is(err, ErrBadStamp) {
		t.Errorf("重复注册提供者: err = %v", err)
	}
	if err := reg.RegisterAlias("x", "y"); !errors.Is(err, ErrBadStamp) {
		t.Errorf("重复注册别名: err = %v", err)
	}
}

func TestRegistryAliasChain(t *testing.T) {
	m := buildMNA(t, 1, 0)
	defer m.Release()
	reg := NewRegistry(m)

	if err := reg.RegisterNode("v1", Node(1)); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := reg.RegisterAlias("a", "b"); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := reg.RegisterAlias("b", "v1"); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	m.vecX.Set(0, 7)
	if v, ok := reg.Value("a"); !ok || v != 7 {
		t.Errorf("别名链取值 = %g, %v", v, ok)
	}
	if n, ok := reg.NodeOf("a"); !ok || n.Num() != 1 {
		t.Errorf("别名链节点 = %v, %v", n, ok)
	}
}

func TestRegistryAliasCycle(t *testing.T) {
	m := buildMNA(t, 1, 0)
	defer m.Release()
	reg := NewRegistry(m)

	if err := reg.RegisterAlias("a", "b"); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := reg.RegisterAlias("b", "a"); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if _, ok := reg.Value("a"); ok {
		t.Error("别名环取值应失败")
	}
	if _, ok := reg.NodeOf("b"); ok {
		t.Error("别名环解析节点应失败")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	m := buildMNA(t, 1, 0)
	defer m.Release()
	reg := NewRegistry(m)

	if err := reg.RegisterNode("v", Node(1)); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	acc := 1.0
	if err := reg.RegisterProvider("p", func() float64 { return acc }); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if _, ok := reg.Committed("v"); ok {
		t.Error("快照前不应有提交值")
	}
	m.vecX.Set(0, 3)
	reg.Snapshot()
	acc = 2
	m.vecX.Set(0, 4)
	// 提交值停留在快照时刻
	if v, ok := reg.Committed("v"); !ok || v != 3 {
		t.Errorf("Committed(v) = %g, %v", v, ok)
	}
	if v, ok := reg.Committed("p"); !ok || v != 1 {
		t.Errorf("Committed(p) = %g, %v", v, ok)
	}
	// 当前值跟随最新状态
	if v, _ := reg.Value("v"); v != 4 {
		t.Errorf("Value(v) = %g", v)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	m := buildMNA(t, 1, 0)
	defer m.Release()
	reg := NewRegistry(m)

	for _, name := range []string{"zz", "aa", "mm"} {
		if err := reg.RegisterProvider(name, func() float64 { return 0 }); err != nil {
			t.Fatalf("注册失败: %v", err)
		}
	}
	got := reg.Names()
	want := []string{"aa", "mm", "zz"}
	if len(got) != len(want) {
		t.Fatalf("名字数 = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("名字顺序 = %v, 期望 %v", got, want)
		}
	}
}
