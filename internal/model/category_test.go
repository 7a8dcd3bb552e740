package model

import "testing"

func TestGetParentCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"三级编码", "01.2.1", "01.2"},
		{"二级编码", "01.2", "01"},
		{"顶层编码", "01", ""},
		{"空编码", "", ""},
		{"合成根编码", RootCode, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Category{Code: tt.code}
			if got := c.GetParentCode(); got != tt.expected {
				t.Errorf("GetParentCode(%q) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestIsTotalRow(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected bool
	}{
		{"总计哨兵值", "0", true},
		{"空编码", "", true},
		{"正常编码", "01", false},
		{"带点编码", "01.2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PriceRecord{Code: tt.code}
			if got := r.IsTotalRow(); got != tt.expected {
				t.Errorf("IsTotalRow() for code %q = %v, want %v", tt.code, got, tt.expected)
			}
		})
	}
}

func testTree() *Tree {
	root := &Category{Code: RootCode, Name: RootName}
	food := &Category{Code: "01", Name: "食品烟酒", Weight: 30}
	grain := &Category{Code: "01.1", Name: "粮食", Weight: 10, Depth: 1,
		IndexValues: [NumPeriods]float64{100, 105, 108, 110, 120}}
	meat := &Category{Code: "01.2", Name: "畜肉类", Weight: 20, Depth: 1,
		IndexValues: [NumPeriods]float64{100, 120, 130, 140, 150}}
	clothing := &Category{Code: "02", Name: "衣着", Weight: 15}

	food.AddChild(grain)
	food.AddChild(meat)
	root.AddChild(food)
	root.AddChild(clothing)
	root.Weight = root.ChildWeightSum()

	return &Tree{Root: root}
}

func TestTreeFind(t *testing.T) {
	tree := testTree()

	if got := tree.Find(RootCode); got == nil || got.Name != RootName {
		t.Errorf("Expected to find root by code %q", RootCode)
	}
	if got := tree.Find("01.2"); got == nil || got.Name != "畜肉类" {
		t.Error("Expected to find nested node '01.2'")
	}
	if got := tree.Find("99"); got != nil {
		t.Errorf("Expected nil for unknown code, got %v", got.Code)
	}

	var nilTree *Tree
	if got := nilTree.Find("01"); got != nil {
		t.Error("Expected nil result on nil tree")
	}
}

func TestFindChild(t *testing.T) {
	tree := testTree()
	food := tree.Find("01")

	if got := food.FindChild("01.1"); got == nil || got.Name != "粮食" {
		t.Error("Expected to find direct child '01.1'")
	}
	// FindChild 只查直接子节点
	if got := tree.Root.FindChild("01.1"); got != nil {
		t.Error("FindChild should not recurse into descendants")
	}
}

func TestChildWeightSum(t *testing.T) {
	tree := testTree()

	if got := tree.Root.ChildWeightSum(); got != 45 {
		t.Errorf("Expected root child weight sum 45, got %v", got)
	}
	if got := tree.Find("01.1").ChildWeightSum(); got != 0 {
		t.Errorf("Expected 0 for leaf, got %v", got)
	}
}

func TestIsLeaf(t *testing.T) {
	tree := testTree()

	if tree.Root.IsLeaf() {
		t.Error("Root with children should not be a leaf")
	}
	if !tree.Find("01.1").IsLeaf() {
		t.Error("Node without children should be a leaf")
	}
}

func TestClone(t *testing.T) {
	tree := testTree()
	clone := tree.Root.Clone()

	// 结构与值一致
	if clone.Code != tree.Root.Code || clone.GetChildrenCount() != tree.Root.GetChildrenCount() {
		t.Fatal("Clone does not match original structure")
	}

	// 深拷贝：修改克隆不影响原树
	clone.FindDescendant("01.1").Weight = 999
	if tree.Find("01.1").Weight != 10 {
		t.Error("Modifying clone affected the original tree")
	}
	if clone.FindDescendant("01.2") == tree.Find("01.2") {
		t.Error("Expected cloned descendant to be a distinct pointer")
	}
}

func TestToFlat(t *testing.T) {
	tree := testTree()
	flat := tree.Root.ToFlat()

	// 先根顺序：root, 01, 01.1, 01.2, 02
	expected := []string{RootCode, "01", "01.1", "01.2", "02"}
	if len(flat) != len(expected) {
		t.Fatalf("Expected %d nodes, got %d", len(expected), len(flat))
	}
	for i, code := range expected {
		if flat[i].Code != code {
			t.Errorf("Position %d: expected code %q, got %q", i, code, flat[i].Code)
		}
	}
}
