package builder

import (
	"context"
	"reflect"
	"testing"

	"github.com/freedkr/pricetree/internal/model"
)

// buildSampleTree 构建并聚合测试树
func buildSampleTree(t *testing.T) *model.Tree {
	t.Helper()
	tree, err := NewTreeBuilder(nil).BuildTree(context.Background(), SamplePriceRecords)
	if err != nil {
		t.Fatalf("Failed to build sample tree: %v", err)
	}
	return tree
}

func TestRebalancer_ProportionPreservation(t *testing.T) {
	tree := buildSampleTree(t)
	rebalancer := NewRebalancer()

	// 子节点权重之和为30，改为60：scale=2
	newTree, err := rebalancer.Rebalance(tree, "01", 60)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	food := newTree.Find("01")
	if !almostEqual(food.Weight, 60) {
		t.Errorf("Expected weight 60 for '01', got %v", food.Weight)
	}

	// 后代按同一比例缩放：10→20、20→40，比例保持不变
	grain := newTree.Find("01.1")
	meat := newTree.Find("01.2")
	if !almostEqual(grain.Weight, 20) {
		t.Errorf("Expected weight 20 for '01.1', got %v", grain.Weight)
	}
	if !almostEqual(meat.Weight, 40) {
		t.Errorf("Expected weight 40 for '01.2', got %v", meat.Weight)
	}
	if !almostEqual(grain.Weight/meat.Weight, 0.5) {
		t.Errorf("Expected descendant weight ratio 0.5, got %v", grain.Weight/meat.Weight)
	}

	// 比例不变、子节点指数值不变，聚合指数保持140
	if !almostEqual(food.IndexValues[model.PeriodCurrent], 140) {
		t.Errorf("Expected current index 140 after rebalance, got %v", food.IndexValues[model.PeriodCurrent])
	}

	// 祖先重算：根权重 60+0+15=75，指数用新权重加权
	root := newTree.Root
	if !almostEqual(root.Weight, 75) {
		t.Errorf("Expected root weight 75, got %v", root.Weight)
	}
	wantCurrent := (140.0*60 + 105*15) / 75
	if !almostEqual(root.IndexValues[model.PeriodCurrent], wantCurrent) {
		t.Errorf("Expected root current index %v, got %v", wantCurrent, root.IndexValues[model.PeriodCurrent])
	}

	// 不变量在编辑后依然成立
	if errors := NewTreeBuilder(nil).Validate(newTree); errors != nil {
		t.Errorf("Expected invariants to hold after rebalance, got: %v", errors)
	}
}

func TestRebalancer_Idempotence(t *testing.T) {
	tree := buildSampleTree(t)
	rebalancer := NewRebalancer()

	once, err := rebalancer.Rebalance(tree, "01", 60)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 第二次缩放比例为 60/60 = 1
	twice, err := rebalancer.Rebalance(once, "01", 60)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(once, twice) {
		t.Error("Expected rebalance to be idempotent for the same (code, weight)")
	}
}

func TestRebalancer_LeafEdit(t *testing.T) {
	tree := buildSampleTree(t)
	rebalancer := NewRebalancer()

	// 叶子节点：只设置权重，无聚合步骤，但所有祖先重算
	newTree, err := rebalancer.Rebalance(tree, "01.1", 25)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	grain := newTree.Find("01.1")
	if !almostEqual(grain.Weight, 25) {
		t.Errorf("Expected weight 25 for '01.1', got %v", grain.Weight)
	}
	// 叶子自身的指数与涨跌幅不变
	if !almostEqual(grain.IndexValues[model.PeriodCurrent], 120) {
		t.Errorf("Expected leaf index values untouched, got %v", grain.IndexValues)
	}

	// 父节点："01"权重 25+20=45，指数用新权重重算
	food := newTree.Find("01")
	if !almostEqual(food.Weight, 45) {
		t.Errorf("Expected weight 45 for '01', got %v", food.Weight)
	}
	wantFood := (120.0*25 + 150*20) / 45
	if !almostEqual(food.IndexValues[model.PeriodCurrent], wantFood) {
		t.Errorf("Expected current index %v for '01', got %v", wantFood, food.IndexValues[model.PeriodCurrent])
	}

	// 根节点（目标的二级祖先）同样重算
	root := newTree.Root
	if !almostEqual(root.Weight, 60) {
		t.Errorf("Expected root weight 60, got %v", root.Weight)
	}
	wantRoot := (wantFood*45 + 105*15) / 60
	if !almostEqual(root.IndexValues[model.PeriodCurrent], wantRoot) {
		t.Errorf("Expected root current index %v, got %v", wantRoot, root.IndexValues[model.PeriodCurrent])
	}
}

func TestRebalancer_ZeroChildWeight(t *testing.T) {
	// 退化情形：子节点权重之和为0，无法定义缩放比例
	tree := &model.Tree{
		Root: &model.Category{
			Code: model.RootCode,
			Name: model.RootName,
			Children: []*model.Category{
				{
					Code:        "05",
					Name:        "医疗保健",
					IndexValues: [model.NumPeriods]float64{100, 100, 100, 100, 110},
					Children: []*model.Category{
						{Code: "05.1", Name: "中药", Weight: 0,
							IndexValues: [model.NumPeriods]float64{0, 0, 0, 0, 0}},
						{Code: "05.2", Name: "西药", Weight: 0,
							IndexValues: [model.NumPeriods]float64{0, 0, 0, 0, 0}},
					},
				},
			},
		},
	}

	newTree, err := NewRebalancer().Rebalance(tree, "05", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	target := newTree.Find("05")
	if !almostEqual(target.Weight, 10) {
		t.Errorf("Expected target weight 10, got %v", target.Weight)
	}

	// 后代权重保持不变
	if w := newTree.Find("05.1").Weight; w != 0 {
		t.Errorf("Expected descendant weight unchanged (0), got %v", w)
	}
	if w := newTree.Find("05.2").Weight; w != 0 {
		t.Errorf("Expected descendant weight unchanged (0), got %v", w)
	}

	// 有效权重为0：指数字段保留原值
	if !almostEqual(target.IndexValues[model.PeriodCurrent], 110) {
		t.Errorf("Expected prior index value kept, got %v", target.IndexValues[model.PeriodCurrent])
	}
}

func TestRebalancer_NotFound(t *testing.T) {
	tree := buildSampleTree(t)

	_, err := NewRebalancer().Rebalance(tree, "99.9", 10)
	if err == nil {
		t.Fatal("Expected not-found error for unknown code")
	}
	if !model.IsErrorType(err, model.ErrCodeNotFound) {
		t.Errorf("Expected NOT_FOUND error, got %v", err)
	}

	// 输入树不受影响
	if !almostEqual(tree.Find("01").Weight, 30) {
		t.Error("Input tree was modified by failed rebalance")
	}
}

func TestRebalancer_NegativeWeight(t *testing.T) {
	tree := buildSampleTree(t)

	_, err := NewRebalancer().Rebalance(tree, "01", -5)
	if err == nil {
		t.Fatal("Expected error for negative weight")
	}
	if !model.IsErrorType(err, model.ErrCodeInvalidWeight) {
		t.Errorf("Expected INVALID_WEIGHT error, got %v", err)
	}
}

func TestRebalancer_SnapshotIndependence(t *testing.T) {
	tree := buildSampleTree(t)

	newTree, err := NewRebalancer().Rebalance(tree, "01", 60)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 旧快照保持原值
	if !almostEqual(tree.Find("01").Weight, 30) {
		t.Errorf("Old snapshot '01' weight changed: %v", tree.Find("01").Weight)
	}
	if !almostEqual(tree.Find("01.1").Weight, 10) {
		t.Errorf("Old snapshot '01.1' weight changed: %v", tree.Find("01.1").Weight)
	}
	if !almostEqual(tree.Root.Weight, 45) {
		t.Errorf("Old snapshot root weight changed: %v", tree.Root.Weight)
	}

	// 路径上的节点被克隆，未触及的兄弟子树按引用共享
	if newTree.Find("01") == tree.Find("01") {
		t.Error("Expected edited node to be cloned")
	}
	if newTree.Root == tree.Root {
		t.Error("Expected root on the edited path to be cloned")
	}
	if newTree.Find("03.1") != tree.Find("03.1") {
		t.Error("Expected untouched sibling subtree to be shared by reference")
	}
}

func TestRebalancer_RootTarget(t *testing.T) {
	tree := buildSampleTree(t)

	// 对合成根应用编辑：45→90，全部后代权重翻倍
	newTree, err := NewRebalancer().Rebalance(tree, model.RootCode, 90)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !almostEqual(newTree.Root.Weight, 90) {
		t.Errorf("Expected root weight 90, got %v", newTree.Root.Weight)
	}
	if !almostEqual(newTree.Find("01").Weight, 60) {
		t.Errorf("Expected '01' weight 60, got %v", newTree.Find("01").Weight)
	}
	if !almostEqual(newTree.Find("01.2").Weight, 40) {
		t.Errorf("Expected '01.2' weight 40, got %v", newTree.Find("01.2").Weight)
	}

	// 均匀缩放不改变加权平均
	if !almostEqual(newTree.Root.IndexValues[model.PeriodCurrent], tree.Root.IndexValues[model.PeriodCurrent]) {
		t.Errorf("Expected root index unchanged under uniform scaling, got %v",
			newTree.Root.IndexValues[model.PeriodCurrent])
	}
}
