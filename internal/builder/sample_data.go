package builder

import "github.com/freedkr/pricetree/internal/model"

// SamplePriceRecords 测试用的扁平源记录
var SamplePriceRecords = []*model.PriceRecord{
	{
		Code:    "0",
		Name:    "总计",
		Weight:  "1000",
		Periods: [model.NumPeriods]string{"100", "100", "100", "100", "100"},
	},
	{
		Code:    "01",
		Name:    "食品烟酒",
		Weight:  "30",
		Periods: [model.NumPeriods]string{"100", "110", "115", "120", "130"},
	},
	{
		Code:    "01.1",
		Name:    "*粮食",
		Weight:  "10",
		Periods: [model.NumPeriods]string{"100", "105", "108", "110", "120"},
	},
	{
		Code:    "01.2",
		Name:    "*畜肉类",
		Weight:  "20",
		Periods: [model.NumPeriods]string{"100", "120", "130", "140", "150"},
	},
	{
		Code:    "02",
		Name:    "衣着",
		Weight:  "n/a",
		Periods: [model.NumPeriods]string{"0", "0", "0", "0", "0"},
	},
	{
		// 孤儿节点：父编码"03"不存在，直接挂在根下
		Code:    "03.1",
		Name:    "家用器具",
		Weight:  "15",
		Periods: [model.NumPeriods]string{"100", "100", "100", "100", "105"},
	},
}

// SampleCategories 测试用的分类数据（手工构建的聚合前结构）
var SampleCategories = []*model.Category{
	{
		Code:   "01",
		Name:   "食品烟酒",
		Weight: 30,
		Children: []*model.Category{
			{
				Code:        "01.1",
				Name:        "粮食",
				Weight:      10,
				Depth:       1,
				IndexValues: [model.NumPeriods]float64{100, 105, 108, 110, 120},
			},
			{
				Code:        "01.2",
				Name:        "畜肉类",
				Weight:      20,
				Depth:       1,
				IndexValues: [model.NumPeriods]float64{100, 120, 130, 140, 150},
			},
		},
	},
	{
		Code:        "02",
		Name:        "衣着",
		Weight:      0,
		IndexValues: [model.NumPeriods]float64{},
	},
}
