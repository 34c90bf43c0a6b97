package service

import (
	"context"
	"errors"
	"testing"

	"github.com/medscan/scangate/internal/model"
	"github.com/stretchr/testify/assert"
)

type fakeDictRepo struct {
	items []*model.DictItem
	err   error
}

func (f *fakeDictRepo) ListByType(_ context.Context, dictType string) ([]*model.DictItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.DictItem
	for _, item := range f.items {
		if item.DictType == dictType {
			out = append(out, item)
		}
	}
	return out, nil
}

func TestUsageTypeLabelsFromDictionary(t *testing.T) {
	repo := &fakeDictRepo{items: []*model.DictItem{
		{DictType: model.DictUsageType, Code: 1, Label: "常规使用"},
		{DictType: model.DictUsageType, Code: 3, Label: "维修"},
	}}
	labels := NewDictService(repo).UsageTypeLabels(context.Background())

	assert.Equal(t, "常规使用", labels["1"])
	assert.Equal(t, "维修", labels["3"])
	// Unmapped codes resolve to themselves.
	assert.Equal(t, "2", labels["2"])
	assert.Equal(t, "5", labels["5"])
}

func TestUsageTypeLabelsDictionaryDown(t *testing.T) {
	repo := &fakeDictRepo{err: errors.New("connection refused")}
	labels := NewDictService(repo).UsageTypeLabels(context.Background())

	for _, code := range []string{"1", "2", "3", "4", "5"} {
		assert.Equal(t, code, labels[code])
	}
}

func TestEquipmentConditionLabel(t *testing.T) {
	assert.Equal(t, "正常", EquipmentConditionLabel("normal"))
	assert.Equal(t, "异常", EquipmentConditionLabel("abnormal"))
	assert.Equal(t, "", EquipmentConditionLabel(""))
	assert.Equal(t, "weird", EquipmentConditionLabel("weird"))
}

func TestDailyMaintenanceLabel(t *testing.T) {
	assert.Equal(t, "清洁", DailyMaintenanceLabel("clean"))
	assert.Equal(t, "消毒", DailyMaintenanceLabel("disinfect"))
	assert.Equal(t, "", DailyMaintenanceLabel(""))
}
