package main

import (
	"context"
	"log"

	"github.com/medscan/scangate/internal/config"
	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/logger"
	"github.com/medscan/scangate/internal/repository"
)

// Seeds the dictionaries a fresh deployment needs: usage types 1-5 and the
// device status codes. Existing codes are left untouched, so reruns are safe.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	gdb, err := repository.NewGormDB(cfg)
	if err != nil {
		log.Fatalf("Failed to open ORM session: %v", err)
	}
	dictRepo, err := repository.NewGormDictRepo(gdb)
	if err != nil {
		log.Fatalf("Failed to prepare dict_items table: %v", err)
	}

	ctx := context.Background()
	seed := []model.DictItem{
		{DictType: model.DictUsageType, Code: model.UsageTypeNormal, Label: "常规使用", SortOrder: 1},
		{DictType: model.DictUsageType, Code: model.UsageTypeBorrow, Label: "外借", SortOrder: 2},
		{DictType: model.DictUsageType, Code: model.UsageTypeRepair, Label: "维修", SortOrder: 3},
		{DictType: model.DictUsageType, Code: model.UsageTypeCalibration, Label: "校准", SortOrder: 4},
		{DictType: model.DictUsageType, Code: model.UsageTypeOther, Label: "其他", SortOrder: 5},
		{DictType: model.DictDeviceStatus, Code: 1, Label: "在用", SortOrder: 1},
		{DictType: model.DictDeviceStatus, Code: 2, Label: "停用", SortOrder: 2},
		{DictType: model.DictDeviceStatus, Code: 3, Label: "维修中", SortOrder: 3},
		{DictType: model.DictDeviceStatus, Code: 4, Label: "报废", SortOrder: 4},
	}

	created := 0
	for _, item := range seed {
		n, err := dictRepo.CountByTypeAndCode(ctx, item.DictType, item.Code)
		if err != nil {
			log.Fatalf("Failed to check dict item %s/%d: %v", item.DictType, item.Code, err)
		}
		if n > 0 {
			continue
		}
		item.IsActive = true
		item.CreatedAt = localtime.NowUTC()
		if err := dictRepo.Create(ctx, &item); err != nil {
			log.Fatalf("Failed to seed dict item %s/%d: %v", item.DictType, item.Code, err)
		}
		created++
	}
	logger.Info("Dictionary seed finished", "created", created, "total", len(seed))
}
