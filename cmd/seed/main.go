package main

import (
	"flag"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"
	"github.com/dujiao-next/orderflow/internal/constants"
	"github.com/dujiao-next/orderflow/internal/logger"
	"github.com/dujiao-next/orderflow/internal/models"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	var userID uint
	var adminID uint
	flag.UintVar(&userID, "user", 1, "演示用户 ID")
	flag.UintVar(&adminID, "admin", 1, "演示超级管理员 ID")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	balanceStart := time.Now().Add(24 * time.Hour)
	balanceEnd := balanceStart.Add(72 * time.Hour)
	skus := []models.ProductSKU{
		{
			SPUID:       1,
			SKUCode:     "EARPHONE-BLACK",
			Title:       "Wireless Earphones / Black",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
			Stock:       100,
			OnSale:      true,
		},
		{
			SPUID:       2,
			SKUCode:     "MUG-350ML",
			Title:       "Ceramic Mug 350ml",
			PriceAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("39.90")),
			Stock:       500,
			OnSale:      true,
		},
		{
			SPUID:          3,
			SKUCode:        "CONSOLE-PRESALE",
			Title:          "Game Console (Presale, deposit)",
			PriceAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(2999)),
			OnSale:         true,
			PresaleFlag:    true,
			PresaleType:    constants.PresaleTypeDeposit,
			DepositAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(300)),
			BalanceAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(2699)),
			PresaleLimit:   2,
			BalanceStartAt: &balanceStart,
			BalanceEndAt:   &balanceEnd,
		},
		{
			SPUID:        4,
			SKUCode:      "ARTBOOK-PRESALE",
			Title:        "Artbook (Presale, full payment)",
			PriceAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(128)),
			OnSale:       true,
			PresaleFlag:  true,
			PresaleType:  constants.PresaleTypeFull,
			PresaleLimit: 5,
		},
	}

	for i := range skus {
		sku := skus[i]
		var existing models.ProductSKU
		if err := models.DB.Where("sku_code = ?", sku.SKUCode).First(&existing).Error; err == nil {
			stdLog.Printf("SKU already exists: %s", sku.SKUCode)
			continue
		}
		if err := models.DB.Create(&sku).Error; err != nil {
			stdLog.Printf("Failed to create sku %s: %v", sku.SKUCode, err)
			continue
		}
		stdLog.Printf("Created sku: %s (id=%d)", sku.SKUCode, sku.ID)
	}

	var addressCount int64
	models.DB.Model(&models.Address{}).Where("user_id = ?", userID).Count(&addressCount)
	if addressCount == 0 {
		address := models.Address{
			UserID:    userID,
			Receiver:  "Demo User",
			Phone:     "13800000000",
			Region:    "Shanghai",
			Detail:    "No.1 Demo Road",
			IsDefault: true,
		}
		if err := models.DB.Create(&address).Error; err != nil {
			stdLog.Printf("Failed to create address: %v", err)
		} else {
			stdLog.Printf("Created address: id=%d user=%d", address.ID, userID)
		}
	}

	// 本地联调令牌
	tokens := service.NewTokenService(cfg.JWT, cfg.UserJWT)
	if token, expiresAt, err := tokens.IssueUserToken(userID); err == nil {
		stdLog.Printf("User token (user=%d, expires %s): %s", userID, expiresAt.Format(time.RFC3339), token)
	} else {
		stdLog.Printf("Failed to issue user token: %v", err)
	}
	if token, expiresAt, err := tokens.IssueAdminToken(adminID, "seed-admin", true); err == nil {
		stdLog.Printf("Admin token (admin=%d, super, expires %s): %s", adminID, expiresAt.Format(time.RFC3339), token)
	} else {
		stdLog.Printf("Failed to issue admin token: %v", err)
	}

	stdLog.Println("Seed data created successfully!")
}
