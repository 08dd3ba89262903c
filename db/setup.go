package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/obfin/openfinance/config"
	"github.com/obfin/openfinance/models"
)

// CreateDB opens the primary connection, registers read replicas when
// configured, and applies the schema for the domain aggregates this core
// persists.
func CreateDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary database: %w", err)
	}

	if len(cfg.ReplicaDSNs) > 0 {
		resolverConfig := dbresolver.Config{}
		for _, dsn := range cfg.ReplicaDSNs {
			resolverConfig.Replicas = append(resolverConfig.Replicas, postgres.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(resolverConfig)); err != nil {
			return nil, fmt.Errorf("failed to configure read replicas: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.AutoMigrate(
		&models.BulkFile{},
		&models.BulkFileReport{},
		&models.VrpConsent{},
		&models.VrpPayment{},
		&models.FxQuote{},
		&models.FxDeal{},
		&models.InsuranceQuote{},
		&models.InsurancePolicy{},
		&models.Account{},
		&models.Balance{},
		&models.Transaction{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
