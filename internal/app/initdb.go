package app

import (
	"fmt"
	"time"

	"github.com/talkincode/waconsole/config"
	"github.com/talkincode/waconsole/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())

	loglevel := logger.Silent
	if cfg.Debug {
		loglevel = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(loglevel),
	})
	if err != nil {
		zap.S().Fatalf("database connect failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Fatalf("database handle failed: %v", err)
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db
}

// checkDefaultTemplates seeds a couple of starter message templates so the
// console is usable out of the box.
func (a *Application) checkDefaultTemplates() {
	defaultTemplates := []domain.MsgTemplate{
		{
			Name:   "welcome",
			Body:   "Hello {{name}}, thanks for reaching out. How can we help you today?",
			Remark: "Greeting for first contact",
		},
		{
			Name:   "followup",
			Body:   "Hi {{name}}, just following up on our last conversation.",
			Remark: "Generic follow-up",
		},
	}

	for _, t := range defaultTemplates {
		var count int64
		a.gormDB.Model(&domain.MsgTemplate{}).Where("name = ?", t.Name).Count(&count)
		if count == 0 {
			t.CreatedAt = time.Now()
			t.UpdatedAt = time.Now()
			if err := a.gormDB.Create(&t).Error; err != nil {
				zap.L().Error("failed to create default template", zap.String("name", t.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default template", zap.String("name", t.Name))
			}
		}
	}
}
