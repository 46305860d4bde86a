package database

import (
	"fmt"
	"log"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the shared connection opened by SetupDatabase.
var DB *gorm.DB

// DSN builds the MySQL data source name from the environment.
func DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

func SetupDatabase() {
	var err error
	logLevel := logger.Warn
	if env.IsDev() {
		logLevel = logger.Info
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{
			// Duplicate-key violations surface as gorm.ErrDuplicatedKey
			TranslateError: true,
			Logger:         logger.Default.LogMode(logLevel),
		})
		if err == nil {
			if err = DB.AutoMigrate(
				&models.Zone{},
				&models.Unit{},
				&models.Member{},
				&models.FeeRule{},
				&models.FeeApplication{},
				&models.FeeRuleRun{},
				&models.Setting{},
			); err != nil {
				panic(fmt.Errorf("auto migrate: %w", err))
			}

			if err = models.LoadSettings(DB); err != nil {
				log.Printf("Failed to load settings, using defaults: %v", err)
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the shared connection
func GetDB() *gorm.DB {
	return DB
}
