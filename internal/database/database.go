package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/h4ev/formgate/internal/models"
)

type Config struct {
	Driver string

	// SQLitePath is used when Driver is "sqlite".
	SQLitePath string

	User     string
	Password string
	Host     string
	Port     string
	DBName   string
	SSLMode  string
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(c.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open connects with exponential backoff and migrates the schema.
func Open(log *logrus.Logger, cfg Config) (*gorm.DB, error) {
	entry := log.WithFields(logrus.Fields{
		"component": "database",
		"driver":    cfg.Driver,
		"host":      cfg.Host,
		"database":  cfg.DBName,
	})

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	const maxRetries = 5
	retryDelay := 2 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err == nil {
			break
		}

		entry.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Database connection failed")

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	if err != nil {
		entry.WithError(err).Error("Failed to connect to database after retries")
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		entry.WithError(err).Error("Database migration failed")
		return nil, err
	}

	entry.Info("Database connection established")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.CacheEntry{}); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}
