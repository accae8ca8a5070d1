package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/violationstack/config"
)

func NewConnection(dbConfig *config.DatabaseConfig) (*gorm.DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, err
	}

	portInt, err := strconv.Atoi(dbConfig.Port)
	if err != nil {
		return nil, errors.Wrap(err, "invalid port number")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host, portInt, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel(dbConfig.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxIdle := 10
	if dbConfig.MaxIdleConn > 0 {
		maxIdle = dbConfig.MaxIdleConn
	}
	maxOpen := 100
	if dbConfig.MaxConn > 0 {
		maxOpen = dbConfig.MaxConn
	}
	lifetime := time.Hour
	if dbConfig.ConnMaxLifetime > 0 {
		lifetime = time.Duration(dbConfig.ConnMaxLifetime) * time.Minute
	}

	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(lifetime)

	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return gormlogger.Silent
	case "ERROR":
		return gormlogger.Error
	case "INFO":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func validateConfig(cfg *config.DatabaseConfig) error {
	switch {
	case cfg == nil:
		return errors.New("database config is nil")
	case cfg.Host == "":
		return errors.New("database host config is empty")
	case cfg.Port == "":
		return errors.New("database port config is empty")
	case cfg.User == "":
		return errors.New("database user config is empty")
	case cfg.Password == "":
		return errors.New("database password config is empty")
	case cfg.DBName == "":
		return errors.New("database name config is empty")
	case cfg.SSLMode == "":
		return errors.New("database SSLMode config is empty")
	}
	return nil
}
