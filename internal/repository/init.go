package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/models"
)

type Repositories struct {
	TenantRepository              interfaces.TenantRepository
	DriverRepository              interfaces.DriverRepository
	InboundMessageRepository      interfaces.InboundMessageRepository
	ViolationRepository           interfaces.ViolationRepository
	NotificationAttemptRepository interfaces.NotificationAttemptRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		TenantRepository:              NewTenantRepository(db),
		DriverRepository:              NewDriverRepository(db),
		InboundMessageRepository:      NewInboundMessageRepository(db),
		ViolationRepository:           NewViolationRepository(db),
		NotificationAttemptRepository: NewNotificationAttemptRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.Driver{},
		&models.InboundMessage{},
		&models.Violation{},
		&models.NotificationAttempt{},
	)

	if dbConfig.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	}
	if dbConfig.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)
	}

	return err
}
