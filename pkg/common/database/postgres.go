package database

import (
	"fmt"

	"github.com/rosterbridge/vendor-portal/pkg/common/config"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the application database.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
		cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode, "application")
}

// ConnectVault opens the token vault database. It uses its own host and
// credentials: the vault mapping must stay reachable only through this
// connection, not through the application pool.
func ConnectVault(cfg *config.Config) (*gorm.DB, error) {
	return open(cfg.VaultPostgresHost, cfg.VaultPostgresPort, cfg.VaultPostgresUser,
		cfg.VaultPostgresPassword, cfg.VaultPostgresDB, cfg.VaultPostgresSSLMode, "vault")
}

func open(host, port, user, password, dbname, sslmode, name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", name, err)
	}

	logger.Log.WithField("database", name).Info("Connected to PostgreSQL")
	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
