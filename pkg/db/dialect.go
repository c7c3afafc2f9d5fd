package db

import (
	"errors"
	"fmt"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/smallbiznis/partnerhub/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrUnsupportedDialect = errors.New("unsupported_database_type")

const applicationName = "partnerhub"

// Dialect picks the gorm driver for DATABASE_TYPE. DATABASE_URL, when set,
// replaces the DSN assembled from the individual connection settings.
// "sqlite-pure" is the cgo-free sqlite build used for single-binary installs.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.DBType {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "sqlite-pure":
		return puresqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, cfg.DBType)
	}
}

func DSN(cfg config.Config) (string, error) {
	if override := strings.TrimSpace(cfg.DBURL); override != "" {
		return override, nil
	}

	switch cfg.DBType {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC application_name=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode, applicationName,
		), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
		), nil
	case "sqlite":
		return cfg.DBPath, nil
	case "sqlite-pure":
		return withPragma(cfg.DBPath, "busy_timeout(5000)"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, cfg.DBType)
	}
}

func withPragma(path, pragma string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=" + pragma
}
