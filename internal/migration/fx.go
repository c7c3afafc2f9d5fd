package migration

import (
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date and seeds the default agreements.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.DBAutoMigrate {
		if err := Migrate(conn, cfg); err != nil {
			return err
		}
	}
	if !cfg.BootstrapSeed {
		return nil
	}
	created, err := seed.EnsureDefaultAgreements(conn)
	if err != nil {
		return err
	}
	if created > 0 {
		log.Info("seeded default agreements", zap.Int("count", created))
	}
	return nil
}

func Migrate(conn *gorm.DB, cfg config.Config) error {
	if cfg.DBType != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
