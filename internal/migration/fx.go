package migration

import (
	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/config"
	issuedomain "github.com/smallbiznis/beacon/internal/issue/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql use the model-derived schema; versioned SQL is
		// maintained for postgres only.
		return conn.AutoMigrate(
			&issuedomain.Issue{},
			&issuedomain.Comment{},
			&assistdomain.UsageDay{},
			&assistdomain.UsageEvent{},
		)
	}),
)
