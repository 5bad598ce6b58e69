package ai

import (
	"go.uber.org/fx"

	assistdomain "github.com/smallbiznis/beacon/internal/assist/domain"
	"github.com/smallbiznis/beacon/internal/config"
)

var Module = fx.Module("providers.ai",
	fx.Provide(func(cfg config.Config) assistdomain.Generator {
		return NewAnthropic(Config{
			APIKey: cfg.AI.APIKey,
			Model:  cfg.AI.Model,
		})
	}),
)
