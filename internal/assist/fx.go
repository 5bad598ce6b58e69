package assist

import (
	"github.com/smallbiznis/beacon/internal/assist/repository"
	"github.com/smallbiznis/beacon/internal/assist/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assist.service",
	fx.Provide(repository.ProvideLedger),
	fx.Provide(repository.ProvideArtifactStore),
	fx.Provide(service.New),
)
