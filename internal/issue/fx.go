package issue

import (
	"github.com/smallbiznis/beacon/internal/issue/repository"
	"github.com/smallbiznis/beacon/internal/issue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("issue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
