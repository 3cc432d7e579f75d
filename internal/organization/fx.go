package organization

import (
	"github.com/smallops/dealdesk/internal/organization/repository"
	"github.com/smallops/dealdesk/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
