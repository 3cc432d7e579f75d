package audit

import (
	"github.com/smallops/dealdesk/internal/audit/repository"
	"github.com/smallops/dealdesk/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
