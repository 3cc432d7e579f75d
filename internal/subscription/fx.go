package subscription

import (
	"github.com/smallops/dealdesk/internal/subscription/repository"
	"github.com/smallops/dealdesk/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
