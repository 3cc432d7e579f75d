package customer

import (
	"github.com/smallops/dealdesk/internal/customer/repository"
	"github.com/smallops/dealdesk/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
