package product

import (
	"github.com/smallops/dealdesk/internal/product/repository"
	"github.com/smallops/dealdesk/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
