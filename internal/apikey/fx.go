package apikey

import (
	"github.com/smallops/dealdesk/internal/apikey/repository"
	"github.com/smallops/dealdesk/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
