package auth

import (
	"github.com/smallops/dealdesk/internal/auth/repository"
	"github.com/smallops/dealdesk/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
