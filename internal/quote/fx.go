package quote

import (
	"github.com/smallops/dealdesk/internal/quote/repository"
	"github.com/smallops/dealdesk/internal/quote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
