package invoice

import (
	"github.com/smallops/dealdesk/internal/invoice/repository"
	"github.com/smallops/dealdesk/internal/invoice/sequence"
	"github.com/smallops/dealdesk/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(sequence.NewAllocator),
	fx.Provide(service.New),
)
