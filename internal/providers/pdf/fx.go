package pdf

import (
	"github.com/smallops/dealdesk/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(NewRenderer),
	fx.Provide(func(cfg config.Config) *Store {
		return NewStore(cfg.PDFStorageDir)
	}),
	fx.Provide(NewWorker),
)
