//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/inputlink/internal/core/config"
)

func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideBus,
		ProvideWorld,
		ProvideEngine,
		ProvideRunner,
		ProvideLedger,
		ProvideBridge,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
