//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/nexus-reussite/nexus-realtime/internal/app"
	"github.com/nexus-reussite/nexus-realtime/internal/config"
)

// InitializeClient builds the full client graph from cfg. The returned
// cleanup releases what the graph opened.
func InitializeClient(cfg *config.Config) (*app.Client, func(), error) {
	wire.Build(app.ProviderSet)
	return nil, nil, nil
}
