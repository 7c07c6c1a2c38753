package catalog

import (
	"github.com/gear6io/lattice/pkg/errors"
	"github.com/gear6io/lattice/server/catalog/memory"
	"github.com/gear6io/lattice/server/catalog/sqlite"
	"github.com/gear6io/lattice/server/config"
	"github.com/rs/zerolog"
)

// NewStore creates a catalog store based on the configuration
func NewStore(cfg *config.Config, logger zerolog.Logger) (Store, error) {
	storeType := cfg.GetCatalogType()

	switch storeType {
	case "sqlite":
		return sqlite.NewStore(cfg, logger)
	case "memory":
		return memory.NewStore(cfg, logger)
	default:
		return nil, errors.New(ErrUnsupportedStoreType, "unsupported catalog store type", nil).AddContext("store_type", storeType)
	}
}
