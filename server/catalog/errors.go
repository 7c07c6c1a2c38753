package catalog

import "github.com/gear6io/lattice/pkg/errors"

// Catalog-specific error codes
var (
	ErrUnsupportedStoreType = errors.MustNewCode("catalog.unsupported_type")
)
