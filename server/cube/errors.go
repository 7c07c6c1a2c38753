package cube

import "github.com/gear6io/lattice/pkg/errors"

// Cube model-specific error codes
var (
	ErrMalformedMetadata   = errors.MustNewCode("cube.malformed_metadata")
	ErrInvalidUpdatePeriod = errors.MustNewCode("cube.invalid_update_period")
	ErrInvalidTimestamp    = errors.MustNewCode("cube.invalid_timestamp")
	ErrInvalidReference    = errors.MustNewCode("cube.invalid_reference")
)
