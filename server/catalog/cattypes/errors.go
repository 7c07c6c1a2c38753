package cattypes

import "github.com/gear6io/lattice/pkg/errors"

// Catalog-specific error codes shared by all backends
var (
	ErrTableNotFound        = errors.MustNewCode("catalog.table_not_found")
	ErrTableAlreadyExists   = errors.MustNewCode("catalog.table_already_exists")
	ErrPartitionNotFound    = errors.MustNewCode("catalog.partition_not_found")
	ErrInvalidPartitionSpec = errors.MustNewCode("catalog.invalid_partition_spec")
	ErrInvalidFilter        = errors.MustNewCode("catalog.invalid_filter")
	ErrOperationFailed      = errors.MustNewCode("catalog.operation_failed")
)
