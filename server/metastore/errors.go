package metastore

import "github.com/gear6io/lattice/pkg/errors"

// Metastore-specific error codes. Absence of a table or partition reuses the
// cattypes codes so callers classify not-found uniformly across layers.
var (
	// ErrWrongTableType flags an operation addressed at a table of the
	// wrong kind, like altering a fact as a cube.
	ErrWrongTableType = errors.MustNewCode("metastore.wrong_table_type")

	// ErrMarkerCorrupt flags a latest marker whose recorded parameters can
	// no longer be read back. Partition writes against the column fail
	// until the marker is repaired.
	ErrMarkerCorrupt = errors.MustNewCode("metastore.marker_corrupt")

	// ErrMissingTimePartition flags a partition write that carries no
	// timestamp for a time partition column the storage table declares.
	ErrMissingTimePartition = errors.MustNewCode("metastore.missing_time_partition")

	// ErrStorageMismatch flags a disagreement between an entity's tracked
	// storages and the storages an operation names.
	ErrStorageMismatch = errors.MustNewCode("metastore.storage_mismatch")

	// ErrEntityNameMismatch flags an alter whose new definition is named
	// differently from the entity being altered.
	ErrEntityNameMismatch = errors.MustNewCode("metastore.entity_name_mismatch")
)
