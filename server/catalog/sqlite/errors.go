package sqlite

import "github.com/gear6io/lattice/pkg/errors"

// SQLite store-specific error codes
var (
	ErrDirectoryCreateFailed    = errors.MustNewCode("catalog_sqlite.directory_create_failed")
	ErrDatabaseOpenFailed       = errors.MustNewCode("catalog_sqlite.database_open_failed")
	ErrDatabaseCloseFailed      = errors.MustNewCode("catalog_sqlite.database_close_failed")
	ErrMigrationFailed          = errors.MustNewCode("catalog_sqlite.migration_failed")
	ErrSchemaVerificationFailed = errors.MustNewCode("catalog_sqlite.schema_verification_failed")
	ErrTransactionFailed        = errors.MustNewCode("catalog_sqlite.transaction_failed")
	ErrQueryFailed              = errors.MustNewCode("catalog_sqlite.query_failed")
	ErrEncodingFailed           = errors.MustNewCode("catalog_sqlite.encoding_failed")
)
