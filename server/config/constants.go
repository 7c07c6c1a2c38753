package config

// Network server port constants
// These ports avoid the defaults of the warehouse tools this server is
// usually deployed next to.
const (
	// HTTP Server Port - REST admin API
	// Selected to avoid Hive metastore (9083), HiveServer2 (10000),
	// Trino/Presto (8080) and common development ports like 3000, 5000
	HTTP_SERVER_PORT = 3871
)

// Network server address constants
const (
	// Default bind address for all servers
	DEFAULT_SERVER_ADDRESS = "0.0.0.0"

	// Localhost address for development
	LOCALHOST_ADDRESS = "127.0.0.1"
)
