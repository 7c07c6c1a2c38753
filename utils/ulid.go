package utils

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

var entropyLock sync.Mutex

// GenerateULID generates a new ULID with mutex protection so that concurrent
// callers never observe a duplicate.
func GenerateULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.Make()
}

// GenerateOperationID returns a ULID string used to correlate the log lines
// of a single metastore mutation.
func GenerateOperationID() string {
	return GenerateULID().String()
}

// ParseULID parses a ULID string
func ParseULID(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}
