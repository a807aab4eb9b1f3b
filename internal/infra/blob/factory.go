// Package blob selects a concrete blob store implementation.
package blob

import (
	"context"
	"fmt"
	"os"

	"blockcore/internal/infra/blob/core"
	"blockcore/internal/infra/blob/fs"
	"blockcore/internal/infra/blob/memory"
	"blockcore/internal/infra/blob/s3"
)

// Store re-exports the backend abstraction.
type Store = core.Store

// Driver re-exports the backend identifier.
type Driver = core.Driver

// Driver identifiers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Open selects a blob store implementation using environment variables.
//
//	BLOCKCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	BLOCKCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("BLOCKCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fs.New(os.Getenv("BLOCKCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
