// Package storage holds shared configuration for the backing stores: the
// PostgreSQL primary store, S3-compatible object storage for uploaded
// files, and Redis for caching. Concrete clients live in the postgres
// subpackage.
package storage
