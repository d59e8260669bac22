// Package postgres provides the PostgreSQL document reader used to feed the
// search index, plus the S3 and Redis client constructors. The reader
// materializes full document snapshots (author, folder, tags, subjects) so
// callers never follow up with extra queries.
package postgres
