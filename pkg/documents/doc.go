// Package documents defines the document aggregate as read from the primary
// store: the Snapshot carries everything the search index needs for one
// document (author, folder, tags, subjects) so indexing never goes back to
// the database mid-flight.
package documents
