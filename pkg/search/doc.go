// Package search keeps a full-text index of published documents in sync
// with the primary store and answers ranked queries over it.
//
// The index is a denormalized projection: each SearchRecord flattens a
// document together with its author, folder, tags, and subjects, plus text
// extracted from the uploaded file. A record exists in the index exactly
// when the document is published and not soft-deleted.
//
// Writes flow through the Pipeline, either asynchronously (fire-and-forget
// per document) or synchronously in paged bulk runs. Index write failures
// are absorbed and logged; the primary store is never blocked by the index.
//
// Reads flow through the Service: multi-field ranked search with filters,
// sorting, pagination, and highlighting, plus title autocomplete and
// more-like-this similarity lookups. Query failures are surfaced.
package search
