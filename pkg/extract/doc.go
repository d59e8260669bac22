// Package extract turns uploaded document blobs into plain text for
// indexing. A Parser is selected by file extension; the Extractor fetches
// the blob from object storage, runs the parser, and caps the output.
// Extraction is strictly best-effort: any failure yields empty text, never
// an error, so a bad file can not block indexing.
package extract
