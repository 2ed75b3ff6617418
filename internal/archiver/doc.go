// Package archiver holds the filing archive pipeline: the shared domain types, the
// per-document archive step (download then upload), and the Runner that ties state,
// listing discovery, and archiving together for a single pass.
package archiver
