// Package assessment holds the read-only input records consumed by the
// analytics engine: exam summaries, per-class performance snapshots and
// per-student result histories, plus the institutional goals they are
// measured against.
//
// Records arrive already normalized from external collaborators (CRUD
// services, importers). The only rule enforced here is structural: every
// record must carry the identifiers downstream joins key on, and numbers must
// sit on their documented scales. Missing optional data is never an error.
package assessment
