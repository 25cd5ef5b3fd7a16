package analytics

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// fingerprintVersion changes whenever the engine's formulas change, so
// reports cached by an older build are never served.
const fingerprintVersion = "v1"

type fingerprintPayload struct {
	Version  string                        `json:"version"`
	Snapshot assessment.Snapshot           `json:"snapshot"`
	Goals    assessment.InstitutionalGoals `json:"goals"`
	Policy   Policy                        `json:"policy"`
}

// Fingerprint returns a content hash of everything a report depends on.
// Equal inputs give equal fingerprints regardless of object identity, which
// makes it the memoization key for callers that cache reports.
//
// encoding/json writes map keys in sorted order, so the canonical form does
// not depend on map iteration order. Record order within slices is
// significant because it drives tie-breaking.
func Fingerprint(snapshot assessment.Snapshot, goals assessment.InstitutionalGoals, policy Policy) (string, error) {
	data, err := json.Marshal(fingerprintPayload{
		Version:  fingerprintVersion,
		Snapshot: snapshot,
		Goals:    goals,
		Policy:   policy.withDefaults(),
	})
	if err != nil {
		return "", shared.WrapError("analytics", "Fingerprint", shared.ErrInvalidInput, "cannot encode snapshot", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
