package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room for a
// future algorithm change.
const (
	DomainEvent    = "vidindex/event/v1"
	DomainSnapshot = "vidindex/snapshot/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data). The null byte keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventHash digests the canonical form of an event. Two deliveries at the
// same position are the same event iff their hashes match.
func EventHash(e Event) (string, error) {
	canonical, err := e.Canonical()
	if err != nil {
		return "", fmt.Errorf("EventHash: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// EventHashOf digests an already-canonical event encoding.
func EventHashOf(canonical []byte) string {
	return hashWithDomain(DomainEvent, canonical)
}

// SnapshotDigest digests a full store snapshot. Stores with equal digests
// hold field-for-field identical entities.
func SnapshotDigest(snapshot IRObject) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}
