package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainState    = "doccore/state/v1"
	DomainDocument = "doccore/document/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash fingerprints an essential-state snapshot.
// Two snapshots with the same records hash equal regardless of map order.
func StateHash(records Object) (string, error) {
	canonical, err := MarshalCanonical(records)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// DocumentHash fingerprints a flat document so stored state can be matched
// against the source it was captured from.
func DocumentHash(doc *FlatDocument) (string, error) {
	canonical, err := MarshalCanonical(doc.ToValue())
	if err != nil {
		return "", fmt.Errorf("DocumentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(records Object) string {
	h, err := StateHash(records)
	if err != nil {
		panic(err)
	}
	return h
}
