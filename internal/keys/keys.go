// Package keys derives deterministic record keys from (namespace, owner)
// pairs. Stores index records by derived key, and callers re-derive the key
// before trusting a fetched record — a record that does not match the key it
// was derived for is rejected rather than dereferenced blindly.
package keys

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/speedway/garage-engine/internal/garage"
	"github.com/speedway/garage-engine/internal/model"
)

// Record namespaces.
const (
	NamespaceGarage  = "garage"
	NamespaceLedger  = "ledger"
	NamespaceWallet  = "wallet"
	NamespaceRewards = "rewards"
)

// Derive returns the deterministic key for a namespaced owner record.
func Derive(namespace string, owner model.Identity) string {
	h := sha256.Sum256([]byte(namespace + ":" + string(owner)))
	return namespace + ":" + hex.EncodeToString(h[:16])
}

// Garage returns the record key for an owner's garage position.
func Garage(owner model.Identity) string {
	return Derive(NamespaceGarage, owner)
}

// Ledger returns the key of the singleton ledger record.
func Ledger() string {
	return Derive(NamespaceLedger, model.HouseIdentity)
}

// ValidateOwnership checks that a fetched position belongs to the owner its
// key was derived for. Mirrors the record-authority assertion done before
// any mutation.
func ValidateOwnership(p *model.Position, owner model.Identity) error {
	if p.Owner != owner {
		return garage.ErrNotAuthorized
	}
	return nil
}
