package keys_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/speedway/garage-engine/internal/garage"
	"github.com/speedway/garage-engine/internal/keys"
	"github.com/speedway/garage-engine/internal/model"
)

func TestDeriveDeterministic(t *testing.T) {
	owner := model.Identity(strings.Repeat("ab", 32))

	a := keys.Garage(owner)
	b := keys.Garage(owner)
	if a != b {
		t.Fatalf("derivation not deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, keys.NamespaceGarage+":") {
		t.Fatalf("key %s missing namespace prefix", a)
	}
}

func TestDeriveSeparatesNamespaces(t *testing.T) {
	owner := model.Identity(strings.Repeat("ab", 32))

	seen := map[string]bool{}
	for _, ns := range []string{keys.NamespaceGarage, keys.NamespaceLedger, keys.NamespaceWallet, keys.NamespaceRewards} {
		k := keys.Derive(ns, owner)
		if seen[k] {
			t.Fatalf("namespace collision on %s", k)
		}
		seen[k] = true
	}
}

func TestDeriveSeparatesOwners(t *testing.T) {
	a := keys.Garage(model.Identity(strings.Repeat("ab", 32)))
	b := keys.Garage(model.Identity(strings.Repeat("cd", 32)))
	if a == b {
		t.Fatal("distinct owners derived the same key")
	}
}

func TestValidateOwnership(t *testing.T) {
	owner := model.Identity(strings.Repeat("ab", 32))
	other := model.Identity(strings.Repeat("cd", 32))
	p := &model.Position{Owner: owner}

	if err := keys.ValidateOwnership(p, owner); err != nil {
		t.Fatal(err)
	}
	if err := keys.ValidateOwnership(p, other); !errors.Is(err, garage.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}
