// Package recipient resolves raw transaction recipient fields into a canonical
// recipient identity.
package recipient

import (
	"strings"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

// Identity is the resolved recipient of an award.
type Identity struct {
	Hash string
	Name string
	// FromLookup is true when a RecipientLookup row overrode the fallback.
	FromLookup bool
}

// Resolver resolves identities against an index of curated lookup rows.
// It is read-only after construction and safe for concurrent use.
type Resolver struct {
	byBusinessIdentifier map[string]domain.RecipientLookup
}

// NewResolver indexes lookups by business identifier. When several rows
// share a business identifier, the one with the smallest hash wins.
func NewResolver(lookups []domain.RecipientLookup) *Resolver {
	idx := make(map[string]domain.RecipientLookup, len(lookups))
	for _, l := range lookups {
		if !present(l.BusinessIdentifier) {
			continue
		}
		cur, ok := idx[l.BusinessIdentifier]
		if !ok || l.RecipientHash < cur.RecipientHash {
			idx[l.BusinessIdentifier] = l
		}
	}
	return &Resolver{byBusinessIdentifier: idx}
}

// Resolve returns the identity for an award's latest transaction. Both sides
// may be nil; with nothing to go on the result is the unknown bucket.
func (r *Resolver) Resolve(procurement, assistance *domain.TransactionRecipient) Identity {
	f := Coalesce(procurement, assistance)

	if present(f.BusinessIdentifier) {
		if l, ok := r.byBusinessIdentifier[f.BusinessIdentifier]; ok {
			return Identity{Hash: l.RecipientHash, Name: l.LegalBusinessName, FromLookup: true}
		}
	}

	return Identity{
		Hash: Hash(f),
		Name: strings.ToUpper(f.LegalName),
	}
}
