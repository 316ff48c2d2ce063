// Package mock provides test doubles for the catalog package interfaces.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
)

// Compile-time interface check.
var _ catalog.Provider = (*Provider)(nil)

// Provider is a configurable test double for [catalog.Provider]. It returns
// Entries for every user, or CatalogErr when non-nil, and counts calls.
type Provider struct {
	mu    sync.Mutex
	calls int

	// Entries is returned for every user.
	Entries []catalog.Entry

	// CatalogErr is returned by [Provider.Catalog] when non-nil.
	CatalogErr error
}

// Catalog implements [catalog.Provider].
func (p *Provider) Catalog(context.Context, string) ([]catalog.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.CatalogErr != nil {
		return nil, p.CatalogErr
	}
	return slices.Clone(p.Entries), nil
}

// CallCount returns how many times Catalog was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
