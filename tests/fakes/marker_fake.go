package fakes

import (
	"sync"

	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// FakeMarker is an in-memory last-tenant marker.
type FakeMarker struct {
	tenant  string
	readErr error
	mu      sync.Mutex
}

// NewFakeMarker creates a marker pre-set to the given tenant. Empty means
// no marker yet.
func NewFakeMarker(tenant string) *FakeMarker {
	return &FakeMarker{tenant: tenant}
}

// WithReadError makes LastTenant fail with err.
func (f *FakeMarker) WithReadError(err error) *FakeMarker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
	return f
}

func (f *FakeMarker) LastTenant() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.tenant, nil
}

func (f *FakeMarker) SetLastTenant(tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenant = tenantID
	return nil
}

var _ tier.Marker = (*FakeMarker)(nil)
