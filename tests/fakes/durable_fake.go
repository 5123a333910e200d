// Package fakes provides manual fake implementations for testing.
//
// Fakes are test doubles that have working implementations but take shortcuts
// compared to production code. They store records in memory and can be
// configured to fail or stall, which makes the degraded-durable paths of the
// resolver and writer testable without a real backend.
package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/durable"
)

// FakeDurable is an in-memory implementation of durable.Store.
//
// Example usage:
//
//	store := fakes.NewFakeDurable().
//	    WithRecord(set).
//	    WithGetError(errors.New("connection refused"))
type FakeDurable struct {
	records map[string]credential.CredentialSet

	// Behavior control
	getErr    error
	upsertErr error
	pingErr   error
	delay     time.Duration

	// Call tracking
	calls map[string]int

	mu sync.Mutex
}

// NewFakeDurable creates an empty fake durable store.
func NewFakeDurable() *FakeDurable {
	return &FakeDurable{
		records: make(map[string]credential.CredentialSet),
		calls:   make(map[string]int),
	}
}

// WithRecord seeds a record keyed by its own (owner, tenant) pair.
func (f *FakeDurable) WithRecord(set credential.CredentialSet) *FakeDurable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[set.Key().String()] = set
	return f
}

// WithGetError makes every Get fail with err.
func (f *FakeDurable) WithGetError(err error) *FakeDurable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
	return f
}

// WithUpsertError makes every Upsert fail with err.
func (f *FakeDurable) WithUpsertError(err error) *FakeDurable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
	return f
}

// WithPingError makes Ping fail with err.
func (f *FakeDurable) WithPingError(err error) *FakeDurable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
	return f
}

// WithDelay makes every call block for d before answering, so timeout
// behavior can be exercised.
func (f *FakeDurable) WithDelay(d time.Duration) *FakeDurable {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

func (f *FakeDurable) Name() string { return "fake" }

func (f *FakeDurable) Get(ctx context.Context, key credential.Key) (credential.CredentialSet, error) {
	f.mu.Lock()
	f.calls["Get"]++
	delay, err := f.delay, f.getErr
	set, ok := f.records[key.String()]
	f.mu.Unlock()

	if waitErr := wait(ctx, delay); waitErr != nil {
		return credential.CredentialSet{}, waitErr
	}
	if err != nil {
		return credential.CredentialSet{}, err
	}
	if !ok {
		return credential.CredentialSet{}, durable.ErrNotFound
	}
	return set, nil
}

func (f *FakeDurable) Upsert(ctx context.Context, set credential.CredentialSet) error {
	f.mu.Lock()
	f.calls["Upsert"]++
	delay, err := f.delay, f.upsertErr
	f.mu.Unlock()

	if waitErr := wait(ctx, delay); waitErr != nil {
		return waitErr
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.records[set.Key().String()] = set
	f.mu.Unlock()
	return nil
}

func (f *FakeDurable) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.calls["Ping"]++
	err := f.pingErr
	f.mu.Unlock()
	return err
}

// Record returns the stored record for the key, if any.
func (f *FakeDurable) Record(key credential.Key) (credential.CredentialSet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.records[key.String()]
	return set, ok
}

// CallCount returns how many times the named method was invoked.
func (f *FakeDurable) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ durable.Store = (*FakeDurable)(nil)
