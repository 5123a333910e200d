package credstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sugarbait/phaeton-credsync/internal/cipher"
	"github.com/sugarbait/phaeton-credsync/internal/credential"
	"github.com/sugarbait/phaeton-credsync/internal/durable"
	cserrors "github.com/sugarbait/phaeton-credsync/internal/errors"
	"github.com/sugarbait/phaeton-credsync/internal/logging"
	"github.com/sugarbait/phaeton-credsync/internal/tier"
)

// OnSaved is notified after a save has finished, whether it reached the
// durable store or only the caches. Observers must not block; they run on
// the saving goroutine.
type OnSaved func(key credential.Key, result credential.SaveResult)

// Writer persists credential records. Every save is a whole-record
// replacement: the durable store is written first (secret key encrypted),
// then every cache tier gets the plaintext working copy. A durable failure
// degrades the save to caches-only instead of failing it, and the result
// reports exactly how far the record got.
type Writer struct {
	store        durable.Store
	cipher       cipher.Cipher
	tiers        []tier.Tier
	activeTenant string
	timeout      time.Duration
	logger       *logging.Logger
	metrics      *Metrics

	mu        sync.Mutex
	observers []OnSaved
}

// NewWriter creates a writer bound to the active tenant. Saves for any
// other tenant are rejected.
func NewWriter(store durable.Store, ciph cipher.Cipher, tiers []tier.Tier, activeTenant string, timeout time.Duration, logger *logging.Logger) *Writer {
	return &Writer{
		store:        store,
		cipher:       ciph,
		tiers:        tiers,
		activeTenant: activeTenant,
		timeout:      timeout,
		logger:       logger,
		metrics:      NewMetrics(),
	}
}

// OnSaved registers an observer for completed saves.
func (w *Writer) OnSaved(fn OnSaved) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Save validates, encrypts and persists a credential record for the key.
// The returned SaveResult is meaningful even when err is nil but the
// durable store was unreachable: DurablyPersisted false with
// LocallyPersisted true is the caches-only outcome the caller must surface
// to the user. An error is returned only when the input is invalid or the
// record could not be persisted anywhere.
func (w *Writer) Save(ctx context.Context, key credential.Key, input credential.SaveInput) (credential.SaveResult, error) {
	if err := w.validate(key, input); err != nil {
		w.metrics.RecordSave("rejected")
		return credential.SaveResult{}, err
	}

	now := time.Now().UTC()
	set := credential.CredentialSet{
		OwnerID:          key.OwnerID,
		TenantID:         key.TenantID,
		SecretKey:        input.SecretKey,
		PrimaryAgentID:   input.PrimaryAgentID,
		SecondaryAgentID: input.SecondaryAgentID,
		UpdatedAt:        now,
	}

	result := credential.SaveResult{UpdatedAt: now}

	// Encryption gates only the durable write. The cache tiers hold the
	// plaintext working copy either way, so an encrypt failure degrades
	// the save to caches-only instead of losing the record.
	envelope, err := w.cipher.Encrypt(ctx, input.SecretKey)
	if err != nil {
		w.metrics.RecordDurableError(w.store.Name(), "encrypt")
		// Cipher errors can echo their input, so scrub the secret before
		// the message reaches a log line.
		w.logger.Warn("Failed to encrypt the secret key, skipping the durable store: %s",
			logging.Redact(err.Error(), []string{input.SecretKey}))
		result.Warnings = append(result.Warnings, "could not encrypt the secret key; the durable store was not updated")
	} else {
		result.DurablyPersisted = w.saveDurable(ctx, set, envelope)
	}

	cached := 0
	for _, t := range w.tiers {
		if err := t.Set(set); err != nil {
			w.logger.Warn("Failed to cache credentials in %s tier: %v", t.Name(), err)
			result.Warnings = append(result.Warnings, "could not update the "+t.Name()+" cache")
			continue
		}
		if t.Name() == "local" {
			result.LocallyPersisted = true
		}
		cached++
	}

	if !result.DurablyPersisted && cached == 0 {
		w.metrics.RecordSave("failed")
		return credential.SaveResult{UpdatedAt: now}, cserrors.UserError{
			Message:    "Failed to save credentials",
			Details:    "Neither the durable store nor any cache tier accepted the record",
			Suggestion: "Run 'credsync doctor' to check store connectivity, then try again",
		}
	}

	outcome := "saved"
	if !result.DurablyPersisted {
		outcome = "partial"
		result.Warnings = append(result.Warnings,
			"credentials were saved on this device only; they will not sync to other devices until the durable store is reachable again")
	}
	w.metrics.RecordSave(outcome)

	w.logger.Debug("Saved credentials for %s (durable=%t, local=%t, secret=%s)",
		key, result.DurablyPersisted, result.LocallyPersisted, logging.Secret(input.SecretKey))
	w.notify(key, result)
	return result, nil
}

func (w *Writer) validate(key credential.Key, input credential.SaveInput) error {
	if err := key.Validate(); err != nil {
		return cserrors.ValidationError{
			Field:      "key",
			Message:    err.Error(),
			Suggestion: "Provide both an owner id and a tenant id",
		}
	}
	if key.TenantID != w.activeTenant {
		return cserrors.ValidationError{
			Field:      "tenantId",
			Message:    "record tenant does not match the active tenant",
			Suggestion: "Sign in to the tenant you are saving credentials for, or fix tenant: in your credsync.yaml",
		}
	}
	if strings.TrimSpace(input.SecretKey) == "" {
		return cserrors.ValidationError{
			Field:      "secretKey",
			Message:    "secret key is required",
			Suggestion: "Paste the API secret key issued for this owner",
		}
	}
	if input.LoginPassword != "" && input.SecretKey == input.LoginPassword {
		return cserrors.ValidationError{
			Field:      "secretKey",
			Message:    "secret key matches the login password",
			Suggestion: "The login password is not an API secret key. Paste the secret key issued for this owner instead",
		}
	}
	return nil
}

// saveDurable writes the encrypted record to the durable store, reporting
// success. Failures are logged and counted, never fatal.
func (w *Writer) saveDurable(ctx context.Context, set credential.CredentialSet, envelope string) bool {
	encrypted := set
	encrypted.SecretKey = envelope

	callCtx, cancel := withDurableTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := w.store.Upsert(callCtx, encrypted)
	w.metrics.RecordDurableDuration(w.store.Name(), "upsert", time.Since(start).Seconds())
	if err != nil {
		w.metrics.RecordDurableError(w.store.Name(), "upsert")
		if cserrors.IsRetryable(err) {
			w.logger.Warn("Durable store write failed (transient), keeping caches-only copy until the next save: %v", wrapDurableTimeout(err, w.store.Name(), w.timeout))
		} else {
			w.logger.Warn("Durable store write failed, keeping caches-only copy: %v", wrapDurableTimeout(err, w.store.Name(), w.timeout))
		}
		return false
	}
	return true
}

func (w *Writer) notify(key credential.Key, result credential.SaveResult) {
	w.mu.Lock()
	observers := make([]OnSaved, len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()

	for _, fn := range observers {
		fn(key, result)
	}
}
