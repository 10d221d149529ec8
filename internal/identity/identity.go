package identity

import (
	"context"
	"errors"
	"time"
)

// --- Error Definitions ---
var (
	ErrEmailAlreadyInUse = errors.New("identity: email already in use")
	ErrNotFound          = errors.New("identity: credential not found")
	ErrBadCredentials    = errors.New("identity: invalid email or secret")
)

// Credential is the identity record paired with a profile record. The two are
// created and deleted together by the lifecycle coordinator; a credential
// without a profile (or the reverse) is a transient state, never one the
// system produces on purpose.
type Credential struct {
	UID       string    `bson:"_id" json:"uid"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Provider is the external identity provider contract. Email uniqueness here
// is the authoritative guard against duplicate accounts; the profile-side
// pre-checks are best-effort only.
type Provider interface {
	// CreateCredential registers a new credential and returns its UID.
	// Fails with ErrEmailAlreadyInUse on a duplicate email.
	CreateCredential(ctx context.Context, email, secret string) (string, error)

	// LookupByEmail resolves a credential. Fails with ErrNotFound.
	LookupByEmail(ctx context.Context, email string) (*Credential, error)

	// VerifySecret checks the secret for the given email. Fails with
	// ErrBadCredentials on a mismatch or unknown email.
	VerifySecret(ctx context.Context, email, secret string) (*Credential, error)

	// UpdateSecret replaces the credential's secret. Fails with ErrNotFound
	// if the credential no longer exists.
	UpdateSecret(ctx context.Context, uid, newSecret string) error

	// DeleteCredential removes the credential. Best-effort from the caller's
	// point of view; how a failure is classified is the caller's decision.
	DeleteCredential(ctx context.Context, uid string) error
}
