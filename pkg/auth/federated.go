package auth

import (
	"context"
	"errors"
	"fmt"
)

// FederatedProfile is the normalized fact set returned by an external
// identity provider: facts only, no decisions.
type FederatedProfile struct {
	Subject    string // provider-scoped unique user identifier
	Email      string
	Name       string
	PictureURL string
}

// FederatedIdentityLinker reconciles a provider profile with a local user
// record, creating one on first login. It is the single path that creates
// users outside explicit signup.
type FederatedIdentityLinker struct {
	store UserStore
}

// NewFederatedIdentityLinker creates a linker over the given store.
func NewFederatedIdentityLinker(store UserStore) *FederatedIdentityLinker {
	return &FederatedIdentityLinker{store: store}
}

// LinkOrCreate resolves the profile to a user. An existing federated user
// with the same provider subject is returned unchanged. If the profile's
// email belongs to a local password account the login fails
// ErrEmailAlreadyLocal: merging a federated login onto a password account
// would let a spoofed provider profile take the account over. Otherwise a
// new federated user is created with the default role.
func (fl *FederatedIdentityLinker) LinkOrCreate(ctx context.Context, profile FederatedProfile) (*User, error) {
	if profile.Subject == "" {
		return nil, errors.New("federated profile has no subject")
	}
	if profile.Email == "" {
		return nil, errors.New("federated profile has no email")
	}

	existing, err := fl.store.FindByProviderSubject(ctx, profile.Subject)
	if err == nil {
		return existing.Sanitized(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up provider subject: %w", err)
	}

	email := NormalizeEmail(profile.Email)
	byEmail, err := fl.store.FindByEmail(ctx, email)
	if err == nil {
		if byEmail.Kind == KindLocal {
			return nil, ErrEmailAlreadyLocal
		}
		// Same email, federated, different subject. Provider subjects are
		// stable, so this is a distinct conflicting account, not ours to
		// relink.
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	created, err := fl.store.Create(ctx, NewUser{
		Username:        profile.Name,
		Email:           email,
		Role:            RoleUser,
		Kind:            KindFederated,
		ProviderSubject: profile.Subject,
		ProfileImageURL: profile.PictureURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create federated user: %w", err)
	}

	return created.Sanitized(), nil
}
