package inspirehub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// State is the authentication state of a [Session].
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session owns the active credential. All reads and writes of the
// credential go through its methods; the gateway only reads the access
// token.
type Session struct {
	// mu guards cred and serializes writes to store so memory and disk
	// never disagree about which credential is active.
	mu   sync.RWMutex
	cred *Credential

	store     CredentialStore
	refresher Refresher
	renewals  singleflight.Group

	log logrus.FieldLogger
}

// NewSession creates an anonymous session backed by store. The
// refresher is used by [Session.Renew].
func NewSession(store CredentialStore, refresher Refresher, log logrus.FieldLogger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return newSession(store, refresher, log)
}

func newSession(store CredentialStore, refresher Refresher, log logrus.FieldLogger) *Session {
	return &Session{
		store:     store,
		refresher: refresher,
		log:       log.WithField("component", "session"),
	}
}

// Restore loads the persisted credential and activates it. It returns
// nil without error when nothing is stored or the record is malformed.
func (s *Session) Restore(ctx context.Context) (*Credential, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}
	if !cred.Valid() {
		s.log.Warn("Ignoring malformed stored credential")
		return nil, nil
	}

	active := *cred

	s.mu.Lock()
	s.cred = &active
	s.mu.Unlock()

	s.log.WithField("subject", cred.SubjectID).Info("Session restored")

	return cred, nil
}

// Set replaces the active credential in memory and in the store.
// The previous credential stays active if persisting fails.
func (s *Session) Set(ctx context.Context, cred Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("%w: credential needs a subject id and an access token", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.cred = &cred

	s.log.WithField("subject", cred.SubjectID).Info("Session started")

	return nil
}

// Clear drops the active credential from memory and the store.
// Clearing an anonymous session is a no-op apart from the store delete.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != nil {
		s.log.WithField("subject", s.cred.SubjectID).Info("Session cleared")
	}
	s.cred = nil

	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

// Renew exchanges the refresh token for a new access token, stores it
// and returns it. The refresh token is kept. Any failure to renew, be it
// a missing or rejected refresh token or an unreachable backend, clears
// the session and yields an error matching [ErrSessionEnded]. An
// anonymous session fails with [ErrNotAuthenticated].
func (s *Session) Renew(ctx context.Context) (string, error) {
	return s.renew(ctx, "")
}

// renew coalesces concurrent renewals into a single refresh call. When
// stale is set and the active access token already differs from it,
// another caller has renewed in the meantime and the current token is
// returned without contacting the backend.
func (s *Session) renew(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()

	if cred == nil {
		return "", ErrNotAuthenticated
	}
	if stale != "" && cred.AccessToken != stale {
		return cred.AccessToken, nil
	}

	ch := s.renewals.DoChan("renew", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) refresh(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()

	if cred == nil {
		return "", ErrNotAuthenticated
	}
	if stale != "" && cred.AccessToken != stale {
		return cred.AccessToken, nil
	}

	log := s.log.WithField("subject", cred.SubjectID)

	if cred.RefreshToken == "" || s.refresher == nil {
		return "", s.end(ctx, ErrNoRefreshToken)
	}

	log.Debug("Renewing access token")

	token, err := s.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			log.WithError(err).Warn("Refresh token rejected, ending session")
		} else {
			log.WithError(err).Warn("Access token renewal failed, ending session")
		}
		return "", s.end(ctx, fmt.Errorf("renew access token: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cred == nil:
		return "", fmt.Errorf("%w: logged out during renewal", ErrSessionEnded)
	case s.cred.RefreshToken != cred.RefreshToken:
		// A new login replaced the credential while refreshing.
		return s.cred.AccessToken, nil
	}

	next := *s.cred
	next.AccessToken = token
	s.cred = &next

	if err := s.store.Save(ctx, next); err != nil {
		log.WithError(err).Warn("Renewed access token was not persisted")
	}

	log.Debug("Access token renewed")

	return token, nil
}

// end clears the session after a failed renewal.
func (s *Session) end(ctx context.Context, cause error) error {
	if err := s.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to clear ended session")
	}
	return fmt.Errorf("%w: %w", ErrSessionEnded, cause)
}

// update applies fn to a copy of the active credential and stores it.
func (s *Session) update(ctx context.Context, fn func(*Credential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		return ErrNotAuthenticated
	}

	next := *s.cred
	fn(&next)

	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.cred = &next

	return nil
}

// State reports whether a credential is active.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return StateAnonymous
	}
	return StateAuthenticated
}

// AccessToken returns the active access token, or "" when anonymous.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return ""
	}
	return s.cred.AccessToken
}

// Credential returns a copy of the active credential.
func (s *Session) Credential() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}
