package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory UserStore for exercising the auth core without
// a database.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*User
	nextID int

	// failWith, when set, makes every call fail with this error.
	failWith error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*User)}
}

func (m *memStore) find(match func(*User) bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindByID(ctx context.Context, id string) (*User, error) {
	return m.find(func(u *User) bool { return u.ID == id })
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *memStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return m.find(func(u *User) bool { return u.Username == username })
}

func (m *memStore) FindByProviderSubject(ctx context.Context, subject string) (*User, error) {
	return m.find(func(u *User) bool { return u.ProviderSubject != "" && u.ProviderSubject == subject })
}

func (m *memStore) FindByResetTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	return m.find(func(u *User) bool { return u.ResetTokenHash != "" && u.ResetTokenHash == tokenHash })
}

func (m *memStore) Create(ctx context.Context, fields NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Email == fields.Email {
			return nil, ErrDuplicateEmail
		}
		if u.Username == fields.Username {
			return nil, ErrDuplicateUsername
		}
	}
	m.nextID++
	now := time.Now()
	u := &User{
		ID:              fmt.Sprintf("user-%d", m.nextID),
		Username:        fields.Username,
		Email:           fields.Email,
		Role:            fields.Role,
		Kind:            fields.Kind,
		PasswordHash:    fields.PasswordHash,
		ProviderSubject: fields.ProviderSubject,
		ProfileImageURL: fields.ProfileImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.users[u.ID] = u
	c := *u
	return &c, nil
}

func (m *memStore) update(userID string, apply func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	apply(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	return m.update(userID, func(u *User) { u.PasswordHash = passwordHash })
}

func (m *memStore) UpdateResetTicket(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	return m.update(userID, func(u *User) {
		u.ResetTokenHash = tokenHash
		u.ResetExpiresAt = &expiresAt
	})
}

func (m *memStore) ClearResetTicket(ctx context.Context, userID string) error {
	return m.update(userID, func(u *User) {
		u.ResetTokenHash = ""
		u.ResetExpiresAt = nil
	})
}

// get returns the stored record, unguarded by the copy semantics of the
// lookup methods.
func (m *memStore) get(userID string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID]
}

// fakeNotifier records sent messages and can be set to fail.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith error
}

type sentMessage struct {
	to      string
	subject string
	body    string
}

func (n *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.sent = append(n.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}
