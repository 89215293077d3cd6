package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeIdentity struct {
	mu        sync.Mutex
	passwords map[string]string
	ids       map[string]string
	current   string
	nextID    int
	lookups   int

	createErr  error
	signOutErr error
	emptyID    bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{passwords: map[string]string{}, ids: map[string]string{}}
}

var errEmailInUse = errors.New("The email address is already in use by another account.")
var errBadPassword = errors.New("The password is invalid or the user does not have a password.")

func (f *fakeIdentity) CreateAccount(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.emptyID {
		return "", nil
	}
	if _, ok := f.ids[email]; ok {
		return "", errEmailInUse
	}
	f.nextID++
	id := "acct-" + string(rune('0'+f.nextID))
	f.ids[email] = id
	f.passwords[email] = password
	f.current = id
	return id, nil
}

func (f *fakeIdentity) VerifyCredentials(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[email]
	if !ok || f.passwords[email] != password {
		return "", errBadPassword
	}
	f.current = id
	return id, nil
}

func (f *fakeIdentity) CurrentAccountID(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.current, nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.current = ""
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]ProfileDocument
	writeErr error
	readErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]ProfileDocument{}}
}

func (s *fakeStore) Write(_ context.Context, id string, doc ProfileDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.docs[id] = doc
	return nil
}

func (s *fakeStore) Read(_ context.Context, id string) (ProfileDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return ProfileDocument{}, s.readErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return ProfileDocument{}, ErrProfileNotFound
	}
	return doc, nil
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveAuth(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+outcome)
}

func janeRequest() SignUpRequest {
	return SignUpRequest{
		FirstName:         "Jane",
		LastName:          "Doe",
		Email:             "jane@x.io",
		PhoneNumber:       "5551234567",
		PreferredLanguage: "English",
		Password:          "secret1",
	}
}
