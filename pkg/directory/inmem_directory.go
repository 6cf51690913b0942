package directory

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/verifid/verifid/pkg/utils"
)

type inMemAccount struct {
	profile        Profile
	hashedPassword string
}

// InMemDirectory is an in-memory account store for tests and demos.
type InMemDirectory struct {
	mu       sync.RWMutex
	byEmail  map[string]*inMemAccount
	byUserID map[string]*inMemAccount
}

func NewInMemDirectory() *InMemDirectory {
	return &InMemDirectory{
		byEmail:  make(map[string]*inMemAccount),
		byUserID: make(map[string]*inMemAccount),
	}
}

// AddAccount registers an account with a plaintext password, hashing it the
// same way the production store does.
func (d *InMemDirectory) AddAccount(profile Profile, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	profile.Email = utils.NormalizeSubject(profile.Email)
	account := &inMemAccount{profile: profile, hashedPassword: string(hashed)}
	d.byEmail[profile.Email] = account
	d.byUserID[profile.UserID] = account
	return nil
}

func (d *InMemDirectory) VerifyCredentials(ctx context.Context, email, password string) (Profile, error) {
	d.mu.RLock()
	account, ok := d.byEmail[utils.NormalizeSubject(email)]
	d.mu.RUnlock()
	if !ok {
		return Profile{}, ErrCredentialsInvalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.hashedPassword), []byte(password)); err != nil {
		return Profile{}, ErrCredentialsInvalid
	}
	return account.profile, nil
}

func (d *InMemDirectory) GetProfile(ctx context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	account, ok := d.byUserID[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return account.profile, nil
}
