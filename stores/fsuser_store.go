package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	tt "github.com/telltale-app/telltale"
)

// fsUser is the on-disk shape of a user record.
type fsUser struct {
	UserId       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	Secrets      []string  `json:"secrets"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *fsUser) toUser() *tt.User {
	return &tt.User{
		Id:           u.UserId,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		Secrets:      u.Secrets,
	}
}

// FSUserStore stores users as JSON files, one file per user. It is meant
// for development and tests; the mutex makes find-or-create and uniqueness
// checks safe within a single process.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUserPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) GetUserById(userId string) (*tt.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUser(userId)
}

func (s *FSUserStore) GetUserByUsername(username string) (*tt.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.findUser(func(u *fsUser) bool { return u.Username == username })
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, tt.ErrUserNotFound
	}
	return user.toUser(), nil
}

func (s *FSUserStore) EnsureGoogleUser(googleId string) (*tt.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.findUser(func(u *fsUser) bool { return u.GoogleID == googleId })
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user.toUser(), nil
	}

	now := time.Now()
	created := &fsUser{
		UserId:    uuid.NewString(),
		GoogleID:  googleId,
		Secrets:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeUser(created); err != nil {
		return nil, err
	}
	return created.toUser(), nil
}

func (s *FSUserStore) CreateLocalUser(username string, passwordHash string) (*tt.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.findUser(func(u *fsUser) bool { return u.Username == username })
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, tt.ErrDuplicateUsername
	}

	now := time.Now()
	created := &fsUser{
		UserId:       uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Secrets:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.writeUser(created); err != nil {
		return nil, err
	}
	return created.toUser(), nil
}

func (s *FSUserStore) SaveUser(user *tt.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.getUserPath(user.Id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tt.ErrUserNotFound
		}
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	var existing fsUser
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	existing.Username = user.Username
	existing.PasswordHash = user.PasswordHash
	existing.GoogleID = user.GoogleID
	existing.Secrets = user.Secrets
	existing.UpdatedAt = time.Now()
	return s.writeUser(&existing)
}

func (s *FSUserStore) ListUsersWithSecrets() ([]*tt.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*tt.User
	err := s.eachUser(func(u *fsUser) bool {
		if len(u.Secrets) > 0 {
			out = append(out, u.toUser())
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FSUserStore) readUser(userId string) (*tt.User, error) {
	data, err := os.ReadFile(s.getUserPath(userId))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tt.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	var user fsUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return user.toUser(), nil
}

func (s *FSUserStore) writeUser(user *fsUser) error {
	path := s.getUserPath(user.UserId)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return nil
}

// findUser returns the first user matching the predicate, or nil.
func (s *FSUserStore) findUser(match func(*fsUser) bool) (*fsUser, error) {
	var found *fsUser
	err := s.eachUser(func(u *fsUser) bool {
		if match(u) {
			found = u
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// eachUser scans every user file; the visit callback returns true to stop.
func (s *FSUserStore) eachUser(visit func(*fsUser) bool) error {
	dir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
		}
		var user fsUser
		if err := json.Unmarshal(data, &user); err != nil {
			return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
		}
		if visit(&user) {
			return nil
		}
	}
	return nil
}
