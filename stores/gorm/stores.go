package gorm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	tt "github.com/telltale-app/telltale"
)

// AutoMigrate runs database migrations for all telltale tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements tt.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	if db == nil {
		panic("gorm.NewUserStore: db cannot be nil")
	}
	return &UserStore{db: db}
}

func (s *UserStore) GetUserById(userId string) (*tt.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tt.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(username string) (*tt.User, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tt.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return model.ToUser(), nil
}

// EnsureGoogleUser finds or creates the user for a Google account. A create
// that races another callback for the same account loses to the unique
// index and falls back to the lookup.
func (s *UserStore) EnsureGoogleUser(googleId string) (*tt.User, error) {
	var model UserModel
	err := s.db.First(&model, "google_id = ?", googleId).Error
	if err == nil {
		return model.ToUser(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	model = UserModel{
		ID:       uuid.NewString(),
		GoogleID: &googleId,
		Secrets:  StringSlice{},
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing UserModel
			if err := s.db.First(&existing, "google_id = ?", googleId).Error; err != nil {
				return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
			}
			return existing.ToUser(), nil
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) CreateLocalUser(username string, passwordHash string) (*tt.User, error) {
	model := UserModel{
		ID:           uuid.NewString(),
		Username:     &username,
		PasswordHash: passwordHash,
		Secrets:      StringSlice{},
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, tt.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) SaveUser(user *tt.User) error {
	model := UserToModel(user)
	res := s.db.Model(&UserModel{}).Where("id = ?", user.Id).Updates(map[string]any{
		"username":      model.Username,
		"password_hash": model.PasswordHash,
		"google_id":     model.GoogleID,
		"secrets":       model.Secrets,
	})
	if res.Error != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return tt.ErrUserNotFound
	}
	return nil
}

// ListUsersWithSecrets returns users whose secret list is non-empty.
// Secrets are stored as a JSON blob so the filter runs in Go rather
// than in SQL.
func (s *UserStore) ListUsersWithSecrets() ([]*tt.User, error) {
	var models []UserModel
	if err := s.db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}

	var out []*tt.User
	for i := range models {
		if len(models[i].Secrets) > 0 {
			out = append(out, models[i].ToUser())
		}
	}
	return out, nil
}
