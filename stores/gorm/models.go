package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	tt "github.com/telltale-app/telltale"
)

// StringSlice is a helper type for storing string slices in GORM
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// UserModel is the GORM model for users
type UserModel struct {
	ID           string      `gorm:"primaryKey;size:64"`
	Username     *string     `gorm:"uniqueIndex;size:255"`
	PasswordHash string      `gorm:"size:128"`
	GoogleID     *string     `gorm:"uniqueIndex;size:255"`
	Secrets      StringSlice `gorm:"type:text"`
	CreatedAt    time.Time   `gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *tt.User {
	user := &tt.User{
		Id:           m.ID,
		PasswordHash: m.PasswordHash,
		Secrets:      m.Secrets,
	}
	if m.Username != nil {
		user.Username = *m.Username
	}
	if m.GoogleID != nil {
		user.GoogleID = *m.GoogleID
	}
	return user
}

func UserToModel(u *tt.User) *UserModel {
	model := &UserModel{
		ID:           u.Id,
		PasswordHash: u.PasswordHash,
		Secrets:      StringSlice(u.Secrets),
	}
	// Unique indexes must not collide on empty strings, so absent
	// usernames and google ids are stored as NULL.
	if u.Username != "" {
		model.Username = &u.Username
	}
	if u.GoogleID != "" {
		model.GoogleID = &u.GoogleID
	}
	return model
}
