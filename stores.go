package telltale

// User represents one account. Exactly one authentication path resolves it:
// Username+PasswordHash for local accounts, GoogleID for Google accounts.
// Secrets is an ordered collection; insertion order is preserved and
// duplicates are allowed.
type User struct {
	Id           string
	Username     string
	PasswordHash string
	GoogleID     string
	Secrets      []string
}

// IsLocal reports whether this user can log in with a username and password.
func (u *User) IsLocal() bool { return u.Username != "" && u.PasswordHash != "" }

// PublicSecrets is the projection of a user used on the public secrets page.
// Only the owner's id and secret texts are exposed; username, password hash
// and external ids never leave the store through this type.
type PublicSecrets struct {
	UserID  string   `json:"user_id"`
	Secrets []string `json:"secrets"`
}

// UserStore manages user accounts.
//
// Implementations exist for MongoDB (stores/mongo), GORM (stores/gorm) and
// JSON files (stores, for development and tests). Lookups return
// ErrUserNotFound when no record matches; infrastructure failures are
// wrapped in ErrStoreUnavailable.
type UserStore interface {
	// GetUserById retrieves a user by its store-assigned id.
	GetUserById(userId string) (*User, error)

	// GetUserByUsername retrieves a local user by username.
	GetUserByUsername(username string) (*User, error)

	// EnsureGoogleUser returns the user bound to the given Google account
	// id, creating one (with empty secrets) on first login. Concurrent
	// calls with the same id must yield a single user.
	EnsureGoogleUser(googleId string) (*User, error)

	// CreateLocalUser creates a local account with the given password hash.
	// Returns ErrDuplicateUsername if the username is taken. The store only
	// ever sees the hash; hashing happens in LocalAuth.
	CreateLocalUser(username string, passwordHash string) (*User, error)

	// SaveUser persists mutations to an existing user.
	SaveUser(user *User) error

	// ListUsersWithSecrets returns all users whose secret collection is
	// non-empty, in store-defined order. Callers must not rely on the order.
	ListUsersWithSecrets() ([]*User, error)
}
