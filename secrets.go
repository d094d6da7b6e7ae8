package telltale

// SecretService reads the public secrets feed and mutates a user's secret
// collection.
//
// Append and remove follow a load-mutate-save cycle; two requests mutating
// the same user concurrently are last-save-wins. Stores that can do better
// may implement SecretAppender to make appends atomic.
type SecretService struct {
	Store UserStore
}

// SecretAppender is an optional store upgrade: stores that can append a
// secret atomically (e.g. a Mongo $push) implement it and SecretService
// prefers it over load-mutate-save.
type SecretAppender interface {
	AppendSecret(userId string, text string) error
}

// ListPublicSecrets returns the (owner id, secrets) pairs for every user
// whose collection is non-empty. No credential or identity fields are
// included.
func (s *SecretService) ListPublicSecrets() ([]PublicSecrets, error) {
	users, err := s.Store.ListUsersWithSecrets()
	if err != nil {
		return nil, err
	}
	out := make([]PublicSecrets, 0, len(users))
	for _, u := range users {
		out = append(out, PublicSecrets{UserID: u.Id, Secrets: u.Secrets})
	}
	return out, nil
}

// AppendSecret appends text to the user's collection. Empty and duplicate
// texts are allowed; insertion order is preserved.
func (s *SecretService) AppendSecret(userId string, text string) error {
	if sa, ok := s.Store.(SecretAppender); ok {
		return sa.AppendSecret(userId, text)
	}

	user, err := s.Store.GetUserById(userId)
	if err != nil {
		return err
	}
	user.Secrets = append(user.Secrets, text)
	return s.Store.SaveUser(user)
}

// RemoveSecret removes the first exact occurrence of text from the user's
// collection. Returns ErrSecretNotFound if no occurrence exists.
func (s *SecretService) RemoveSecret(userId string, text string) error {
	user, err := s.Store.GetUserById(userId)
	if err != nil {
		return err
	}

	idx := -1
	for i, sec := range user.Secrets {
		if sec == text {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSecretNotFound
	}

	user.Secrets = append(user.Secrets[:idx], user.Secrets[idx+1:]...)
	return s.Store.SaveUser(user)
}
