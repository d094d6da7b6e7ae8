// Package mongo implements the telltale user store on MongoDB.
//
// Each user is a single document in the users collection. Secret appends
// use $push so concurrent submissions from the same account cannot drop
// each other; everything else is document-level replace, last save wins.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	tt "github.com/telltale-app/telltale"
)

const (
	// DefaultDBName is the database used when none is given.
	DefaultDBName = "userDB"

	// usersCollName is the collection holding user documents.
	usersCollName = "users"

	// opTimeout bounds each individual database operation.
	opTimeout = 5 * time.Second
)

// userDoc is the MongoDB document shape of a user.
type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username,omitempty"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	GoogleID     string             `bson:"google_id,omitempty"`
	Secrets      []string           `bson:"secrets"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d *userDoc) toUser() *tt.User {
	return &tt.User{
		Id:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		GoogleID:     d.GoogleID,
		Secrets:      d.Secrets,
	}
}

// UserStore is a tt.UserStore backed by a MongoDB collection.
// It also implements tt.SecretAppender.
type UserStore struct {
	users *mongo.Collection
}

// NewUserStore returns a store using the given client and database.
// dbName may be empty, in which case DefaultDBName is used.
// Panics if client is nil.
func NewUserStore(client *mongo.Client, dbName string) *UserStore {
	if client == nil {
		panic("mongo.NewUserStore: client cannot be nil")
	}
	if dbName == "" {
		dbName = DefaultDBName
	}
	return &UserStore{users: client.Database(dbName).Collection(usersCollName)}
}

// EnsureIndexes creates the unique indexes on username and google_id.
// Both are sparse so that local-only and Google-only users do not collide
// on missing fields. Call once at startup.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}

func (s *UserStore) GetUserById(userId string) (*tt.User, error) {
	oid, err := primitive.ObjectIDFromHex(userId)
	if err != nil {
		return nil, tt.ErrUserNotFound
	}

	ctx, cancel := opContext()
	defer cancel()

	var doc userDoc
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, tt.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return doc.toUser(), nil
}

func (s *UserStore) GetUserByUsername(username string) (*tt.User, error) {
	ctx, cancel := opContext()
	defer cancel()

	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, tt.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return doc.toUser(), nil
}

// EnsureGoogleUser finds or creates the user for a Google account. The
// find-or-create is a single upsert so two concurrent callbacks for the
// same account cannot create two users.
func (s *UserStore) EnsureGoogleUser(googleId string) (*tt.User, error) {
	ctx, cancel := opContext()
	defer cancel()

	filter := bson.M{"google_id": googleId}
	update := bson.M{"$setOnInsert": bson.M{
		"google_id":  googleId,
		"secrets":    []string{},
		"created_at": time.Now(),
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc userDoc
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return doc.toUser(), nil
}

func (s *UserStore) CreateLocalUser(username string, passwordHash string) (*tt.User, error) {
	ctx, cancel := opContext()
	defer cancel()

	doc := userDoc{
		Username:     username,
		PasswordHash: passwordHash,
		Secrets:      []string{},
		CreatedAt:    time.Now(),
	}
	res, err := s.users.InsertOne(ctx, &doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, tt.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toUser(), nil
}

func (s *UserStore) SaveUser(user *tt.User) error {
	oid, err := primitive.ObjectIDFromHex(user.Id)
	if err != nil {
		return tt.ErrUserNotFound
	}

	ctx, cancel := opContext()
	defer cancel()

	// The unique indexes on username and google_id are sparse, which only
	// skips documents where the field is absent. An identity field the user
	// lacks must be unset, never written as "", or every user missing that
	// field would collide in the index.
	set := bson.M{"secrets": user.Secrets}
	unset := bson.M{}
	for field, value := range map[string]string{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"google_id":     user.GoogleID,
	} {
		if value != "" {
			set[field] = value
		} else {
			unset[field] = ""
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return tt.ErrUserNotFound
	}
	return nil
}

// AppendSecret pushes a secret onto the user's list atomically.
func (s *UserStore) AppendSecret(userId string, secretText string) error {
	oid, err := primitive.ObjectIDFromHex(userId)
	if err != nil {
		return tt.ErrUserNotFound
	}

	ctx, cancel := opContext()
	defer cancel()

	update := bson.M{"$push": bson.M{"secrets": secretText}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return tt.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets() ([]*tt.User, error) {
	ctx, cancel := opContext()
	defer cancel()

	filter := bson.M{"secrets.0": bson.M{"$exists": true}}
	cursor, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var out []*tt.User
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
		}
		out = append(out, doc.toUser())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", tt.ErrStoreUnavailable, err)
	}
	return out, nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}
