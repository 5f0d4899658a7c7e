package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

const (
	collectionUsers = "users"
	collectionRoles = "roles"
)

// IdentityStore implements ports.IdentityStore with one document per user.
// Claims and role names are embedded arrays on the user document.
type IdentityStore struct {
	client *mongo.Client
	users  *mongo.Collection
	roles  *mongo.Collection
}

func NewIdentityStore(db *mongo.Database) *IdentityStore {
	return &IdentityStore{
		client: db.Client(),
		users:  db.Collection(collectionUsers),
		roles:  db.Collection(collectionRoles),
	}
}

var (
	_ ports.IdentityStore = (*IdentityStore)(nil)
	_ ports.RoleStore     = (*IdentityStore)(nil)
)

type userDocument struct {
	ID              string         `bson:"_id"`
	UserName        string         `bson:"username"`
	Email           string         `bson:"email"`
	NormalizedEmail string         `bson:"normalized_email"`
	EmailConfirmed  bool           `bson:"email_confirmed"`
	IsEnabled       bool           `bson:"is_enabled"`
	PasswordHash    string         `bson:"password_hash"`
	Claims          []domain.Claim `bson:"claims"`
	Roles           []string       `bson:"roles"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:              d.ID,
		UserName:        d.UserName,
		Email:           d.Email,
		NormalizedEmail: d.NormalizedEmail,
		EmailConfirmed:  d.EmailConfirmed,
		IsEnabled:       d.IsEnabled,
		PasswordHash:    d.PasswordHash,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

// newUserDocument maps a fresh user to its stored form. Claims and roles start
// as empty arrays so later $push and $addToSet calls have a target.
func newUserDocument(user *domain.User) userDocument {
	doc := userDocument{
		ID:              user.ID,
		UserName:        user.UserName,
		Email:           user.Email,
		NormalizedEmail: domain.NormalizeEmail(user.Email),
		EmailConfirmed:  user.EmailConfirmed,
		IsEnabled:       user.IsEnabled,
		PasswordHash:    user.PasswordHash,
		Claims:          []domain.Claim{},
		Roles:           []string{},
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return doc
}

func byEmailFilter(email string) bson.M {
	return bson.M{"normalized_email": domain.NormalizeEmail(email)}
}

// byEmailOptions sorts enabled users first, then the most recently updated.
func byEmailOptions() *options.FindOneOptions {
	return options.FindOne().SetSort(bson.D{{Key: "is_enabled", Value: -1}, {Key: "updated_at", Value: -1}})
}

func listFilter(filter ports.UserFilter) bson.M {
	query := bson.M{}
	if filter.IsEnabled != nil {
		query["is_enabled"] = *filter.IsEnabled
	}
	return query
}

// listOptions orders by username and leaves the embedded arrays out.
func listOptions() *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetProjection(bson.M{"claims": 0, "roles": 0})
}

func replaceClaimFilter(userID string, old domain.Claim) bson.M {
	return bson.M{
		"_id":    userID,
		"claims": bson.M{"$elemMatch": bson.M{"type": old.Type, "value": old.Value}},
	}
}

func replaceClaimUpdate(replacement domain.Claim) bson.M {
	return bson.M{"$set": bson.M{"claims.$": replacement}}
}

// FindByEmail prefers the enabled user when disabled ones share the email,
// then the most recently updated.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.findOne(ctx, byEmailFilter(email), byEmailOptions())
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *IdentityStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// Create inserts the user. An empty ID is replaced by a fresh UUID.
func (s *IdentityStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := newUserDocument(user)
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

// Update overwrites the identity fields of an existing user. Claims and roles
// are left alone.
func (s *IdentityStore) Update(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"username":         user.UserName,
		"email":            user.Email,
		"normalized_email": domain.NormalizeEmail(user.Email),
		"email_confirmed":  user.EmailConfirmed,
		"is_enabled":       user.IsEnabled,
		"updated_at":       user.UpdatedAt,
	}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *IdentityStore) GetClaims(ctx context.Context, userID string) ([]domain.Claim, error) {
	doc, err := s.projection(ctx, userID, "claims")
	if err != nil {
		return nil, err
	}
	return doc.Claims, nil
}

func (s *IdentityStore) AddClaim(ctx context.Context, userID string, claim domain.Claim) error {
	return s.updateOne(ctx, bson.M{"_id": userID}, bson.M{"$push": bson.M{"claims": claim}})
}

// ReplaceClaim uses the positional operator, which targets the first array
// element matching the filter.
func (s *IdentityStore) ReplaceClaim(ctx context.Context, userID string, old, replacement domain.Claim) error {
	return s.updateOne(ctx, replaceClaimFilter(userID, old), replaceClaimUpdate(replacement))
}

func (s *IdentityStore) GetRoles(ctx context.Context, userID string) ([]string, error) {
	doc, err := s.projection(ctx, userID, "roles")
	if err != nil {
		return nil, err
	}
	return doc.Roles, nil
}

func (s *IdentityStore) AddToRole(ctx context.Context, userID, role string) error {
	return s.updateOne(ctx, bson.M{"_id": userID}, bson.M{"$addToSet": bson.M{"roles": role}})
}

func (s *IdentityStore) RemoveFromRole(ctx context.Context, userID, role string) error {
	return s.updateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{"roles": role}})
}

func (s *IdentityStore) ListUsers(ctx context.Context, filter ports.UserFilter) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := s.users.Find(ctx, listFilter(filter), listOptions())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, nil
}

// WithinTransaction runs fn in a multi-document transaction. Calls already
// inside a session reuse it. Transactions need a replica set deployment.
func (s *IdentityStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureRole registers a role name in the roles collection if missing.
func (s *IdentityStore) EnsureRole(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.roles.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$setOnInsert": bson.M{"name": name, "normalized_name": strings.ToUpper(name)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure role %s: %w", name, err)
	}
	return nil
}

// EnsureIndexes creates the indexes the store relies on. The partial unique
// index on normalized_email enforces one enabled user per email.
func (s *IdentityStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "normalized_email", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_enabled": true}),
		},
		{Keys: bson.D{{Key: "normalized_email", Value: 1}, {Key: "is_enabled", Value: -1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_enabled", Value: 1}, {Key: "username", Value: 1}}},
	}

	_, err := s.users.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *IdentityStore) projection(ctx context.Context, userID, field string) (*userDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	opts := options.FindOne().SetProjection(bson.M{field: 1})
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", field, err)
	}
	return &doc, nil
}

func (s *IdentityStore) updateOne(ctx context.Context, filter, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
