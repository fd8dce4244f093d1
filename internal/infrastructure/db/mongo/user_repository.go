package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// UserRepository persists users and serves the user list read model.
type UserRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID                 string `bson:"_id,omitempty"`
	UserName           string `bson:"user_name"`
	NormalizedUserName string `bson:"normalized_user_name"`
	Email              string `bson:"email"`
	NormalizedEmail    string `bson:"normalized_email"`
	EmailConfirmed     bool   `bson:"email_confirmed"`
	PasswordHash       string `bson:"password_hash"`
	SecurityStamp      string `bson:"security_stamp"`
	ConcurrencyStamp   string `bson:"concurrency_stamp"`
	LockoutEnabled     bool   `bson:"lockout_enabled"`
	AccessFailedCount  int    `bson:"access_failed_count"`
	CreatedAt          int64  `bson:"created_at,omitempty"`
	UpdatedAt          int64  `bson:"updated_at"`
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		ID:                 u.ID.String(),
		UserName:           u.UserName,
		NormalizedUserName: u.NormalizedUserName,
		Email:              u.Email,
		NormalizedEmail:    u.NormalizedEmail,
		EmailConfirmed:     u.EmailConfirmed,
		PasswordHash:       u.PasswordHash,
		SecurityStamp:      u.SecurityStamp,
		ConcurrencyStamp:   u.ConcurrencyStamp,
		LockoutEnabled:     u.LockoutEnabled,
		AccessFailedCount:  u.AccessFailedCount,
	}
}

func (m mongoUser) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q: %v", domain.ErrDataIntegrity, m.ID, err)
	}
	return &domain.User{
		ID:                 id,
		UserName:           m.UserName,
		NormalizedUserName: m.NormalizedUserName,
		Email:              m.Email,
		NormalizedEmail:    m.NormalizedEmail,
		EmailConfirmed:     m.EmailConfirmed,
		PasswordHash:       m.PasswordHash,
		SecurityStamp:      m.SecurityStamp,
		ConcurrencyStamp:   m.ConcurrencyStamp,
		LockoutEnabled:     m.LockoutEnabled,
		AccessFailedCount:  m.AccessFailedCount,
	}, nil
}

// FindByID returns (nil, nil) when no user has id.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *UserRepository) FindByNormalizedUserName(ctx context.Context, normalized string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"normalized_user_name": normalized})
}

func (r *UserRepository) FindByNormalizedEmail(ctx context.Context, normalized string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"normalized_email": normalized})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain()
}

// Insert stores a new user. A clash on a unique index yields domain.ErrDuplicateRecord.
func (r *UserRepository) Insert(ctx context.Context, user *domain.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := toMongoUser(user)
	now := time.Now().UTC().Unix()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert user: %w", domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update overwrites user if the stored concurrency stamp still equals
// expectedStamp, otherwise it returns domain.ErrStaleRecord.
func (r *UserRepository) Update(ctx context.Context, user *domain.User, expectedStamp string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := toMongoUser(user)
	doc.UpdatedAt = time.Now().UTC().Unix()

	filter := bson.M{"_id": doc.ID, "concurrency_stamp": expectedStamp}
	doc.ID = ""
	res, err := r.users.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update user: %w", domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update user %s: %w", user.ID, domain.ErrStaleRecord)
	}
	return nil
}

type mongoRoleRef struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type mongoUserRoles struct {
	ID             string         `bson:"_id"`
	UserName       string         `bson:"user_name"`
	Email          string         `bson:"email"`
	EmailConfirmed bool           `bson:"email_confirmed"`
	Roles          []mongoRoleRef `bson:"roles"`
}

// List returns every user joined with its roles, ordered by user name.
func (r *UserRepository) List(ctx context.Context) ([]domain.UserRolesView, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "normalized_user_name", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionUserRoles},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "user_id"},
			{Key: "as", Value: "memberships"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionRoles},
			{Key: "localField", Value: "memberships.role_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "roles"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "user_name", Value: 1},
			{Key: "email", Value: 1},
			{Key: "email_confirmed", Value: 1},
			{Key: "roles._id", Value: 1},
			{Key: "roles.name", Value: 1},
		}}},
	}

	cur, err := r.users.Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUserRoles
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list users: decode: %w", err)
	}

	views := make([]domain.UserRolesView, 0, len(docs))
	for _, d := range docs {
		view, err := d.toView()
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (d mongoUserRoles) toView() (domain.UserRolesView, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.UserRolesView{}, fmt.Errorf("%w: user id %q: %v", domain.ErrDataIntegrity, d.ID, err)
	}
	view := domain.UserRolesView{
		ID:             id,
		UserName:       d.UserName,
		Email:          d.Email,
		EmailConfirmed: d.EmailConfirmed,
		Roles:          make([]domain.RoleRef, 0, len(d.Roles)),
	}
	for _, ref := range d.Roles {
		roleID, err := uuid.Parse(ref.ID)
		if err != nil {
			return domain.UserRolesView{}, fmt.Errorf("%w: role id %q: %v", domain.ErrDataIntegrity, ref.ID, err)
		}
		view.Roles = append(view.Roles, domain.RoleRef{ID: roleID, Name: ref.Name})
	}
	sort.Slice(view.Roles, func(i, j int) bool { return view.Roles[i].Name < view.Roles[j].Name })
	return view, nil
}
