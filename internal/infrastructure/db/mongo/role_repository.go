package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/modernapi/identity-system/internal/core/domain"
)

// RoleRepository persists roles, their claims and user memberships.
type RoleRepository struct {
	roles   *mongo.Collection
	claims  *mongo.Collection
	members *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		roles:   db.Collection(collectionRoles),
		claims:  db.Collection(collectionRoleClaims),
		members: db.Collection(collectionUserRoles),
	}
}

type mongoRole struct {
	ID               string `bson:"_id,omitempty"`
	Name             string `bson:"name"`
	NormalizedName   string `bson:"normalized_name"`
	ConcurrencyStamp string `bson:"concurrency_stamp"`
}

type mongoRoleClaim struct {
	RoleID  string `bson:"role_id"`
	Type    string `bson:"type"`
	Value   string `bson:"value"`
	AddedAt int64  `bson:"added_at"`
}

type mongoUserRole struct {
	UserID  string `bson:"user_id"`
	RoleID  string `bson:"role_id"`
	AddedAt int64  `bson:"added_at"`
}

func toMongoRole(r *domain.Role) mongoRole {
	return mongoRole{
		ID:               r.ID.String(),
		Name:             r.Name,
		NormalizedName:   r.NormalizedName,
		ConcurrencyStamp: r.ConcurrencyStamp,
	}
}

func (m mongoRole) toDomain() (*domain.Role, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: role id %q: %v", domain.ErrDataIntegrity, m.ID, err)
	}
	return &domain.Role{
		ID:               id,
		Name:             m.Name,
		NormalizedName:   m.NormalizedName,
		ConcurrencyStamp: m.ConcurrencyStamp,
	}, nil
}

// FindByID returns (nil, nil) when no role has id.
func (r *RoleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *RoleRepository) FindByNormalizedName(ctx context.Context, normalized string) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"normalized_name": normalized})
}

func (r *RoleRepository) findOne(ctx context.Context, filter bson.M) (*domain.Role, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoRole
	if err := r.roles.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return doc.toDomain()
}

// Insert stores a new role. A name clash yields domain.ErrDuplicateRecord.
func (r *RoleRepository) Insert(ctx context.Context, role *domain.Role) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.roles.InsertOne(ctx, toMongoRole(role)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert role: %w", domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// Update overwrites role if the stored concurrency stamp still equals
// expectedStamp, otherwise it returns domain.ErrStaleRecord.
func (r *RoleRepository) Update(ctx context.Context, role *domain.Role, expectedStamp string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := toMongoRole(role)
	filter := bson.M{"_id": doc.ID, "concurrency_stamp": expectedStamp}
	doc.ID = ""
	res, err := r.roles.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update role: %w", domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update role %s: %w", role.ID, domain.ErrStaleRecord)
	}
	return nil
}

// List returns every role ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := r.roles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "normalized_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoRole
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list roles: decode: %w", err)
	}

	roles := make([]domain.Role, 0, len(docs))
	for _, d := range docs {
		role, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

// Claims returns the claims of a role in the order they were granted.
func (r *RoleRepository) Claims(ctx context.Context, roleID uuid.UUID) ([]domain.Claim, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.claims.Find(ctx, bson.M{"role_id": roleID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("role claims: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoRoleClaim
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("role claims: decode: %w", err)
	}

	claims := make([]domain.Claim, 0, len(docs))
	for _, d := range docs {
		claims = append(claims, domain.Claim{Type: d.Type, Value: d.Value})
	}
	return claims, nil
}

// AddClaim appends a claim. A value the role already holds yields
// domain.ErrDuplicateRecord.
func (r *RoleRepository) AddClaim(ctx context.Context, roleID uuid.UUID, claim domain.Claim) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := mongoRoleClaim{
		RoleID:  roleID.String(),
		Type:    claim.Type,
		Value:   claim.Value,
		AddedAt: time.Now().UTC().UnixNano(),
	}
	if _, err := r.claims.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("add role claim %q: %w", claim.Value, domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("add role claim: %w", err)
	}
	return nil
}

// RoleNamesOfUser resolves the roles of a user in the order they were assigned.
// A membership that references a missing role is a data integrity fault.
func (r *RoleRepository) RoleNamesOfUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}})
	cur, err := r.members.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	defer cur.Close(ctx)

	var memberships []mongoUserRole
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("user roles: decode: %w", err)
	}
	if len(memberships) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.RoleID
	}

	rcur, err := r.roles.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("user roles: resolve: %w", err)
	}
	defer rcur.Close(ctx)

	var roles []mongoRole
	if err := rcur.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("user roles: resolve: decode: %w", err)
	}
	names := make(map[string]string, len(roles))
	for _, role := range roles {
		names[role.ID] = role.Name
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			return nil, &domain.RoleMissingError{RoleName: id}
		}
		out = append(out, name)
	}
	return out, nil
}

func (r *RoleRepository) IsMember(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	n, err := r.members.CountDocuments(ctx, bson.M{"user_id": userID.String(), "role_id": roleID.String()})
	if err != nil {
		return false, fmt.Errorf("membership: %w", err)
	}
	return n > 0, nil
}

// AddMember records a membership. An existing one yields domain.ErrDuplicateRecord.
func (r *RoleRepository) AddMember(ctx context.Context, userID, roleID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := mongoUserRole{
		UserID:  userID.String(),
		RoleID:  roleID.String(),
		AddedAt: time.Now().UTC().UnixNano(),
	}
	if _, err := r.members.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("add membership: %w", domain.ErrDuplicateRecord)
		}
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (r *RoleRepository) RemoveMember(ctx context.Context, userID, roleID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.members.DeleteOne(ctx, bson.M{"user_id": userID.String(), "role_id": roleID.String()}); err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}
