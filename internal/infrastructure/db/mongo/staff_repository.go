package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

const staffCollection = "staff_members"

// StaffRepository backs the staff directory with MongoDB.
type StaffRepository struct {
	coll *mongo.Collection
}

func NewStaffRepository(db *mongo.Database) *StaffRepository {
	return &StaffRepository{coll: db.Collection(staffCollection)}
}

type mongoStaff struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	Capabilities []string           `bson:"capabilities,omitempty"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
}

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *StaffRepository) findOne(ctx context.Context, filter bson.M) (*domain.StaffMember, error) {
	var ms mongoStaff
	if err := r.coll.FindOne(ctx, filter).Decode(&ms); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find staff member: %w", err)
	}

	return &domain.StaffMember{
		ID:           ms.ID.Hex(),
		Name:         ms.Name,
		Email:        ms.Email,
		PasswordHash: ms.PasswordHash,
		Role:         ms.Role,
		Capabilities: ms.Capabilities,
		CreatedAt:    unixToTime(ms.CreatedAt),
		UpdatedAt:    unixToTime(ms.UpdatedAt),
	}, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
