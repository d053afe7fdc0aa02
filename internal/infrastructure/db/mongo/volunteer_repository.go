package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

const volunteerCollection = "volunteers"

// VolunteerRepository backs volunteer records with MongoDB.
type VolunteerRepository struct {
	coll *mongo.Collection
}

func NewVolunteerRepository(db *mongo.Database) *VolunteerRepository {
	return &VolunteerRepository{coll: db.Collection(volunteerCollection)}
}

type mongoVolunteer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email,omitempty"`
	CreatedAt int64              `bson:"created_at"`
	UpdatedAt int64              `bson:"updated_at"`
}

func (r *VolunteerRepository) FindByID(ctx context.Context, id string) (*domain.Volunteer, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}

	var mv mongoVolunteer
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&mv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find volunteer: %w", err)
	}

	return &domain.Volunteer{
		ID:        mv.ID.Hex(),
		Name:      mv.Name,
		Email:     mv.Email,
		CreatedAt: unixToTime(mv.CreatedAt),
		UpdatedAt: unixToTime(mv.UpdatedAt),
	}, nil
}
