package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

const agencyCollection = "agencies"

// AgencyRepository backs partner-agency records with MongoDB.
type AgencyRepository struct {
	coll *mongo.Collection
}

func NewAgencyRepository(db *mongo.Database) *AgencyRepository {
	return &AgencyRepository{coll: db.Collection(agencyCollection)}
}

type mongoAgency struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email,omitempty"`
	CreatedAt int64              `bson:"created_at"`
	UpdatedAt int64              `bson:"updated_at"`
}

func (r *AgencyRepository) FindByID(ctx context.Context, id string) (*domain.Agency, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPrincipalNotFound
	}

	var ma mongoAgency
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&ma); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("find agency: %w", err)
	}

	return &domain.Agency{
		ID:        ma.ID.Hex(),
		Name:      ma.Name,
		Email:     ma.Email,
		CreatedAt: unixToTime(ma.CreatedAt),
		UpdatedAt: unixToTime(ma.UpdatedAt),
	}, nil
}
