package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfileRepository reads the surrounding platform's listing and seller
// documents. The reservation engine only consumes two facts from them: a
// listing's moderation status and a seller's subscription tier.
type ProfileRepository struct {
	listings *mongo.Collection
	sellers  *mongo.Collection
	logger   observability.Logger
}

func NewProfileRepository(db *mongo.Database, logger observability.Logger) *ProfileRepository {
	return &ProfileRepository{
		listings: db.Collection("listings"),
		sellers:  db.Collection("sellers"),
		logger:   logger,
	}
}

type ListingDoc struct {
	ID               uuid.UUID `bson:"_id"`
	SellerID         uuid.UUID `bson:"seller_id"`
	Title            string    `bson:"title"`
	ModerationStatus string    `bson:"moderation_status"`
}

type SellerDoc struct {
	ID   uuid.UUID `bson:"_id"`
	Tier string    `bson:"tier"`
}

func (r *ProfileRepository) GetListing(ctx context.Context, id uuid.UUID) (domain.Listing, error) {
	var doc ListingDoc
	err := r.listings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Listing{}, domain.ErrNotFound
	}
	if err != nil {
		r.logger.WithError(err).Error("failed to get listing")
		return domain.Listing{}, err
	}
	return domain.Listing{
		ID:         doc.ID,
		SellerID:   doc.SellerID,
		Title:      doc.Title,
		Moderation: domain.ModerationStatus(doc.ModerationStatus),
	}, nil
}

func (r *ProfileRepository) GetSeller(ctx context.Context, id uuid.UUID) (domain.Seller, error) {
	var doc SellerDoc
	err := r.sellers.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Seller{}, domain.ErrNotFound
	}
	if err != nil {
		r.logger.WithError(err).Error("failed to get seller")
		return domain.Seller{}, err
	}
	return domain.Seller{ID: doc.ID, Tier: domain.SellerTier(doc.Tier)}, nil
}

// UpsertListing seeds collaborator documents in tests and local setups.
func (r *ProfileRepository) UpsertListing(ctx context.Context, doc ListingDoc) error {
	_, err := r.listings.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ProfileRepository) UpsertSeller(ctx context.Context, doc SellerDoc) error {
	_, err := r.sellers.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}
