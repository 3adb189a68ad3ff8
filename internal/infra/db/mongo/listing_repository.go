package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "fleamarket/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save writes the listing guarded by its version so a concurrent writer loses
// cleanly instead of silently clobbering a sold state.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	filter := bson.M{"_id": doc.ID, "version": listing.Version}
	doc.Version = listing.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainlistings.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainlistings.ErrConcurrentUpdate
	}
	listing.Version = doc.Version
	return nil
}

func (r *ListingRepository) Catalog(ctx context.Context, params domainlistings.CatalogParams) (domainlistings.CatalogResult, error) {
	filter := bson.M{"state": string(domainlistings.ListingActive)}
	if params.Category != "" {
		filter["category"] = params.Category
	}
	return r.page(ctx, filter, params.Limit, params.Offset)
}

func (r *ListingRepository) BySeller(ctx context.Context, seller domainlistings.SellerID) ([]*domainlistings.Listing, error) {
	result, err := r.page(ctx, bson.M{"seller_id": string(seller)}, 0, 0)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (r *ListingRepository) All(ctx context.Context, limit, offset int) (domainlistings.CatalogResult, error) {
	return r.page(ctx, bson.M{}, limit, offset)
}

func (r *ListingRepository) page(ctx context.Context, filter bson.M, limit, offset int) (domainlistings.CatalogResult, error) {
	var zero domainlistings.CatalogResult
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return zero, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return zero, err
	}
	defer cursor.Close(ctx)

	items := make([]*domainlistings.Listing, 0)
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return zero, err
		}
		items = append(items, doc.toAggregate())
	}
	if err := cursor.Err(); err != nil {
		return zero, err
	}
	return domainlistings.CatalogResult{Items: items, Total: total}, nil
}

type listingDocument struct {
	ID          string   `bson:"_id"`
	SellerID    string   `bson:"seller_id"`
	Title       string   `bson:"title"`
	Description string   `bson:"description"`
	Category    string   `bson:"category"`
	Condition   string   `bson:"condition"`
	PriceCents  int64    `bson:"price_cents"`
	Photos      []string `bson:"photos"`
	PickupLabel string   `bson:"pickup_label"`
	PickupLat   float64  `bson:"pickup_lat"`
	PickupLon   float64  `bson:"pickup_lon"`
	State       string   `bson:"state"`
	CreatedAt   int64    `bson:"created_at"`
	UpdatedAt   int64    `bson:"updated_at"`
	Version     int64    `bson:"version"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		SellerID:    string(l.Seller),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Condition:   string(l.Condition),
		PriceCents:  l.PriceCents,
		Photos:      append([]string(nil), l.Photos...),
		PickupLabel: l.Pickup.Label,
		PickupLat:   l.Pickup.Lat,
		PickupLon:   l.Pickup.Lon,
		State:       string(l.State),
		CreatedAt:   l.CreatedAt.UnixMilli(),
		UpdatedAt:   l.UpdatedAt.UnixMilli(),
		Version:     l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Seller:      domainlistings.SellerID(d.SellerID),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Condition:   domainlistings.Condition(d.Condition),
		PriceCents:  d.PriceCents,
		Photos:      append([]string(nil), d.Photos...),
		Pickup: domainlistings.PickupPoint{
			Label: d.PickupLabel,
			Lat:   d.PickupLat,
			Lon:   d.PickupLon,
		},
		State:     domainlistings.ListingState(d.State),
		Version:   d.Version,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
