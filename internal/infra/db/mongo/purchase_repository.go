package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
)

type PurchaseRepository struct {
	col *mongo.Collection
}

func NewPurchaseRepository(db *mongo.Database) *PurchaseRepository {
	return &PurchaseRepository{col: db.Collection("purchases")}
}

func (r *PurchaseRepository) Save(ctx context.Context, p *domainpurchase.Purchase) error {
	doc := newPurchaseDocument(p)
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

func (r *PurchaseRepository) ByBuyer(ctx context.Context, buyer domainuser.ID) ([]*domainpurchase.Purchase, error) {
	return r.find(ctx, bson.M{"buyer_id": string(buyer)})
}

func (r *PurchaseRepository) All(ctx context.Context) ([]*domainpurchase.Purchase, error) {
	return r.find(ctx, bson.M{})
}

func (r *PurchaseRepository) find(ctx context.Context, filter bson.M) ([]*domainpurchase.Purchase, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	purchases := make([]*domainpurchase.Purchase, 0)
	for cursor.Next(ctx) {
		var doc purchaseDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		purchases = append(purchases, doc.toAggregate())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

type purchaseDocument struct {
	ID         string `bson:"_id"`
	ListingID  string `bson:"listing_id"`
	BuyerID    string `bson:"buyer_id"`
	SellerID   string `bson:"seller_id"`
	PriceCents int64  `bson:"price_cents"`
	CreatedAt  int64  `bson:"created_at"`
}

func newPurchaseDocument(p *domainpurchase.Purchase) purchaseDocument {
	return purchaseDocument{
		ID:         string(p.ID),
		ListingID:  string(p.Listing),
		BuyerID:    string(p.Buyer),
		SellerID:   string(p.Seller),
		PriceCents: p.PriceCents,
		CreatedAt:  p.CreatedAt.UnixMilli(),
	}
}

func (d purchaseDocument) toAggregate() *domainpurchase.Purchase {
	return &domainpurchase.Purchase{
		ID:         domainpurchase.ID(d.ID),
		Listing:    domainlistings.ListingID(d.ListingID),
		Buyer:      domainuser.ID(d.BuyerID),
		Seller:     domainlistings.SellerID(d.SellerID),
		PriceCents: d.PriceCents,
		CreatedAt:  timestampToTime(d.CreatedAt),
	}
}

var _ domainpurchase.Repository = (*PurchaseRepository)(nil)
