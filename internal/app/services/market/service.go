package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/storage/s3"
)

// Service covers the seller and buyer sides of the catalog: listing CRUD,
// publication, photos and the purchase flow.
type Service struct {
	Listings  domainlistings.Repository
	Purchases domainpurchase.Repository
	Uploader  s3.Uploader
	Logger    *slog.Logger
}

type ListingInput struct {
	Title       string
	Description string
	Category    string
	Condition   domainlistings.Condition
	PriceCents  int64
	Pickup      domainlistings.PickupPoint
}

func (s *Service) CreateListing(ctx context.Context, seller domainlistings.SellerID, input ListingInput) (*domainlistings.Listing, error) {
	listing, err := domainlistings.NewListing(domainlistings.CreateParams{
		ID:          domainlistings.ListingID(uuid.NewString()),
		Seller:      seller,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Condition:   input.Condition,
		PriceCents:  input.PriceCents,
		Pickup:      input.Pickup,
		Now:         time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("listing created", "listing_id", listing.ID, "seller_id", seller)
	}
	return listing, nil
}

func (s *Service) UpdateListing(ctx context.Context, seller domainlistings.SellerID, id domainlistings.ListingID, input ListingInput) (*domainlistings.Listing, error) {
	listing, err := s.ownListing(ctx, seller, id)
	if err != nil {
		return nil, err
	}
	if err := listing.Update(domainlistings.UpdateParams{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Condition:   input.Condition,
		PriceCents:  input.PriceCents,
		Pickup:      input.Pickup,
	}, time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) PublishListing(ctx context.Context, seller domainlistings.SellerID, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	listing, err := s.ownListing(ctx, seller, id)
	if err != nil {
		return nil, err
	}
	if err := listing.Publish(time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// AddPhoto stores the image and appends its public URL to the listing.
func (s *Service) AddPhoto(ctx context.Context, seller domainlistings.SellerID, id domainlistings.ListingID, reader io.Reader, contentType string) (*domainlistings.Listing, error) {
	if s.Uploader == nil {
		return nil, errors.New("market: uploader not configured")
	}
	ext, err := s3.PhotoExtension(contentType)
	if err != nil {
		return nil, err
	}
	listing, err := s.ownListing(ctx, seller, id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("listings/%s/%s%s", id, uuid.NewString(), ext)
	url, err := s.Uploader.Upload(ctx, key, reader, contentType)
	if err != nil {
		return nil, err
	}
	listing.AddPhoto(url, time.Now())
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) Catalog(ctx context.Context, params domainlistings.CatalogParams) (domainlistings.CatalogResult, error) {
	return s.Listings.Catalog(ctx, params)
}

func (s *Service) GetListing(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	return s.Listings.ByID(ctx, id)
}

func (s *Service) MyListings(ctx context.Context, seller domainlistings.SellerID) ([]*domainlistings.Listing, error) {
	return s.Listings.BySeller(ctx, seller)
}

// Buy marks the listing sold and records the purchase. The sold-state guard
// on the listing is what keeps a listing from being bought twice; a losing
// concurrent buyer sees ErrInvalidState or ErrConcurrentUpdate.
func (s *Service) Buy(ctx context.Context, buyer domainuser.ID, listingID domainlistings.ListingID) (*domainpurchase.Purchase, error) {
	listing, err := s.Listings.ByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if string(listing.Seller) == string(buyer) {
		return nil, domainpurchase.ErrOwnListing
	}
	if err := listing.MarkSold(time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	record, err := domainpurchase.NewPurchase(domainpurchase.CreateParams{
		ID:         domainpurchase.ID(uuid.NewString()),
		Listing:    listing.ID,
		Buyer:      buyer,
		Seller:     listing.Seller,
		PriceCents: listing.PriceCents,
		Now:        time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Purchases.Save(ctx, record); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("listing sold", "listing_id", listing.ID, "buyer_id", buyer)
	}
	return record, nil
}

func (s *Service) MyPurchases(ctx context.Context, buyer domainuser.ID) ([]*domainpurchase.Purchase, error) {
	return s.Purchases.ByBuyer(ctx, buyer)
}

func (s *Service) ownListing(ctx context.Context, seller domainlistings.SellerID, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	listing, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(seller) {
		return nil, domainlistings.ErrNotSeller
	}
	return listing, nil
}
