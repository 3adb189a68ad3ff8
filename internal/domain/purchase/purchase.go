package purchase

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleamarket/internal/domain/listings"
	"fleamarket/internal/domain/user"
)

var (
	ErrIDRequired      = errors.New("purchase: id is required")
	ErrBuyerRequired   = errors.New("purchase: buyer is required")
	ErrListingRequired = errors.New("purchase: listing is required")
	ErrOwnListing      = errors.New("purchase: cannot buy your own listing")
	ErrNotFound        = errors.New("purchase: not found")
)

type ID string

// Purchase records a completed sale: the listing was active and is now sold.
type Purchase struct {
	ID         ID
	Listing    listings.ListingID
	Buyer      user.ID
	Seller     listings.SellerID
	PriceCents int64
	CreatedAt  time.Time
}

type Repository interface {
	Save(ctx context.Context, p *Purchase) error
	ByBuyer(ctx context.Context, buyer user.ID) ([]*Purchase, error)
	All(ctx context.Context) ([]*Purchase, error)
}

type CreateParams struct {
	ID         ID
	Listing    listings.ListingID
	Buyer      user.ID
	Seller     listings.SellerID
	PriceCents int64
	Now        time.Time
}

func NewPurchase(params CreateParams) (*Purchase, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Buyer)) == "" {
		return nil, ErrBuyerRequired
	}
	if strings.TrimSpace(string(params.Listing)) == "" {
		return nil, ErrListingRequired
	}
	if string(params.Buyer) == string(params.Seller) {
		return nil, ErrOwnListing
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Purchase{
		ID:         params.ID,
		Listing:    params.Listing,
		Buyer:      params.Buyer,
		Seller:     params.Seller,
		PriceCents: params.PriceCents,
		CreatedAt:  now.UTC(),
	}, nil
}
