package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired     = errors.New("listings: id is required")
	ErrSellerRequired = errors.New("listings: seller is required")
	ErrTitleRequired  = errors.New("listings: title is required")
	ErrNegativePrice  = errors.New("listings: price must be non-negative")
	ErrInvalidState   = errors.New("listings: invalid state transition")
	ErrNotFound       = errors.New("listings: not found")
	ErrNotSeller      = errors.New("listings: caller does not own this listing")
)

type ListingID string
type SellerID string

type ListingState string

const (
	ListingDraft  ListingState = "DRAFT"
	ListingActive ListingState = "ACTIVE"
	ListingSold   ListingState = "SOLD"
)

type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionLikeNew  Condition = "like_new"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionForParts Condition = "for_parts"
)

// PickupPoint is where the buyer collects the item.
type PickupPoint struct {
	Label string
	Lat   float64
	Lon   float64
}

func (p PickupPoint) Set() bool {
	return strings.TrimSpace(p.Label) != "" || p.Lat != 0 || p.Lon != 0
}

// Listing is one second-hand item offered by a seller.
type Listing struct {
	ID          ListingID
	Seller      SellerID
	Title       string
	Description string
	Category    string
	Condition   Condition
	PriceCents  int64
	Photos      []string
	Pickup      PickupPoint
	State       ListingState
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ErrConcurrentUpdate reports that a conditional save lost to a concurrent
// writer; the caller reloads and retries or surfaces the conflict.
var ErrConcurrentUpdate = errors.New("listings: concurrent update detected")

type CatalogParams struct {
	Category string
	Limit    int
	Offset   int
}

type CatalogResult struct {
	Items []*Listing
	Total int64
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	// Catalog pages through active listings, newest first.
	Catalog(ctx context.Context, params CatalogParams) (CatalogResult, error)
	BySeller(ctx context.Context, seller SellerID) ([]*Listing, error)
	// All pages through every listing regardless of state, for the back office.
	All(ctx context.Context, limit, offset int) (CatalogResult, error)
}

type CreateParams struct {
	ID          ListingID
	Seller      SellerID
	Title       string
	Description string
	Category    string
	Condition   Condition
	PriceCents  int64
	Photos      []string
	Pickup      PickupPoint
	Now         time.Time
}

func NewListing(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Seller)) == "" {
		return nil, ErrSellerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if params.PriceCents < 0 {
		return nil, ErrNegativePrice
	}
	condition := normalizeCondition(params.Condition)

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &Listing{
		ID:          params.ID,
		Seller:      params.Seller,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Category:    strings.ToLower(strings.TrimSpace(params.Category)),
		Condition:   condition,
		PriceCents:  params.PriceCents,
		Photos:      append([]string(nil), params.Photos...),
		Pickup:      params.Pickup,
		State:       ListingDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type UpdateParams struct {
	Title       string
	Description string
	Category    string
	Condition   Condition
	PriceCents  int64
	Pickup      PickupPoint
}

// Update edits the mutable fields. Sold listings are frozen.
func (l *Listing) Update(params UpdateParams, now time.Time) error {
	if l.State == ListingSold {
		return ErrInvalidState
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if params.PriceCents < 0 {
		return ErrNegativePrice
	}
	l.Title = title
	l.Description = strings.TrimSpace(params.Description)
	l.Category = strings.ToLower(strings.TrimSpace(params.Category))
	l.Condition = normalizeCondition(params.Condition)
	l.PriceCents = params.PriceCents
	l.Pickup = params.Pickup
	l.touch(now)
	return nil
}

// Publish makes a draft visible in the catalog.
func (l *Listing) Publish(now time.Time) error {
	if l.State != ListingDraft {
		return ErrInvalidState
	}
	l.State = ListingActive
	l.touch(now)
	return nil
}

// MarkSold takes the listing off the market. Only an active listing can be
// sold, which is what makes a purchase happen at most once.
func (l *Listing) MarkSold(now time.Time) error {
	if l.State != ListingActive {
		return ErrInvalidState
	}
	l.State = ListingSold
	l.touch(now)
	return nil
}

func (l *Listing) AddPhoto(url string, now time.Time) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	l.Photos = append(l.Photos, url)
	l.touch(now)
}

func (l *Listing) OwnedBy(seller SellerID) bool {
	return l.Seller == seller && seller != ""
}

func (l *Listing) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}

func normalizeCondition(c Condition) Condition {
	switch Condition(strings.ToLower(strings.TrimSpace(string(c)))) {
	case ConditionNew:
		return ConditionNew
	case ConditionLikeNew:
		return ConditionLikeNew
	case ConditionFair:
		return ConditionFair
	case ConditionForParts:
		return ConditionForParts
	default:
		return ConditionGood
	}
}
