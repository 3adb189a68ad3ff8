package dto

import (
	"time"

	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
)

type PickupPoint struct {
	Label string  `json:"label,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lon   float64 `json:"lon,omitempty"`
}

// Listing is the public card for one second-hand item.
type Listing struct {
	ID          string       `json:"id"`
	SellerID    string       `json:"seller_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Condition   string       `json:"condition"`
	PriceCents  int64        `json:"price_cents"`
	Photos      []string     `json:"photos"`
	Pickup      *PickupPoint `json:"pickup,omitempty"`
	State       string       `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type ListingList struct {
	Items []Listing `json:"items"`
	Total int64     `json:"total"`
}

type Purchase struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type PurchaseList struct {
	Items []Purchase `json:"items"`
}

func MapListing(listing *domainlistings.Listing) Listing {
	if listing == nil {
		return Listing{}
	}
	out := Listing{
		ID:          string(listing.ID),
		SellerID:    string(listing.Seller),
		Title:       listing.Title,
		Description: listing.Description,
		Category:    listing.Category,
		Condition:   string(listing.Condition),
		PriceCents:  listing.PriceCents,
		Photos:      append([]string{}, listing.Photos...),
		State:       string(listing.State),
		CreatedAt:   listing.CreatedAt,
		UpdatedAt:   listing.UpdatedAt,
	}
	if listing.Pickup.Set() {
		out.Pickup = &PickupPoint{
			Label: listing.Pickup.Label,
			Lat:   listing.Pickup.Lat,
			Lon:   listing.Pickup.Lon,
		}
	}
	return out
}

func MapListingList(result domainlistings.CatalogResult) ListingList {
	items := make([]Listing, 0, len(result.Items))
	for _, listing := range result.Items {
		items = append(items, MapListing(listing))
	}
	return ListingList{Items: items, Total: result.Total}
}

func MapListings(listings []*domainlistings.Listing) ListingList {
	items := make([]Listing, 0, len(listings))
	for _, listing := range listings {
		items = append(items, MapListing(listing))
	}
	return ListingList{Items: items, Total: int64(len(items))}
}

func MapPurchase(p *domainpurchase.Purchase) Purchase {
	if p == nil {
		return Purchase{}
	}
	return Purchase{
		ID:         string(p.ID),
		ListingID:  string(p.Listing),
		BuyerID:    string(p.Buyer),
		SellerID:   string(p.Seller),
		PriceCents: p.PriceCents,
		CreatedAt:  p.CreatedAt,
	}
}

func MapPurchases(purchases []*domainpurchase.Purchase) PurchaseList {
	items := make([]Purchase, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, MapPurchase(p))
	}
	return PurchaseList{Items: items}
}
