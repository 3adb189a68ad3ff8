package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainlistings "fleamarket/internal/domain/listings"
)

// ListingRepository stores listings in memory. Not suitable for production.
type ListingRepository struct {
	mu   sync.RWMutex
	byID map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{byID: make(map[domainlistings.ListingID]*domainlistings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.byID[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return cloneListing(listing), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || strings.TrimSpace(string(listing.ID)) == "" {
		return domainlistings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[listing.ID]; ok && existing.Version != listing.Version {
		return domainlistings.ErrConcurrentUpdate
	}
	stored := cloneListing(listing)
	stored.Version = listing.Version + 1
	r.byID[listing.ID] = stored
	listing.Version = stored.Version
	return nil
}

func (r *ListingRepository) Catalog(ctx context.Context, params domainlistings.CatalogParams) (domainlistings.CatalogResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	category := strings.ToLower(strings.TrimSpace(params.Category))
	matched := make([]*domainlistings.Listing, 0)
	for _, listing := range r.byID {
		if listing.State != domainlistings.ListingActive {
			continue
		}
		if category != "" && listing.Category != category {
			continue
		}
		matched = append(matched, cloneListing(listing))
	}
	sortListingsNewestFirst(matched)
	return paginate(matched, params.Limit, params.Offset), nil
}

func (r *ListingRepository) BySeller(ctx context.Context, seller domainlistings.SellerID) ([]*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*domainlistings.Listing, 0)
	for _, listing := range r.byID {
		if listing.Seller == seller {
			matched = append(matched, cloneListing(listing))
		}
	}
	sortListingsNewestFirst(matched)
	return matched, nil
}

func (r *ListingRepository) All(ctx context.Context, limit, offset int) (domainlistings.CatalogResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*domainlistings.Listing, 0, len(r.byID))
	for _, listing := range r.byID {
		matched = append(matched, cloneListing(listing))
	}
	sortListingsNewestFirst(matched)
	return paginate(matched, limit, offset), nil
}

func paginate(items []*domainlistings.Listing, limit, offset int) domainlistings.CatalogResult {
	total := int64(len(items))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return domainlistings.CatalogResult{Items: []*domainlistings.Listing{}, Total: total}
	}
	if limit <= 0 {
		limit = 20
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return domainlistings.CatalogResult{Items: items[offset:end], Total: total}
}

func sortListingsNewestFirst(items []*domainlistings.Listing) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	copyListing := *l
	copyListing.Photos = append([]string(nil), l.Photos...)
	return &copyListing
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
