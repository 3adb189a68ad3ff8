package memory

import (
	"context"
	"sort"
	"sync"

	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
)

// PurchaseRepository stores purchase records in memory.
type PurchaseRepository struct {
	mu   sync.RWMutex
	byID map[domainpurchase.ID]*domainpurchase.Purchase
}

func NewPurchaseRepository() *PurchaseRepository {
	return &PurchaseRepository{byID: make(map[domainpurchase.ID]*domainpurchase.Purchase)}
}

func (r *PurchaseRepository) Save(ctx context.Context, p *domainpurchase.Purchase) error {
	if p == nil || p.ID == "" {
		return domainpurchase.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyPurchase := *p
	r.byID[p.ID] = &copyPurchase
	return nil
}

func (r *PurchaseRepository) ByBuyer(ctx context.Context, buyer domainuser.ID) ([]*domainpurchase.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*domainpurchase.Purchase, 0)
	for _, p := range r.byID {
		if p.Buyer == buyer {
			copyPurchase := *p
			matched = append(matched, &copyPurchase)
		}
	}
	sortPurchasesNewestFirst(matched)
	return matched, nil
}

func (r *PurchaseRepository) All(ctx context.Context) ([]*domainpurchase.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*domainpurchase.Purchase, 0, len(r.byID))
	for _, p := range r.byID {
		copyPurchase := *p
		matched = append(matched, &copyPurchase)
	}
	sortPurchasesNewestFirst(matched)
	return matched, nil
}

func sortPurchasesNewestFirst(items []*domainpurchase.Purchase) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

var _ domainpurchase.Repository = (*PurchaseRepository)(nil)
