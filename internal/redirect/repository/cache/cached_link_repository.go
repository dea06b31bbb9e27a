package cache

import (
	"context"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/usecase"
)

// Compile-time interface check
var _ usecase.LinkRepository = (*CachedLinkRepository)(nil)

// CachedLinkRepository decorates a LinkRepository with a read-through cache.
type CachedLinkRepository struct {
	repo  usecase.LinkRepository
	cache LinkCache
}

func NewCachedLinkRepository(repo usecase.LinkRepository, cache LinkCache) *CachedLinkRepository {
	return &CachedLinkRepository{
		repo:  repo,
		cache: cache,
	}
}

// FindByLinkID checks the cache first. Misses are not cached.
func (r *CachedLinkRepository) FindByLinkID(ctx context.Context, linkID string) (*domain.LinkConfiguration, error) {
	if cached, err := r.cache.Get(ctx, linkID); err == nil && cached != nil {
		return cached, nil
	}

	link, err := r.repo.FindByLinkID(ctx, linkID)
	if err != nil || link == nil {
		return link, err
	}

	_ = r.cache.Set(ctx, link)
	return link, nil
}

// Save persists the link and refreshes the cached copy.
func (r *CachedLinkRepository) Save(ctx context.Context, link *domain.LinkConfiguration) error {
	if err := r.repo.Save(ctx, link); err != nil {
		return err
	}

	_ = r.cache.Set(ctx, link)
	return nil
}
