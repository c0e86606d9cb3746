package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/cache"
	"github.com/Skotchmaster/product_api/internal/events"
	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/models"
	"github.com/Skotchmaster/product_api/internal/repo"
	"github.com/Skotchmaster/product_api/internal/transport"
)

// SearchIndex is an optional secondary index. The database stays
// authoritative: candidate ids it returns are re-matched in the repository.
type SearchIndex interface {
	Put(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
	SearchIDs(ctx context.Context, q string) ([]uint, error)
}

const reindexBatch = 500

var errIndexBehind = errors.New("search index is not in sync")

type CatalogService struct {
	Repo   *repo.GormRepo
	Cache  cache.ProductCache
	Search SearchIndex
	Events events.Publisher

	// The index is trusted only while syncedGen == dirtyGen+1: a full
	// reindex stores dirtyGen+1 and every failed index write bumps dirtyGen.
	dirtyGen  atomic.Int64
	syncedGen atomic.Int64
	reindexMu sync.Mutex
}

func NewCatalogService(r *repo.GormRepo) *CatalogService {
	return &CatalogService{Repo: r, Cache: cache.Nop{}, Events: events.Nop{}}
}

// Create rejects a name that is already taken. The check and the insert are
// separate statements, so concurrent creates with the same name can both
// succeed.
func (s *CatalogService) Create(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	var prod models.Product
	req.Apply(&prod)

	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		exists, err := rs.ProductNameExists(prod.Name)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateName
		}
		return rs.CreateProduct(&prod)
	})
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, &prod)
	s.publish(ctx, events.ProductCreated, prod.ID, transport.NewProductOut(&prod))
	return &prod, nil
}

func (s *CatalogService) List(ctx context.Context, offset, limit int) ([]transport.ProductListItem, error) {
	var items []models.Product
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		items, err = rs.ListProducts(offset, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]transport.ProductListItem, 0, len(items))
	for i := range items {
		out = append(out, transport.NewProductListItem(&items[i], offset+i+1))
	}
	return out, nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, q string) ([]models.Product, error) {
	if q == "" {
		return nil, fmt.Errorf("%w: q must not be empty", ErrValidation)
	}

	if s.Search != nil {
		items, err := s.searchIndex(ctx, q)
		if err == nil {
			return items, nil
		}
		logging.FromContext(ctx).Warn("search_index_fallback", "reason", "index not usable", "error", err)
	}

	var items []models.Product
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		items, err = rs.SearchProducts(q)
		return err
	})
	return items, err
}

func (s *CatalogService) searchIndex(ctx context.Context, q string) ([]models.Product, error) {
	if !s.indexInSync() {
		if err := s.ReindexSearch(ctx); err != nil {
			return nil, err
		}
	}

	ids, err := s.Search.SearchIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	var items []models.Product
	err = s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		items, err = rs.SearchProductsIn(ids, q)
		return err
	})
	return items, err
}

func (s *CatalogService) indexInSync() bool {
	return s.syncedGen.Load() == s.dirtyGen.Load()+1
}

// ReindexSearch writes every stored product to the search index. Until it
// succeeds, search is served from the database. Only one reindex runs at a
// time; a concurrent caller gets an error and falls back.
func (s *CatalogService) ReindexSearch(ctx context.Context) error {
	if s.Search == nil {
		return nil
	}
	if !s.reindexMu.TryLock() {
		return errIndexBehind
	}
	defer s.reindexMu.Unlock()

	gen := s.dirtyGen.Load()
	n := 0
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		return rs.EachProductBatch(reindexBatch, func(items []models.Product) error {
			for i := range items {
				if err := s.Search.Put(ctx, &items[i]); err != nil {
					return fmt.Errorf("reindex product %d: %w", items[i].ID, err)
				}
			}
			n += len(items)
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.syncedGen.Store(gen + 1)
	logging.FromContext(ctx).Info("search_reindexed", "products", n)
	return nil
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	l := logging.FromContext(ctx)

	if p, ok, err := s.Cache.Get(ctx, id); err != nil {
		l.Warn("cache_get_error", "product_id", id, "error", err)
	} else if ok {
		return p, nil
	}

	// taken before the read so a write landing in between voids the fill
	token, tokenErr := s.Cache.Token(ctx, id)
	if tokenErr != nil {
		l.Warn("cache_token_error", "product_id", id, "error", tokenErr)
	}

	var prod *models.Product
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		prod, err = rs.GetProduct(id)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}

	if tokenErr == nil {
		if err := s.Cache.Fill(ctx, prod, token); err != nil {
			l.Warn("cache_fill_error", "product_id", id, "error", err)
		}
	}
	return prod, nil
}

// Replace overwrites every field of an existing product. Renaming onto
// another product's name is not checked.
func (s *CatalogService) Replace(ctx context.Context, id uint, req transport.CreateProductRequest) (*models.Product, error) {
	return s.update(ctx, id, req.Apply)
}

func (s *CatalogService) Patch(ctx context.Context, id uint, req transport.PatchProductRequest) (*models.Product, error) {
	return s.update(ctx, id, req.Apply)
}

func (s *CatalogService) update(ctx context.Context, id uint, apply func(*models.Product)) (*models.Product, error) {
	var prod *models.Product
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		prod, err = rs.GetProduct(id)
		if err != nil {
			return err
		}
		apply(prod)
		return rs.SaveProduct(prod)
	})
	if err != nil {
		return nil, notFound(err)
	}

	s.invalidate(ctx, id)
	s.mirror(ctx, prod)
	s.publish(ctx, events.ProductUpdated, prod.ID, transport.NewProductOut(prod))
	return prod, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		return rs.DeleteProduct(id)
	})
	if err != nil {
		return notFound(err)
	}

	s.invalidate(ctx, id)
	if s.Search != nil {
		if err := s.Search.Delete(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_index_delete_error", "product_id", id, "error", err)
		}
	}
	s.publish(ctx, events.ProductDeleted, id, nil)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id uint) {
	if err := s.Cache.Invalidate(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_error", "product_id", id, "error", err)
	}
}

func (s *CatalogService) mirror(ctx context.Context, p *models.Product) {
	if s.Search == nil {
		return
	}
	if err := s.Search.Put(ctx, p); err != nil {
		s.dirtyGen.Add(1)
		logging.FromContext(ctx).Warn("search_index_put_error", "product_id", p.ID, "error", err)
	}
}

func (s *CatalogService) publish(ctx context.Context, typ string, id uint, payload any) {
	if err := s.Events.Publish(ctx, events.Event{Type: typ, ID: id, Payload: payload}); err != nil {
		logging.FromContext(ctx).Warn("event_publish_error", "event", typ, "id", id, "error", err)
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
