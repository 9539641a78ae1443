// Package services – CatalogService
//
// CatalogService serves product listings, product details and categories.
// While the remote is unreachable it answers from the local catalog copy at
// mock-products/all, applying filtering, free-text search, sorting and
// paging locally. Administrative edits try the remote first and otherwise
// change only the local copy, which is not shared across devices.

package services

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/cache"
	"github.com/tbourn/go-storefront-client/internal/domain"
	"github.com/tbourn/go-storefront-client/internal/fallback"
	"github.com/tbourn/go-storefront-client/internal/observability"
	"github.com/tbourn/go-storefront-client/internal/resource"
	"github.com/tbourn/go-storefront-client/internal/search"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const (
	productsPrefix    = "products:"
	productIDPrefix   = "products:id:"
	productSlugPrefix = "products:slug:"
	categoriesKey     = "categories"
)

var slugReplacer = strings.NewReplacer(" ", "-", "_", "-", "/", "-", ".", "-")

// CatalogService is safe for concurrent use.
type CatalogService struct {
	Client *transport.Client
	TTL    time.Duration
	// Now is the clock for locally created products; nil means time.Now.
	Now func() time.Time

	store      *resource.Store[domain.Products]
	pages      *cache.Cache[domain.ProductPage]
	products   *cache.Cache[domain.Product]
	categories *cache.Cache[domain.Categories]
}

// NewCatalogService wires the catalog store.
func NewCatalogService(d Deps, ttl time.Duration) *CatalogService {
	s := &CatalogService{
		Client:     d.Client,
		TTL:        ttl,
		pages:      cache.New[domain.ProductPage]("product_pages", d.cacheOptions()...),
		products:   cache.New[domain.Product]("products", d.cacheOptions()...),
		categories: cache.New[domain.Categories]("categories", d.cacheOptions()...),
	}
	s.store = resource.New(resource.Config[domain.Products]{
		Name:          "catalog",
		Fallback:      fallback.New[domain.Products](d.KV, fallback.NamespaceMockProducts),
		Key:           fallback.KeyAll,
		Empty:         func() domain.Products { return domain.Products{} },
		Bus:           d.Bus,
		Topic:         bus.CatalogChanged,
		SnapshotReads: d.SnapshotReads,
		Caches:        []resource.Invalidator{s.pages, s.products, s.categories},
	})
	return s
}

func (s *CatalogService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// List returns one page of products matching f.
func (s *CatalogService) List(ctx context.Context, f domain.ProductFilter) (domain.ProductPage, error) {
	f = f.Normalized()
	return resource.Get(ctx, s.store, resource.Read[domain.ProductPage, domain.Products]{
		Cache: s.pages,
		Key:   f.Key(),
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.ProductPage, transport.Result) {
			return transport.Call[domain.ProductPage](ctx, s.Client, transport.Request{
				Method:    http.MethodGet,
				Path:      "/products",
				Query:     f.Query(),
				Anonymous: true,
			})
		},
		Local: func(stored domain.Products) (domain.ProductPage, error) {
			return FilterProducts(stored, f), nil
		},
		Snapshot: func(stored domain.Products, fetched domain.ProductPage) domain.Products {
			return upsertProducts(stored, fetched.Items...)
		},
	})
}

// Get returns the product with the given id.
func (s *CatalogService) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.getOne(ctx, productIDPrefix+id, "/products/"+url.PathEscape(id), func(p domain.Product) bool {
		return p.ID == id
	})
}

// GetBySlug returns the product with the given slug.
func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (domain.Product, error) {
	return s.getOne(ctx, productSlugPrefix+slug, "/products/slug/"+url.PathEscape(slug), func(p domain.Product) bool {
		return p.Slug == slug
	})
}

func (s *CatalogService) getOne(ctx context.Context, key, path string, match func(domain.Product) bool) (domain.Product, error) {
	p, err := resource.Get(ctx, s.store, resource.Read[domain.Product, domain.Products]{
		Cache: s.products,
		Key:   key,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Product, transport.Result) {
			return transport.Call[domain.Product](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: path, Anonymous: true})
		},
		Local: func(stored domain.Products) (domain.Product, error) {
			for _, p := range stored {
				if match(p) {
					return p, nil
				}
			}
			return domain.Product{}, ErrProductNotFound
		},
		Snapshot: func(stored domain.Products, fetched domain.Product) domain.Products {
			return upsertProducts(stored, fetched)
		},
	})
	if err != nil {
		return domain.Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return p, nil
}

// Categories lists product categories. Locally they are derived from the
// categories of the stored products.
func (s *CatalogService) Categories(ctx context.Context) (domain.Categories, error) {
	return resource.Get(ctx, s.store, resource.Read[domain.Categories, domain.Products]{
		Cache: s.categories,
		Key:   categoriesKey,
		TTL:   s.TTL,
		Remote: func(ctx context.Context) (domain.Categories, transport.Result) {
			return transport.Call[domain.Categories](ctx, s.Client, transport.Request{Method: http.MethodGet, Path: "/categories", Anonymous: true})
		},
		Local: func(stored domain.Products) (domain.Categories, error) {
			return deriveCategories(stored), nil
		},
	})
}

// CreateProduct adds a product.
func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Product{}, domain.ErrInvalid
	}
	return resource.Mutate(ctx, s.store, resource.Mutation[domain.Product, domain.Products]{
		Name: "CreateProduct",
		Remote: func(ctx context.Context) (domain.Product, transport.Result) {
			return transport.Call[domain.Product](ctx, s.Client, transport.Request{Method: http.MethodPost, Path: "/products", Body: p})
		},
		Local: func(stored domain.Products) (domain.Products, domain.Product, error) {
			created := p
			if created.ID == "" {
				created.ID = uuid.NewString()
			}
			if created.Slug == "" {
				created.Slug = Slugify(created.Name)
			}
			if created.CreatedAt.IsZero() {
				created.CreatedAt = s.now().UTC()
			}
			return upsertProducts(stored, created), created, nil
		},
		Keys:     []string{categoriesKey},
		Prefixes: []string{productsPrefix},
	})
}

// UpdateProduct replaces the product with the given id.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, p domain.Product) (domain.Product, error) {
	out, err := resource.Mutate(ctx, s.store, resource.Mutation[domain.Product, domain.Products]{
		Name: "UpdateProduct",
		Remote: func(ctx context.Context) (domain.Product, transport.Result) {
			return transport.Call[domain.Product](ctx, s.Client, transport.Request{Method: http.MethodPut, Path: "/products/" + url.PathEscape(id), Body: p})
		},
		Local: func(stored domain.Products) (domain.Products, domain.Product, error) {
			i := indexOfProduct(stored, id)
			if i < 0 {
				return stored, domain.Product{}, ErrProductNotFound
			}
			updated := p
			updated.ID = id
			if updated.Slug == "" {
				updated.Slug = stored[i].Slug
			}
			if updated.CreatedAt.IsZero() {
				updated.CreatedAt = stored[i].CreatedAt
			}
			return upsertProducts(stored, updated), updated, nil
		},
		Keys:     []string{categoriesKey},
		Prefixes: []string{productsPrefix},
	})
	if err != nil {
		return domain.Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return out, nil
}

// DeleteProduct removes the product with the given id.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	_, err := resource.Mutate(ctx, s.store, resource.Mutation[struct{}, domain.Products]{
		Name: "DeleteProduct",
		Remote: func(ctx context.Context) (struct{}, transport.Result) {
			return struct{}{}, s.Client.Do(ctx, transport.Request{Method: http.MethodDelete, Path: "/products/" + url.PathEscape(id)})
		},
		Local: func(stored domain.Products) (domain.Products, struct{}, error) {
			i := indexOfProduct(stored, id)
			if i < 0 {
				return stored, struct{}{}, ErrProductNotFound
			}
			next := append(append(make(domain.Products, 0, len(stored)-1), stored[:i]...), stored[i+1:]...)
			return next, struct{}{}, nil
		},
		Keys:     []string{categoriesKey},
		Prefixes: []string{productsPrefix},
	})
	return mapNotFound(err, ErrProductNotFound)
}

// Seed replaces the local catalog copy, e.g. with a bundled demo catalog.
func (s *CatalogService) Seed(ctx context.Context, products domain.Products) error {
	ctx, span := observability.Tracer("services/CatalogService").Start(ctx, "Seed")
	defer span.End()
	span.SetAttributes(attribute.Int("products.count", len(products)))

	if err := s.store.Update(ctx, func(domain.Products) (domain.Products, error) {
		return upsertProducts(nil, products...), nil
	}); err != nil {
		return err
	}
	s.store.Invalidate([]string{categoriesKey}, []string{productsPrefix})
	s.store.Publish()
	return nil
}

// Reset drops the caches and the local copy.
func (s *CatalogService) Reset(ctx context.Context) error {
	return s.store.Reset(ctx)
}

func deriveCategories(stored domain.Products) domain.Categories {
	title := cases.Title(language.English)
	seen := make(map[string]struct{})
	out := domain.Categories{}
	for _, p := range stored {
		slug := Slugify(p.Category)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, domain.Category{ID: slug, Slug: slug, Name: title.String(strings.TrimSpace(p.Category))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// FilterProducts applies f to the local catalog the way the remote listing
// does: active products only, then category, price and stock filters,
// free-text search, sort order and paging.
func FilterProducts(all domain.Products, f domain.ProductFilter) domain.ProductPage {
	f = f.Normalized()
	fold := cases.Fold()
	category := fold.String(Slugify(f.Category))

	var rank map[string]int
	if strings.TrimSpace(f.Search) != "" {
		docs := make([]search.Document, 0, len(all))
		for _, p := range all {
			docs = append(docs, search.Document{ID: p.ID, Text: p.Name + " " + p.Description + " " + p.Category})
		}
		hits := search.New(docs).Match(f.Search)
		rank = make(map[string]int, len(hits))
		for i, h := range hits {
			rank[h.ID] = i
		}
	}

	matched := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if !p.IsActive {
			continue
		}
		if category != "" && fold.String(Slugify(p.Category)) != category {
			continue
		}
		if f.MinPrice > 0 && p.Price < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && p.Price > f.MaxPrice {
			continue
		}
		if f.InStock && p.Stock <= 0 {
			continue
		}
		if rank != nil {
			if _, ok := rank[p.ID]; !ok {
				continue
			}
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case domain.SortPriceAsc:
			return a.Price < b.Price
		case domain.SortPriceDesc:
			return a.Price > b.Price
		case domain.SortName:
			return fold.String(a.Name) < fold.String(b.Name)
		}
		if rank != nil && rank[a.ID] != rank[b.ID] {
			return rank[a.ID] < rank[b.ID]
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	page := domain.ProductPage{Items: []domain.Product{}, Total: len(matched), Page: f.Page, Limit: f.Limit}
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return page
	}
	end := min(start+f.Limit, len(matched))
	page.Items = append(page.Items, matched[start:end]...)
	return page
}

// Slugify lower-cases s and joins its words with dashes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugReplacer.Replace(s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

func indexOfProduct(ps domain.Products, id string) int {
	for i, p := range ps {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// upsertProducts returns a copy of stored with each product inserted or
// replaced by id.
func upsertProducts(stored domain.Products, products ...domain.Product) domain.Products {
	out := append(make(domain.Products, 0, len(stored)+len(products)), stored...)
	for _, p := range products {
		if i := indexOfProduct(out, p.ID); i >= 0 {
			out[i] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
