package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Product is a catalog entry. The stores treat it as read-only except for the
// administrative local-copy edits made while the remote is unavailable.
type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"isActive"`
	Images      []string  `json:"images,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate rejects products without identity or with a negative price.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: product has no id", ErrInvalid)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: product %s has a negative price", ErrInvalid, p.ID)
	}
	return nil
}

// Products is the local catalog copy kept for outages.
type Products []Product

// Validate checks every product.
func (ps Products) Validate() error {
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Category groups products.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Categories is the payload of GET /categories.
type Categories []Category

// Sort orders accepted by ProductFilter.Sort.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// Paging bounds of product listings.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ProductFilter selects a page of the catalog.
type ProductFilter struct {
	Category string  `json:"category,omitempty"`
	Search   string  `json:"search,omitempty"`
	MinPrice float64 `json:"minPrice,omitempty"`
	MaxPrice float64 `json:"maxPrice,omitempty"`
	InStock  bool    `json:"inStock,omitempty"`
	Sort     string  `json:"sort,omitempty"`
	Page     int     `json:"page,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// Normalized returns f with paging defaults applied.
func (f ProductFilter) Normalized() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	switch f.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
	default:
		f.Sort = SortNewest
	}
	return f
}

// Query encodes the filter as remote query parameters. Encoding is sorted by
// key, so equal filters produce equal strings.
func (f ProductFilter) Query() url.Values {
	f = f.Normalized()
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.MinPrice > 0 {
		q.Set("minPrice", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		q.Set("maxPrice", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.InStock {
		q.Set("inStock", "true")
	}
	q.Set("sort", f.Sort)
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("limit", strconv.Itoa(f.Limit))
	return q
}

// Key is the stable cache key of the filter.
func (f ProductFilter) Key() string {
	return "products:list:" + f.Query().Encode()
}

// ProductPage is one page of a filtered listing.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// Normalize replaces a nil item slice with an empty one.
func (p *ProductPage) Normalize() {
	if p.Items == nil {
		p.Items = []Product{}
	}
}

// Validate checks every product of the page.
func (p ProductPage) Validate() error {
	return Products(p.Items).Validate()
}
