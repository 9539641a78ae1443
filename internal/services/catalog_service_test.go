package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/domain"
)

func ids(ps []domain.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func sameIDs(got []domain.Product, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFilterProducts(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.ProductFilter
		want   []string
		total  int
	}{
		{"active only, newest first", domain.ProductFilter{}, []string{boots.ID, sandals.ID, tee.ID}, 3},
		{"category by name", domain.ProductFilter{Category: "shoes"}, []string{boots.ID, sandals.ID}, 2},
		{"price range", domain.ProductFilter{MinPrice: 15, MaxPrice: 50}, []string{sandals.ID}, 1},
		{"in stock", domain.ProductFilter{Category: "Shoes", InStock: true}, []string{boots.ID}, 1},
		{"price ascending", domain.ProductFilter{Sort: domain.SortPriceAsc}, []string{tee.ID, sandals.ID, boots.ID}, 3},
		{"price descending", domain.ProductFilter{Sort: domain.SortPriceDesc}, []string{boots.ID, sandals.ID, tee.ID}, 3},
		{"name", domain.ProductFilter{Sort: domain.SortName}, []string{tee.ID, sandals.ID, boots.ID}, 3},
		{"search", domain.ProductFilter{Search: "boot"}, []string{boots.ID}, 1},
		{"search description", domain.ProductFilter{Search: "SUMMER"}, []string{sandals.ID}, 1},
		{"second page", domain.ProductFilter{Limit: 2, Page: 2}, []string{tee.ID}, 3},
		{"past the end", domain.ProductFilter{Limit: 2, Page: 5}, []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := FilterProducts(catalogFixture, tt.filter)
			if !sameIDs(page.Items, tt.want...) {
				t.Fatalf("items = %v, want %v", ids(page.Items), tt.want)
			}
			if page.Total != tt.total {
				t.Fatalf("total = %d, want %d", page.Total, tt.total)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"  Running Shoes ": "running-shoes",
		"Tops/T_shirts":    "tops-t-shirts",
		"a -- b":           "a-b",
		"":                 "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCatalogService_ServesLocalCopyWhileRemoteIsDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.catalog.Seed(ctx, catalogFixture); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	h.remote.SetDown(true)

	page, err := h.catalog.List(ctx, domain.ProductFilter{Category: "Shoes", Sort: domain.SortPriceAsc})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !sameIDs(page.Items, sandals.ID, boots.ID) {
		t.Fatalf("items = %v", ids(page.Items))
	}

	p, err := h.catalog.GetBySlug(ctx, boots.Slug)
	if err != nil || p.ID != boots.ID {
		t.Fatalf("GetBySlug = %+v, %v", p, err)
	}
	if _, err := h.catalog.Get(ctx, "nope"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("want ErrProductNotFound, got %v", err)
	}

	cats, err := h.catalog.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[0].Slug != "shirts" || cats[1].Name != "Shoes" {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestCatalogService_RemoteNotFoundMapsToProductNotFound(t *testing.T) {
	h := newHarness(t)
	h.remote.AddProducts(tee)
	ctx := context.Background()

	got, err := h.catalog.Get(ctx, tee.ID)
	if err != nil || got.Name != tee.Name {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := h.catalog.Get(ctx, "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("want ErrProductNotFound, got %v", err)
	}
}

func TestCatalogService_OfflineAdminEditsChangeLocalCopy(t *testing.T) {
	h := newHarness(t)
	rec := record(h.bus, bus.CatalogChanged)
	ctx := context.Background()
	if err := h.catalog.Seed(ctx, domain.Products{tee}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	h.remote.SetDown(true)

	created, err := h.catalog.CreateProduct(ctx, domain.Product{Name: "Rain Jacket", Category: "Outerwear", Price: 60, Stock: 4, IsActive: true})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if created.ID == "" || created.Slug != "rain-jacket" {
		t.Fatalf("created = %+v", created)
	}

	updated := created
	updated.Price = 55
	if _, err := h.catalog.UpdateProduct(ctx, created.ID, updated); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	page, err := h.catalog.List(ctx, domain.ProductFilter{Category: "outerwear"})
	if err != nil || len(page.Items) != 1 || page.Items[0].Price != 55 {
		t.Fatalf("List = %+v, %v", page, err)
	}

	if err := h.catalog.DeleteProduct(ctx, tee.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := h.catalog.DeleteProduct(ctx, tee.ID); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := h.catalog.CreateProduct(ctx, domain.Product{}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("nameless product: %v", err)
	}
	// Seed plus three successful edits.
	if got := rec.count(bus.CatalogChanged); got != 4 {
		t.Fatalf("catalog-changed deliveries = %d", got)
	}
}
