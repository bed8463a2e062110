package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/store"
)

type CatalogService struct {
	catalog  store.Catalog
	pageSize int
}

func NewCatalogService(catalog store.Catalog, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 16
	}
	return &CatalogService{catalog: catalog, pageSize: pageSize}
}

// SearchProducts lists published products. Page size is fixed by configuration.
func (s *CatalogService) SearchProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	q.PageSize = s.pageSize
	return s.catalog.SearchProducts(ctx, q)
}

// Variations returns the variants of a product with, per attribute, the
// sorted distinct values the POS offers as choices.
func (s *CatalogService) Variations(ctx context.Context, productID int64) (*domain.Variations, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Published {
		return nil, fmt.Errorf("product %d is not published: %w", productID, domain.ErrNotFound)
	}

	variants, err := s.catalog.ListVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	attributes := make(map[string][]string)
	for _, v := range variants {
		for name, value := range v.Attributes {
			if !slices.Contains(attributes[name], value) {
				attributes[name] = append(attributes[name], value)
			}
		}
	}
	for name := range attributes {
		slices.Sort(attributes[name])
	}

	return &domain.Variations{ProductID: productID, Variants: variants, Attributes: attributes}, nil
}
