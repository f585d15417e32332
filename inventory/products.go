package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Service) Products(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

// CreateProduct adds a product. Names are unique regardless of case.
func (s *Service) CreateProduct(ctx context.Context, name, description string) (p Product, err error) {
	const op = "create_product"
	defer s.observe(op, time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, invalid(op, "name", "product name is required")
	}
	if err := s.productNameFree(ctx, op, "", name); err != nil {
		return Product{}, err
	}
	p = Product{
		ID:          ProductID(s.newID()),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if _, err := s.commit(ctx, op, WriteSet{Products: []ProductWrite{{Product: p, Create: true}}}); err != nil {
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct renames or re-describes a product. Fills and log entries
// that reference the old name are left as they are.
func (s *Service) UpdateProduct(ctx context.Context, id ProductID, name, description string) (p Product, err error) {
	const op = "update_product"
	defer s.observe(op, time.Now(), &err)

	cur, err := s.product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, invalid(op, "name", "product name is required")
	}
	if err := s.productNameFree(ctx, op, id, name); err != nil {
		return Product{}, err
	}
	p = cur
	p.Name = name
	p.Description = strings.TrimSpace(description)
	if _, err := s.commit(ctx, op, WriteSet{Products: []ProductWrite{{Product: p}}}); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct removes a product that no filled container holds.
func (s *Service) DeleteProduct(ctx context.Context, id ProductID) (res Result, err error) {
	const op = "delete_product"
	defer s.observe(op, time.Now(), &err)

	p, err := s.product(ctx, id)
	if err != nil {
		return Result{}, err
	}
	filled, err := s.store.ListContainers(ctx, ContainerFilter{Status: StatusFilled})
	if err != nil {
		return Result{}, err
	}
	for _, c := range filled {
		if sameName(c.Fill.ProductType, p.Name) {
			return Result{}, invalid(op, "productId", "product %s is in use by container %s", p.Name, c.Name)
		}
	}

	e := Entry{
		ID:          EntryID(s.newID()),
		Type:        EntryDeleteProduct,
		ProductType: p.Name,
		Notes:       fmt.Sprintf("Product %s deleted.", p.Name),
	}
	return s.commit(ctx, op, WriteSet{
		Products: []ProductWrite{{Product: p, Delete: true}},
		Append:   []Entry{e},
	})
}

// SeedProducts creates the given products when none exist yet. It returns
// the number created.
func (s *Service) SeedProducts(ctx context.Context, products []Product) (n int, err error) {
	const op = "seed_products"
	defer s.observe(op, time.Now(), &err)

	existing, err := s.store.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 || len(products) == 0 {
		return 0, nil
	}
	var ws WriteSet
	for _, p := range products {
		p.ID = ProductID(s.newID())
		p.CreatedAt = s.now()
		ws.Products = append(ws.Products, ProductWrite{Product: p, Create: true})
	}
	if _, err := s.commit(ctx, op, ws); err != nil {
		return 0, err
	}
	return len(ws.Products), nil
}

func (s *Service) product(ctx context.Context, id ProductID) (Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p == nil {
		return Product{}, &NotFoundError{Kind: "product", ID: string(id)}
	}
	return *p, nil
}

func (s *Service) productNameFree(ctx context.Context, op string, self ProductID, name string) error {
	all, err := s.store.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.ID != self && sameName(p.Name, name) {
			return invalid(op, "name", "product %q already exists", name)
		}
	}
	return nil
}
