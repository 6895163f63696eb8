package domain

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyProductName = errors.New("catalog product name is empty")
	ErrNegativePrice    = errors.New("catalog price must not be negative")
	ErrDuplicateProduct = errors.New("catalog product is duplicated")
)

// Product is a catalog entry.
type Product struct {
	Name      string
	UnitPrice decimal.Decimal
}

// Catalog maps product names to unit prices. It is immutable once built.
type Catalog struct {
	prices map[string]decimal.Decimal
	names  []string
}

// DefaultCatalog returns the built-in product list.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Product{
		{Name: "manjar", UnitPrice: decimal.RequireFromString("1.50")},
		{Name: "manjar con pecana", UnitPrice: decimal.RequireFromString("2.00")},
		{Name: "cubo", UnitPrice: decimal.RequireFromString("3.00")},
		{Name: "oreo", UnitPrice: decimal.RequireFromString("2.00")},
		{Name: "oreo manjar", UnitPrice: decimal.RequireFromString("2.50")},
	})
	return c
}

// NewCatalog validates the products and builds a catalog.
func NewCatalog(products []Product) (*Catalog, error) {
	c := &Catalog{prices: make(map[string]decimal.Decimal, len(products))}
	for _, p := range products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, ErrEmptyProductName
		}
		if p.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrNegativePrice, name)
		}
		if _, ok := c.prices[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, name)
		}
		c.prices[name] = p.UnitPrice
		c.names = append(c.names, name)
	}
	// Longest names first so that menus list compound products before their prefixes.
	sort.SliceStable(c.names, func(i, j int) bool {
		if len(c.names[i]) != len(c.names[j]) {
			return len(c.names[i]) > len(c.names[j])
		}
		return c.names[i] < c.names[j]
	})
	return c, nil
}

type catalogFile struct {
	Products []struct {
		Name  string `yaml:"name"`
		Price string `yaml:"price"`
	} `yaml:"products"`
}

// LoadCatalog reads a YAML catalog file of the form:
//
//	products:
//	  - name: manjar
//	    price: "1.50"
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	products := make([]Product, 0, len(file.Products))
	for _, entry := range file.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(entry.Price))
		if err != nil {
			return nil, fmt.Errorf("catalog price for %q: %w", entry.Name, err)
		}
		products = append(products, Product{Name: entry.Name, UnitPrice: price})
	}
	return NewCatalog(products)
}

// Price returns the unit price of a product, or zero for unknown products.
func (c *Catalog) Price(name string) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return c.prices[name]
}

// Has reports whether the product is listed.
func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.prices[name]
	return ok
}

// Names lists products ordered by name length, longest first.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Products lists catalog entries in the same order as Names.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, Product{Name: name, UnitPrice: c.prices[name]})
	}
	return out
}

// Total sums quantity times unit price. Unknown products contribute zero.
func (c *Catalog) Total(items map[string]int) decimal.Decimal {
	total := decimal.Zero
	for product, qty := range items {
		total = total.Add(c.Price(product).Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}
