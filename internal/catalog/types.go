package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a backend identifier. The backend emits ids both as JSON numbers
// and as strings; both decode into the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		*id = ID(n.String())
	}
	return nil
}

func (id ID) String() string { return string(id) }

// Amount is a monetary value that may arrive as a number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Product is the subset of product fields the client works with.
type Product struct {
	ID         ID     `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	SKU        string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Price      Amount `json:"price" yaml:"price"`
	Stock      int    `json:"stock,omitempty" yaml:"stock,omitempty"`
	CategoryID ID     `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	BrandID    ID     `json:"brand_id,omitempty" yaml:"brand_id,omitempty"`
	ImageURL   string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// SearchProducts returns products whose name or SKU contains term,
// ignoring case. An empty term matches everything.
func SearchProducts(products []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return products
	}
	var out []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.SKU), term) {
			out = append(out, p)
		}
	}
	return out
}
