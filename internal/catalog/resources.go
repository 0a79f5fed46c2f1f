// Package catalog describes the backend resources the client reads and the
// shared domain types that come back from them.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownResource is returned by Lookup for unregistered names.
var ErrUnknownResource = errors.New("unknown resource")

// Resource is a readable collection on the backend.
type Resource struct {
	Name string
	// Path is relative to the API base URL.
	Path string
	// CacheKey is shared by every reader of the collection.
	CacheKey string
	// Envelope is the response member holding the collection, if any.
	Envelope string
}

func resource(name, path, envelope string) Resource {
	return Resource{Name: name, Path: path, CacheKey: name + "-list", Envelope: envelope}
}

// Resources lists every known collection keyed by name.
var Resources = map[string]Resource{
	"products":        resource("products", "/products", "products"),
	"categories":      resource("categories", "/categories", "categories"),
	"brands":          resource("brands", "/brands", "brands"),
	"orders":          {Name: "orders", Path: "/orders", CacheKey: "orders", Envelope: "orders"},
	"coupons":         resource("coupons", "/coupons", "coupons"),
	"roles":           resource("roles", "/roles", "roles"),
	"banners":         resource("banners", "/banners", "banners"),
	"payment-methods": resource("payment-methods", "/payment-methods", "payment_methods"),
	"bank-accounts":   resource("bank-accounts", "/bank-accounts", "bank_accounts"),
	"settings":        resource("settings", "/settings", "settings"),
	"analytics":       resource("analytics", "/analytics/dashboard", "analytics"),
	"outlets":         resource("outlets", "/outlets", "data"),
	"customers":       resource("customers", "/customers", "data"),
	"tables":          resource("tables", "/tables", "data"),
}

// Lookup returns the resource registered under name.
func Lookup(name string) (Resource, error) {
	r, ok := Resources[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return r, nil
}

// Names returns the registered resource names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Resources))
	for name := range Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
