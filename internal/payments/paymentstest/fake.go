// Package paymentstest provides an in-memory payments.Client for tests.
package paymentstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmehdipour/subhub/internal/model"
)

// Fake serves lookups from maps and event listing from a fixed page list.
// Err, when set, fails every call.
type Fake struct {
	mu sync.Mutex

	Customers map[string]*model.Customer
	Invoices  map[string]*model.Invoice
	Charges   map[string]*model.Charge
	Products  map[string]*model.Product
	Pages     []model.EventPage
	Err       error

	Queries []model.EventQuery
	Calls   map[string]int
}

func New() *Fake {
	return &Fake{
		Customers: map[string]*model.Customer{},
		Invoices:  map[string]*model.Invoice{},
		Charges:   map[string]*model.Charge{},
		Products:  map[string]*model.Product{},
		Calls:     map[string]int{},
	}
}

func (f *Fake) count(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Calls == nil {
		f.Calls = map[string]int{}
	}
	f.Calls[name]++
	return f.Err
}

func lookup[T any](m map[string]*T, kind, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%s %s not found", kind, id)
	}
	return v, nil
}

func (f *Fake) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	if err := f.count("customer"); err != nil {
		return nil, err
	}
	return lookup(f.Customers, "customer", id)
}

func (f *Fake) GetInvoice(_ context.Context, id string) (*model.Invoice, error) {
	if err := f.count("invoice"); err != nil {
		return nil, err
	}
	return lookup(f.Invoices, "invoice", id)
}

func (f *Fake) GetCharge(_ context.Context, id string) (*model.Charge, error) {
	if err := f.count("charge"); err != nil {
		return nil, err
	}
	return lookup(f.Charges, "charge", id)
}

func (f *Fake) GetProduct(_ context.Context, id string) (*model.Product, error) {
	if err := f.count("product"); err != nil {
		return nil, err
	}
	return lookup(f.Products, "product", id)
}

// ListEvents returns Pages in order, one per call.
func (f *Fake) ListEvents(_ context.Context, q model.EventQuery) (model.EventPage, error) {
	if err := f.count("events"); err != nil {
		return model.EventPage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, q)
	n := len(f.Queries) - 1
	if n >= len(f.Pages) {
		return model.EventPage{}, nil
	}
	return f.Pages[n], nil
}

// CallCount returns how many times the named lookup ran.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}
