//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 7 {
		t.Fatalf("expected 7 products, got %d", len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var espresso *productResponse
	for i := range products {
		if products[i].ID == "espresso" {
			espresso = &products[i]
			break
		}
	}

	if espresso == nil {
		t.Fatal("product 'espresso' not found")
	}
	if espresso.Name != "Espresso" {
		t.Errorf("name: got %q, want %q", espresso.Name, "Espresso")
	}
	if espresso.Price != 2.5 {
		t.Errorf("price: got %v, want 2.5", espresso.Price)
	}
	if espresso.TaxPct != 10 {
		t.Errorf("taxPct: got %v, want 10", espresso.TaxPct)
	}
	if espresso.Stock <= 0 {
		t.Errorf("stock: got %d, want > 0", espresso.Stock)
	}
}
