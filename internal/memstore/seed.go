package memstore

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

// SeedDemo loads the fixture data used by STORE=memory.
func (s *Store) SeedDemo() {
	s.PutCustomer(orders.Customer{ID: "c0000000-0000-0000-0000-000000000001", Name: "Toko Maju", Email: "buyer@tokomaju.id"})
	s.PutCustomer(orders.Customer{ID: "c0000000-0000-0000-0000-000000000002", Name: "Warung Sari", Phone: "+62-21-555-0102"})

	s.PutProduct(orders.Product{
		ID: "p0000000-0000-0000-0000-000000000001", Name: "Kopi Arabika 250g",
		UnitPrice: decimal.RequireFromString("65000"), UnitCost: decimal.RequireFromString("41000"),
		Quantity: 40, ReorderLevel: 10,
	})
	s.PutProduct(orders.Product{
		ID: "p0000000-0000-0000-0000-000000000002", Name: "Teh Melati 100g",
		UnitPrice: decimal.RequireFromString("18500"), UnitCost: decimal.RequireFromString("9000"),
		Quantity: 8, ReorderLevel: 10,
	})
	s.PutProduct(orders.Product{
		ID: "p0000000-0000-0000-0000-000000000003", Name: "Gula Aren 500g",
		UnitPrice: decimal.RequireFromString("32000"), UnitCost: decimal.RequireFromString("21000"),
		Quantity: 0, ReorderLevel: 5,
	})
}
