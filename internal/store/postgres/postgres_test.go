package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"fiadopos/internal/domain"
	"fiadopos/internal/service"
	"fiadopos/internal/store"
)

// newTestStore connects to the database named by TEST_DATABASE_URL and
// wipes it. Skipped when the variable is unset so the suite stays runnable
// without infrastructure.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	// Child tables first.
	for _, clear := range []func(context.Context) error{
		s.ClearSaleItems, s.ClearPayments, s.ClearExpenses, s.ClearSales, s.ClearProducts, s.ClearClients,
	} {
		if err := clear(ctx); err != nil {
			t.Fatalf("wipe: %v", err)
		}
	}
	return s
}

func TestSettlementFlowAgainstPostgres(t *testing.T) {
	repo := newTestStore(t)
	svc := service.New(repo, nil, time.Minute)
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, domain.ClientCreateRequest{Name: "Marta Giménez"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Alimento Perro 25kg", Unit: "bolsa", UnitPrice: 30, UnitCost: 21, TrackStock: true, Stock: 10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	older, err := svc.CreateSale(ctx, domain.SaleDraft{
		ClientID: client.ID, Type: domain.SaleTypeCredit, SaleTime: &base,
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create older sale: %v", err)
	}
	later := base.Add(time.Hour)
	newer, err := svc.CreateSale(ctx, domain.SaleDraft{
		ClientID: client.ID, Type: domain.SaleTypeCredit, SaleTime: &later,
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create newer sale: %v", err)
	}

	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 40})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if result.SalesSettled != 1 || result.SalesPartial != 1 {
		t.Fatalf("expected 1 settled / 1 partial, got %d/%d", result.SalesSettled, result.SalesPartial)
	}

	gotOlder, err := repo.GetSale(ctx, older.ID)
	if err != nil {
		t.Fatalf("get older: %v", err)
	}
	if gotOlder.Status != domain.SaleStatusPaid {
		t.Fatalf("older sale should settle first, got %s", gotOlder.Status)
	}
	gotNewer, err := repo.GetSale(ctx, newer.ID)
	if err != nil {
		t.Fatalf("get newer: %v", err)
	}
	if math.Abs(gotNewer.RemainingBalance-50) > 0.01 {
		t.Fatalf("newer balance should be 50, got %.2f", gotNewer.RemainingBalance)
	}

	gotClient, err := repo.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if math.Abs(gotClient.TotalDebt-50) > 0.01 {
		t.Fatalf("debt should be 50, got %.2f", gotClient.TotalDebt)
	}
	gotProduct, err := repo.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if math.Abs(gotProduct.Stock-7) > 0.01 {
		t.Fatalf("stock should be 7, got %.2f", gotProduct.Stock)
	}
}

func TestForeignKeyMapping(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	// An item pointing at a missing sale must surface as an integrity error.
	err := repo.CreateSaleItems(ctx, []domain.SaleItem{{
		ID: "itm-test-1", SaleID: "sal-missing", ProductID: "prd-missing",
		ProductName: "x", Quantity: 1, UnitPrice: 1, LineTotal: 1,
	}})
	if !errors.Is(err, store.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	if _, err := repo.GetClient(ctx, "cli-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBackupRoundTripAgainstPostgres(t *testing.T) {
	repo := newTestStore(t)
	svc := service.New(repo, nil, time.Minute)
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, domain.ClientCreateRequest{Name: "Ramón Ayala"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Maíz Partido", Unit: "kg", UnitPrice: 3})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleDraft{
		ClientID: client.ID, Type: domain.SaleTypeCredit,
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 10}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	backup, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := svc.ImportBackup(ctx, backup); err != nil {
		t.Fatalf("import: %v", err)
	}

	restored, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if len(restored.Clients) != 1 || len(restored.Sales) != 1 || len(restored.SaleItems) != 1 {
		t.Fatalf("dataset shape changed across round trip: %d/%d/%d",
			len(restored.Clients), len(restored.Sales), len(restored.SaleItems))
	}
}
