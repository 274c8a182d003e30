package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fiadopos/internal/domain"
	"fiadopos/internal/store"
	"fiadopos/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return New(repo, nil, time.Minute), repo
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func mustClient(t *testing.T, svc *Service, name string) *domain.Client {
	t.Helper()
	client, err := svc.CreateClient(context.Background(), domain.ClientCreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create client %s: %v", name, err)
	}
	return client
}

func mustProduct(t *testing.T, svc *Service, name string, price float64, trackStock bool, stock float64) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name:       name,
		Unit:       "unidad",
		UnitPrice:  price,
		UnitCost:   price * 0.7,
		TrackStock: trackStock,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func mustCreditSale(t *testing.T, svc *Service, clientID, productID string, quantity, unitPrice float64, at time.Time) *domain.Sale {
	t.Helper()
	sale, err := svc.CreateSale(context.Background(), domain.SaleDraft{
		ClientID: clientID,
		Type:     domain.SaleTypeCredit,
		SaleTime: &at,
		Items:    []domain.SaleItemDraft{{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}},
	})
	if err != nil {
		t.Fatalf("create credit sale: %v", err)
	}
	return sale
}

func TestAllocatePaymentFIFO(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Alimento", 1, false, 0)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := mustCreditSale(t, svc, client.ID, product.ID, 30, 1, base)
	newer := mustCreditSale(t, svc, client.ID, product.ID, 50, 1, base.Add(time.Hour))

	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 40})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if result.SalesSettled != 1 || result.SalesPartial != 1 {
		t.Fatalf("expected 1 settled and 1 partial, got %d/%d", result.SalesSettled, result.SalesPartial)
	}
	if !approx(result.TotalDebt, 40) {
		t.Fatalf("expected total debt 40, got %.2f", result.TotalDebt)
	}

	gotOlder, err := svc.GetSale(ctx, older.ID)
	if err != nil {
		t.Fatalf("get older sale: %v", err)
	}
	if gotOlder.Status != domain.SaleStatusPaid || !approx(gotOlder.RemainingBalance, 0) {
		t.Fatalf("older sale should be fully paid first, got %s balance %.2f", gotOlder.Status, gotOlder.RemainingBalance)
	}
	gotNewer, err := svc.GetSale(ctx, newer.ID)
	if err != nil {
		t.Fatalf("get newer sale: %v", err)
	}
	if gotNewer.Status != domain.SaleStatusPartial || !approx(gotNewer.RemainingBalance, 40) {
		t.Fatalf("newer sale should be partial with balance 40, got %s balance %.2f", gotNewer.Status, gotNewer.RemainingBalance)
	}

	// Overpay the remainder: 45 against a 40 balance leaves 5 prepaid credit.
	result, err = svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 45})
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if !approx(result.CreditAdded, 5) {
		t.Fatalf("expected 5 credit added, got %.2f", result.CreditAdded)
	}
	if !approx(result.TotalDebt, 0) {
		t.Fatalf("expected zero debt, got %.2f", result.TotalDebt)
	}
	gotClient, err := svc.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !approx(gotClient.Credit, 5) {
		t.Fatalf("expected client credit 5, got %.2f", gotClient.Credit)
	}
}

func TestAllocatePaymentNoOpenSales(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Ramón")

	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 25})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !approx(result.CreditAdded, 25) {
		t.Fatalf("whole amount should become credit, got %.2f", result.CreditAdded)
	}
	if result.SalesSettled != 0 || result.SalesPartial != 0 {
		t.Fatalf("no sales should have been touched")
	}
}

func TestAllocatePaymentRejectsNonPositive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")

	for _, amount := range []float64{0, -10} {
		_, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: amount})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("amount %.2f should be rejected with validation error, got %v", amount, err)
		}
	}
	payments, err := svc.ListClientPayments(ctx, client.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("rejected amounts must not write payment records")
	}
}

func TestSettleSaleIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 15, 1, time.Now().UTC())

	settled, err := svc.SettleSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != domain.SaleStatusPaid || !approx(settled.RemainingBalance, 0) {
		t.Fatalf("sale should be paid, got %s balance %.2f", settled.Status, settled.RemainingBalance)
	}
	payments, err := svc.ListClientPayments(ctx, client.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 || !approx(payments[0].Amount, 15) {
		t.Fatalf("expected one payment of 15, got %d", len(payments))
	}

	// Settling again must not create another payment or change anything.
	if _, err := svc.SettleSale(ctx, sale.ID); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	payments, _ = svc.ListClientPayments(ctx, client.ID)
	if len(payments) != 1 {
		t.Fatalf("second settle must be a no-op, got %d payments", len(payments))
	}
}

func TestEditSaleShrinkAbsorbedByBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Alfalfa", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 50, 1, time.Now().UTC())

	edited, err := svc.EditSale(ctx, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 20, UnitPrice: 1}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !approx(edited.RemainingBalance, 20) || edited.Status != domain.SaleStatusPartial {
		t.Fatalf("balance should shrink to 20, got %.2f %s", edited.RemainingBalance, edited.Status)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.Credit, 0) {
		t.Fatalf("no credit should be generated, got %.2f", gotClient.Credit)
	}
	if !approx(gotClient.TotalDebt, 20) {
		t.Fatalf("debt should follow the balance, got %.2f", gotClient.TotalDebt)
	}

	edited, err = svc.EditSale(ctx, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 5, UnitPrice: 1}},
	})
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if !approx(edited.RemainingBalance, 5) || edited.Status != domain.SaleStatusPartial {
		t.Fatalf("balance should shrink to 5, got %.2f %s", edited.RemainingBalance, edited.Status)
	}
}

func TestEditSaleOverpaidConvertsToCredit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Collar", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 50, 1, time.Now().UTC())

	if _, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 40}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Balance is 10; shrinking the total to 30 drives it to -10, which must
	// surface as prepaid credit, never a negative balance.
	edited, err := svc.EditSale(ctx, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 30, UnitPrice: 1}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !approx(edited.RemainingBalance, 0) || edited.Status != domain.SaleStatusPaid {
		t.Fatalf("balance should clamp to 0 and read paid, got %.2f %s", edited.RemainingBalance, edited.Status)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.Credit, 10) {
		t.Fatalf("excess should become credit, got %.2f", gotClient.Credit)
	}
	if !approx(gotClient.TotalDebt, 0) {
		t.Fatalf("debt should be zero, got %.2f", gotClient.TotalDebt)
	}
}

func TestDeleteSaleRestoresStockAndDebt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Piedras", 5, true, 10)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 3, 5, time.Now().UTC())

	gotProduct, _ := svc.GetProduct(ctx, product.ID)
	if !approx(gotProduct.Stock, 7) {
		t.Fatalf("sale should decrement stock to 7, got %.2f", gotProduct.Stock)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.TotalDebt, 15) {
		t.Fatalf("expected debt 15, got %.2f", gotClient.TotalDebt)
	}

	if err := svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	gotProduct, _ = svc.GetProduct(ctx, product.ID)
	if !approx(gotProduct.Stock, 10) {
		t.Fatalf("delete should restore stock to 10, got %.2f", gotProduct.Stock)
	}
	gotClient, _ = svc.GetClient(ctx, client.ID)
	if !approx(gotClient.TotalDebt, 0) {
		t.Fatalf("debt should be zero after delete, got %.2f", gotClient.TotalDebt)
	}
	if _, err := svc.GetSale(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("sale should be gone, got %v", err)
	}
}

func TestEditSaleReconcilesStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	tracked := mustProduct(t, svc, "Balanceado", 2, true, 100)
	untracked := mustProduct(t, svc, "Servicio", 10, false, 0)
	sale := mustCreditSale(t, svc, client.ID, tracked.ID, 40, 2, time.Now().UTC())

	if _, err := svc.EditSale(ctx, sale.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemDraft{
			{ProductID: tracked.ID, Quantity: 10, UnitPrice: 2},
			{ProductID: untracked.ID, Quantity: 1, UnitPrice: 10},
		},
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	gotTracked, _ := svc.GetProduct(ctx, tracked.ID)
	if !approx(gotTracked.Stock, 90) {
		t.Fatalf("old quantity should be restored before the new one is consumed, got %.2f", gotTracked.Stock)
	}
	gotUntracked, _ := svc.GetProduct(ctx, untracked.ID)
	if !approx(gotUntracked.Stock, 0) {
		t.Fatalf("untracked product stock must not move, got %.2f", gotUntracked.Stock)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)

	cases := []struct {
		name  string
		draft domain.SaleDraft
	}{
		{"empty items", domain.SaleDraft{ClientID: client.ID, Type: domain.SaleTypeCredit}},
		{"credit without client", domain.SaleDraft{Type: domain.SaleTypeCredit, Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 1}}}},
		{"unknown type", domain.SaleDraft{Type: "LAYAWAY", Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 1}}}},
		{"zero quantity", domain.SaleDraft{Type: domain.SaleTypeCash, Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 0}}}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateSale(ctx, tc.draft); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

// failingItemsRepo forces the item insert to fail so the compensating
// delete path can be observed.
type failingItemsRepo struct {
	store.Repository
}

func (f *failingItemsRepo) CreateSaleItems(context.Context, []domain.SaleItem) error {
	return errors.New("simulated write failure")
}

func TestCreateSaleCompensatingDelete(t *testing.T) {
	repo := memory.New()
	svc := New(&failingItemsRepo{Repository: repo}, nil, time.Minute)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)

	_, err := svc.CreateSale(ctx, domain.SaleDraft{
		ClientID: client.ID,
		Type:     domain.SaleTypeCredit,
		Items:    []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 5, UnitPrice: 1}},
	})
	if !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("expected partial write error, got %v", err)
	}
	sales, listErr := svc.ListSales(ctx)
	if listErr != nil {
		t.Fatalf("list sales: %v", listErr)
	}
	if len(sales) != 0 {
		t.Fatalf("the half-created sale must be deleted, found %d sales", len(sales))
	}
}

func TestCreateSaleCardFeeExpense(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if err := svc.SetSetting(ctx, domain.SettingCardFeePercent, "2.5"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	product := mustProduct(t, svc, "Alimento", 1, false, 0)

	if _, err := svc.CreateSale(ctx, domain.SaleDraft{
		Type:          domain.SaleTypeCash,
		PaymentMethod: domain.PaymentMethodCard,
		Items:         []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 200, UnitPrice: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	expenses, err := svc.ListExpenses(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected one card fee expense, got %d", len(expenses))
	}
	if expenses[0].Type != domain.ExpenseTypeCardFee || !approx(expenses[0].Amount, 5) {
		t.Fatalf("expected CARD_FEE of 5, got %s %.2f", expenses[0].Type, expenses[0].Amount)
	}
}

func TestEditPaymentDecreaseRestoresBalances(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 50, 1, time.Now().UTC())

	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 50})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := svc.EditPayment(ctx, result.Payment.ID, domain.PaymentRequest{Amount: 30}); err != nil {
		t.Fatalf("edit payment: %v", err)
	}
	gotSale, _ := svc.GetSale(ctx, sale.ID)
	if !approx(gotSale.RemainingBalance, 20) || gotSale.Status != domain.SaleStatusPartial {
		t.Fatalf("balance should reopen to 20, got %.2f %s", gotSale.RemainingBalance, gotSale.Status)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.TotalDebt, 20) {
		t.Fatalf("debt should be 20 after shrink, got %.2f", gotClient.TotalDebt)
	}
}

func TestEditPaymentIncreaseAllocatesDelta(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 50, 1, time.Now().UTC())

	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 20})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := svc.EditPayment(ctx, result.Payment.ID, domain.PaymentRequest{Amount: 35}); err != nil {
		t.Fatalf("edit payment: %v", err)
	}
	gotSale, _ := svc.GetSale(ctx, sale.ID)
	if !approx(gotSale.RemainingBalance, 15) {
		t.Fatalf("the 15 delta should pay the sale down to 15, got %.2f", gotSale.RemainingBalance)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.TotalDebt, 15) {
		t.Fatalf("debt should follow, got %.2f", gotClient.TotalDebt)
	}
}

func TestDeletePaymentDrainsCreditFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 30, 1, time.Now().UTC())

	// 40 against a 30 balance: sale paid, 10 credit.
	result, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 40})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := svc.DeletePayment(ctx, result.Payment.ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.Credit, 0) {
		t.Fatalf("the credit portion should be clawed back first, got %.2f", gotClient.Credit)
	}
	gotSale, _ := svc.GetSale(ctx, sale.ID)
	if !approx(gotSale.RemainingBalance, 30) {
		t.Fatalf("sale balance should fully reopen, got %.2f", gotSale.RemainingBalance)
	}
	if !approx(gotClient.TotalDebt, 30) {
		t.Fatalf("debt should be 30, got %.2f", gotClient.TotalDebt)
	}
}

func TestApplyClientCredit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)

	// Build up 30 of prepaid credit, then a 20 credit sale.
	if _, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 30}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	mustCreditSale(t, svc, client.ID, product.ID, 20, 1, time.Now().UTC())

	result, err := svc.ApplyClientCredit(ctx, client.ID)
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if !result.Payment.UsedCredit {
		t.Fatalf("credit application must be flagged used_credit")
	}
	if !approx(result.Payment.Amount, 20) {
		t.Fatalf("only the applicable portion should be spent, got %.2f", result.Payment.Amount)
	}
	gotClient, _ := svc.GetClient(ctx, client.ID)
	if !approx(gotClient.Credit, 10) || !approx(gotClient.TotalDebt, 0) {
		t.Fatalf("expected credit 10 and debt 0, got %.2f / %.2f", gotClient.Credit, gotClient.TotalDebt)
	}

	if _, err := svc.ApplyClientCredit(ctx, client.ID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("credit with no open debt should be rejected, got %v", err)
	}
}

func TestDeleteProductReferencedBySale(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)
	mustCreditSale(t, svc, client.ID, product.ID, 3, 1, time.Now().UTC())

	if err := svc.DeleteProduct(ctx, product.ID); !errors.Is(err, store.ErrIntegrity) {
		t.Fatalf("referenced product delete should fail with integrity error, got %v", err)
	}
}

func TestDebtInvariantAfterMixedOperations(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, false, 0)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s1 := mustCreditSale(t, svc, client.ID, product.ID, 30, 1, base)
	mustCreditSale(t, svc, client.ID, product.ID, 50, 1, base.Add(time.Hour))
	mustCreditSale(t, svc, client.ID, product.ID, 25, 1, base.Add(2*time.Hour))

	if _, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 45}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.EditSale(ctx, s1.ID, domain.SaleEditRequest{
		Items: []domain.SaleItemDraft{{ProductID: product.ID, Quantity: 10, UnitPrice: 1}},
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, err := svc.SettleSale(ctx, s1.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	gotClient, err := repo.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	sales, err := repo.ListSalesByClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	var sum float64
	for _, sale := range sales {
		if sale.Type == domain.SaleTypeCredit {
			if sale.RemainingBalance < 0 || sale.RemainingBalance > sale.FinalTotal+1e-6 {
				t.Fatalf("sale %s violates balance bounds: %.2f of %.2f", sale.ID, sale.RemainingBalance, sale.FinalTotal)
			}
			sum += sale.RemainingBalance
		}
	}
	if !approx(gotClient.TotalDebt, sum) {
		t.Fatalf("total debt %.2f diverged from balance sum %.2f", gotClient.TotalDebt, sum)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	product := mustProduct(t, svc, "Maíz", 1, true, 100)
	sale := mustCreditSale(t, svc, client.ID, product.ID, 30, 1, time.Now().UTC())
	if _, err := svc.AllocatePayment(ctx, client.ID, domain.PaymentRequest{Amount: 10}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Flete", Amount: 12}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	backup, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if backup.Version != domain.BackupVersion {
		t.Fatalf("unexpected backup version %d", backup.Version)
	}

	if err := svc.ImportBackup(ctx, backup); err != nil {
		t.Fatalf("import: %v", err)
	}

	restored, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if len(restored.Clients) != 1 || len(restored.Products) != 1 || len(restored.Sales) != 1 ||
		len(restored.SaleItems) != 1 || len(restored.Payments) != 1 || len(restored.Expenses) != 1 {
		t.Fatalf("dataset shape changed across round trip: %d/%d/%d/%d/%d/%d",
			len(restored.Clients), len(restored.Products), len(restored.Sales),
			len(restored.SaleItems), len(restored.Payments), len(restored.Expenses))
	}
	gotSale, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("sale lost in round trip: %v", err)
	}
	if !approx(gotSale.RemainingBalance, 20) {
		t.Fatalf("sale balance changed across round trip: %.2f", gotSale.RemainingBalance)
	}
	if len(gotSale.Items) != 1 || gotSale.Items[0].ProductID != product.ID {
		t.Fatalf("sale items lost their product relationship")
	}
}

func TestImportBackupRejectsUnknownVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.ImportBackup(ctx, &domain.Backup{Version: 2})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("unknown version should be rejected, got %v", err)
	}
	if err := svc.ImportBackup(ctx, nil); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("nil document should be rejected, got %v", err)
	}
}

func TestSummaryReflectsLedger(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	client := mustClient(t, svc, "Marta")
	low := mustProduct(t, svc, "Antiparasitario", 10, true, 2)
	if _, err := svc.UpdateProduct(ctx, low.ID, domain.ProductUpdateRequest{MinStock: floatPtr(4)}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	mustCreditSale(t, svc, client.ID, low.ID, 1, 10, time.Now().UTC())

	report, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !approx(report.ReceivablesTotal, 10) {
		t.Fatalf("receivables should be 10, got %.2f", report.ReceivablesTotal)
	}
	if len(report.LowStock) != 1 || report.LowStock[0].ProductID != low.ID {
		t.Fatalf("low stock product missing from report")
	}
	if report.TodaySalesCount != 1 || !approx(report.TodaySalesTotal, 10) {
		t.Fatalf("today sales should include the credit sale, got %d / %.2f", report.TodaySalesCount, report.TodaySalesTotal)
	}
}

func floatPtr(v float64) *float64 { return &v }
