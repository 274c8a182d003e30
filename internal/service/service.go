// Package service implements the ledger and settlement engine: FIFO payment
// allocation, client debt recomputation, stock reconciliation, coordinated
// sale mutations with compensating deletes, and full-dataset backup
// export/import.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"fiadopos/internal/cache"
	"fiadopos/internal/domain"
	"fiadopos/internal/store"
)

var (
	// ErrPartialWrite reports that a multi-step write failed partway and a
	// compensating action was applied. Callers should not blindly retry.
	ErrPartialWrite = errors.New("partial write, compensating action applied")

	// ErrConsistencyDrift reports a mid-sequence write failure that may have
	// left the ledger inconsistent. Manual verification is required.
	ErrConsistencyDrift = errors.New("ledger may be inconsistent, please verify")
)

// paidEpsilon is the float tolerance under which a balance counts as zero.
const paidEpsilon = 0.01

const dateLayout = "2006-01-02"

type actorKey struct{}

// WithActor attaches the authenticated actor to the context so mutations can
// be attributed in the audit log.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey{}).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{Username: "system", Role: "system"}
}

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NewNoop()
	}
	if summaryTTL <= 0 {
		summaryTTL = 60 * time.Second
	}
	return &Service{repo: repo, summaries: summaries, summaryTTL: summaryTTL}
}

func statusForBalance(balance float64) string {
	if balance <= paidEpsilon {
		return domain.SaleStatusPaid
	}
	return domain.SaleStatusPartial
}

func (s *Service) logAudit(ctx context.Context, action, entityType, entityID, detail string) {
	actor := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
	})
	if err != nil {
		log.Printf("[service] WARN: audit write failed for %s %s: %v", action, entityID, err)
	}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	s.summaries.Invalidate(ctx)
}

// --- clients ---

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (*domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", store.ErrValidation)
	}
	client, err := s.repo.CreateClient(ctx, domain.Client{
		Name:    name,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "client", client.ID, client.Name)
	return client, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (*domain.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: client name cannot be empty", store.ErrValidation)
		}
		client.Name = name
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		client.Address = strings.TrimSpace(*req.Address)
	}
	if req.NextPaymentDate != nil {
		raw := strings.TrimSpace(*req.NextPaymentDate)
		if raw == "" {
			client.NextPaymentDate = nil
		} else {
			t, err := time.Parse(dateLayout, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: next_payment_date must be YYYY-MM-DD", store.ErrValidation)
			}
			client.NextPaymentDate = &t
		}
	}
	updated, err := s.repo.UpdateClient(ctx, *client)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "client", updated.ID, updated.Name)
	return updated, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "client", id, "")
	s.invalidateSummary(ctx)
	return nil
}

// --- products ---

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is required", store.ErrValidation)
	}
	if req.UnitPrice < 0 || req.UnitCost < 0 {
		return nil, fmt.Errorf("%w: prices cannot be negative", store.ErrValidation)
	}
	product, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       name,
		Department: strings.TrimSpace(req.Department),
		Category:   strings.TrimSpace(req.Category),
		Unit:       strings.TrimSpace(req.Unit),
		Barcode:    strings.TrimSpace(req.Barcode),
		UnitPrice:  req.UnitPrice,
		UnitCost:   req.UnitCost,
		TrackStock: req.TrackStock,
		Stock:      req.Stock,
		MinStock:   req.MinStock,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "product", product.ID, product.Name)
	s.invalidateSummary(ctx)
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.repo.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product name cannot be empty", store.ErrValidation)
		}
		product.Name = name
	}
	if req.Department != nil {
		product.Department = strings.TrimSpace(*req.Department)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		product.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price cannot be negative", store.ErrValidation)
		}
		product.UnitPrice = *req.UnitPrice
	}
	if req.UnitCost != nil {
		if *req.UnitCost < 0 {
			return nil, fmt.Errorf("%w: unit cost cannot be negative", store.ErrValidation)
		}
		product.UnitCost = *req.UnitCost
	}
	if req.TrackStock != nil {
		product.TrackStock = *req.TrackStock
	}
	if req.MinStock != nil {
		product.MinStock = *req.MinStock
	}
	updated, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "product", updated.ID, updated.Name)
	s.invalidateSummary(ctx)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "product", id, "")
	s.invalidateSummary(ctx)
	return nil
}

// AdjustStock applies a manual stock correction outside the sale flow, for
// example after receiving a delivery or a physical recount.
func (s *Service) AdjustStock(ctx context.Context, id string, delta float64) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: stock adjustment cannot be zero", store.ErrValidation)
	}
	if err := s.repo.AdjustProductStock(ctx, id, delta); err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "adjust_stock", "product", id, fmt.Sprintf("%+g", delta))
	s.invalidateSummary(ctx)
	return product, nil
}

// --- stock reconciliation ---

type stockDirection int

const (
	stockDecrement stockDirection = iota
	stockIncrement
)

// applyStock adjusts product stock for the given items. It is best-effort:
// a failed write for one product is logged and does not block the rest.
// Stock may go negative, which records an over-sale.
func (s *Service) applyStock(ctx context.Context, items []domain.SaleItem, direction stockDirection) {
	for _, item := range items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			log.Printf("[service] WARN: stock reconcile skipped, product %s: %v", item.ProductID, err)
			continue
		}
		if !product.TrackStock {
			continue
		}
		delta := -item.Quantity
		if direction == stockIncrement {
			delta = item.Quantity
		}
		if err := s.repo.AdjustProductStock(ctx, item.ProductID, delta); err != nil {
			log.Printf("[service] WARN: stock reconcile failed for product %s: %v", item.ProductID, err)
		}
	}
}

// --- debt recomputation ---

// recomputeClientDebt resums the client's open credit-sale balances and
// overwrites the cached totalDebt, bumping lastInteraction. The cached field
// is never trusted as a source of truth.
func (s *Service) recomputeClientDebt(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSalesByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, sale := range sales {
		if sale.Type == domain.SaleTypeCredit {
			total += sale.RemainingBalance
		}
	}
	if total < 0 {
		total = 0
	}
	client.TotalDebt = total
	client.LastInteraction = time.Now().UTC()
	return s.repo.UpdateClient(ctx, *client)
}

// --- sale mutation coordinator ---

// buildItems resolves drafts against the product catalog, snapshotting name
// and unit price at sale time.
func (s *Service) buildItems(ctx context.Context, saleID string, drafts []domain.SaleItemDraft) ([]domain.SaleItem, float64, error) {
	if len(drafts) == 0 {
		return nil, 0, fmt.Errorf("%w: sale needs at least one item", store.ErrValidation)
	}
	items := make([]domain.SaleItem, 0, len(drafts))
	var subtotal float64
	for _, draft := range drafts {
		if draft.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item quantity must be positive", store.ErrValidation)
		}
		product, err := s.repo.GetProduct(ctx, draft.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, 0, fmt.Errorf("%w: product %s", store.ErrNotFound, draft.ProductID)
			}
			return nil, 0, err
		}
		unitPrice := draft.UnitPrice
		if unitPrice == 0 {
			unitPrice = product.UnitPrice
		}
		if unitPrice < 0 {
			return nil, 0, fmt.Errorf("%w: item unit price cannot be negative", store.ErrValidation)
		}
		lineTotal := draft.Quantity * unitPrice
		items = append(items, domain.SaleItem{
			SaleID:      saleID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    draft.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
		subtotal += lineTotal
	}
	return items, subtotal, nil
}

func (s *Service) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	saleType := strings.ToUpper(strings.TrimSpace(draft.Type))
	if saleType != domain.SaleTypeCash && saleType != domain.SaleTypeCredit {
		return nil, fmt.Errorf("%w: sale type must be CASH or CREDIT", store.ErrValidation)
	}
	if saleType == domain.SaleTypeCredit && draft.ClientID == "" {
		return nil, fmt.Errorf("%w: a credit sale requires a client", store.ErrValidation)
	}

	var clientName string
	if draft.ClientID != "" {
		client, err := s.repo.GetClient(ctx, draft.ClientID)
		if err != nil {
			return nil, err
		}
		clientName = client.Name
	}

	items, subtotal, err := s.buildItems(ctx, "", draft.Items)
	if err != nil {
		return nil, err
	}
	finalTotal := subtotal + draft.Adjustment
	if finalTotal < 0 {
		return nil, fmt.Errorf("%w: adjustment cannot drive the total negative", store.ErrValidation)
	}

	sale := domain.Sale{
		ClientID:        draft.ClientID,
		ClientName:      clientName,
		Type:            saleType,
		PaymentMethod:   strings.ToLower(strings.TrimSpace(draft.PaymentMethod)),
		Subtotal:        subtotal,
		Adjustment:      draft.Adjustment,
		FinalTotal:      finalTotal,
		DeliveryAddress: strings.TrimSpace(draft.DeliveryAddress),
		DeliveryNotes:   strings.TrimSpace(draft.DeliveryNotes),
	}
	if draft.SaleTime != nil {
		sale.SaleTime = draft.SaleTime.UTC()
	}
	if saleType == domain.SaleTypeCredit {
		sale.RemainingBalance = finalTotal
		sale.Status = domain.SaleStatusPending
	} else {
		sale.RemainingBalance = 0
		sale.Status = domain.SaleStatusPaid
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SaleID = created.ID
	}
	if err := s.repo.CreateSaleItems(ctx, items); err != nil {
		// Never leave an item-less sale behind.
		if delErr := s.repo.DeleteSale(ctx, created.ID); delErr != nil {
			log.Printf("[service] ERROR: compensating delete of sale %s failed: %v", created.ID, delErr)
			return nil, fmt.Errorf("%w: item insert and compensating delete both failed: %v", ErrConsistencyDrift, err)
		}
		return nil, fmt.Errorf("%w: sale item insert failed: %v", ErrPartialWrite, err)
	}

	s.applyStock(ctx, items, stockDecrement)

	if saleType == domain.SaleTypeCredit {
		if _, err := s.recomputeClientDebt(ctx, created.ClientID); err != nil {
			return nil, fmt.Errorf("%w: debt recompute after sale %s: %v", ErrConsistencyDrift, created.ID, err)
		}
	}
	if saleType == domain.SaleTypeCash && sale.PaymentMethod == domain.PaymentMethodCard {
		s.recordCardFee(ctx, created.ID, finalTotal)
	}

	created.Items = items
	s.logAudit(ctx, "create", "sale", created.ID, fmt.Sprintf("%s %.2f", saleType, finalTotal))
	s.invalidateSummary(ctx)
	return created, nil
}

// recordCardFee synthesizes a CARD_FEE expense for a card-paid cash sale,
// using the configured surcharge percentage. Best-effort.
func (s *Service) recordCardFee(ctx context.Context, saleID string, finalTotal float64) {
	raw, err := s.repo.GetSetting(ctx, domain.SettingCardFeePercent)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: card fee setting read failed: %v", err)
		}
		return
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || percent <= 0 {
		return
	}
	fee := finalTotal * percent / 100
	if fee <= 0 {
		return
	}
	_, err = s.repo.CreateExpense(ctx, domain.Expense{
		Description: fmt.Sprintf("Card fee for sale %s", saleID),
		Amount:      fee,
		Type:        domain.ExpenseTypeCardFee,
	})
	if err != nil {
		log.Printf("[service] WARN: card fee expense for sale %s failed: %v", saleID, err)
	}
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListClientSales(ctx context.Context, clientID string) ([]domain.Sale, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListSalesByClient(ctx, clientID)
}

// EditSale replaces a sale's items wholesale and applies the given
// adjustment. The adjustment is always required: callers must pass the value
// they want, never rely on the stored one being preserved.
func (s *Service) EditSale(ctx context.Context, saleID string, req domain.SaleEditRequest) (*domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	newItems, subtotal, err := s.buildItems(ctx, saleID, req.Items)
	if err != nil {
		return nil, err
	}
	newFinal := subtotal + req.Adjustment
	if newFinal < 0 {
		return nil, fmt.Errorf("%w: adjustment cannot drive the total negative", store.ErrValidation)
	}

	// Restore stock for the old items before consuming it for the new ones.
	s.applyStock(ctx, sale.Items, stockIncrement)
	if err := s.repo.DeleteSaleItems(ctx, saleID); err != nil {
		return nil, fmt.Errorf("%w: old item delete failed: %v", ErrConsistencyDrift, err)
	}
	if err := s.repo.CreateSaleItems(ctx, newItems); err != nil {
		return nil, fmt.Errorf("%w: new item insert failed: %v", ErrConsistencyDrift, err)
	}
	s.applyStock(ctx, newItems, stockDecrement)

	oldFinal := sale.FinalTotal
	sale.Subtotal = subtotal
	sale.Adjustment = req.Adjustment
	sale.FinalTotal = newFinal

	var creditExcess float64
	if sale.Type == domain.SaleTypeCredit {
		balance := sale.RemainingBalance + (newFinal - oldFinal)
		if balance < 0 {
			creditExcess = -balance
			balance = 0
		}
		if balance > newFinal {
			balance = newFinal
		}
		sale.RemainingBalance = balance
		sale.Status = statusForBalance(balance)
	} else {
		sale.RemainingBalance = 0
		sale.Status = domain.SaleStatusPaid
	}

	updated, err := s.repo.UpdateSale(ctx, *sale)
	if err != nil {
		return nil, fmt.Errorf("%w: sale update failed: %v", ErrConsistencyDrift, err)
	}

	if sale.Type == domain.SaleTypeCredit && sale.ClientID != "" {
		if creditExcess > paidEpsilon {
			client, err := s.repo.GetClient(ctx, sale.ClientID)
			if err != nil {
				return nil, fmt.Errorf("%w: client load after sale edit: %v", ErrConsistencyDrift, err)
			}
			client.Credit += creditExcess
			if _, err := s.repo.UpdateClient(ctx, *client); err != nil {
				return nil, fmt.Errorf("%w: credit update after sale edit: %v", ErrConsistencyDrift, err)
			}
		}
		if _, err := s.recomputeClientDebt(ctx, sale.ClientID); err != nil {
			return nil, fmt.Errorf("%w: debt recompute after sale edit: %v", ErrConsistencyDrift, err)
		}
	}

	updated.Items = newItems
	s.logAudit(ctx, "update", "sale", saleID, fmt.Sprintf("total %.2f -> %.2f", oldFinal, newFinal))
	s.invalidateSummary(ctx)
	return updated, nil
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) error {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}

	s.applyStock(ctx, sale.Items, stockIncrement)
	if err := s.repo.DeleteSaleItems(ctx, saleID); err != nil {
		return fmt.Errorf("%w: item delete failed: %v", ErrConsistencyDrift, err)
	}
	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		return fmt.Errorf("%w: sale delete failed: %v", ErrConsistencyDrift, err)
	}
	if sale.Type == domain.SaleTypeCredit && sale.ClientID != "" {
		if _, err := s.recomputeClientDebt(ctx, sale.ClientID); err != nil {
			return fmt.Errorf("%w: debt recompute after sale delete: %v", ErrConsistencyDrift, err)
		}
	}
	s.logAudit(ctx, "delete", "sale", saleID, fmt.Sprintf("%s %.2f", sale.Type, sale.FinalTotal))
	s.invalidateSummary(ctx)
	return nil
}

// --- settlement allocator ---

// openCreditSales returns the client's credit sales with an outstanding
// balance, oldest first. FIFO order is a hard requirement: the longest
// standing debt is paid down before newer debt.
func (s *Service) openCreditSales(ctx context.Context, clientID string) ([]domain.Sale, error) {
	sales, err := s.repo.ListSalesByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	open := sales[:0]
	for _, sale := range sales {
		if sale.Type == domain.SaleTypeCredit && sale.RemainingBalance > paidEpsilon {
			open = append(open, sale)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].SaleTime.Equal(open[j].SaleTime) {
			return open[i].ID < open[j].ID
		}
		return open[i].SaleTime.Before(open[j].SaleTime)
	})
	return open, nil
}

// allocateAcrossSales walks the client's open credit sales oldest-first,
// paying each down until the amount is exhausted. Returns the counts of
// sales fully settled and left partial, plus any unallocated remainder.
// A mid-walk write failure stops the walk immediately.
func (s *Service) allocateAcrossSales(ctx context.Context, clientID string, amount float64) (settled int, partial int, leftover float64, err error) {
	open, err := s.openCreditSales(ctx, clientID)
	if err != nil {
		return 0, 0, 0, err
	}
	remaining := amount
	for _, sale := range open {
		if remaining <= paidEpsilon {
			break
		}
		pay := math.Min(sale.RemainingBalance, remaining)
		sale.RemainingBalance -= pay
		sale.Status = statusForBalance(sale.RemainingBalance)
		if sale.Status == domain.SaleStatusPaid {
			sale.RemainingBalance = 0
		}
		if _, err := s.repo.UpdateSale(ctx, sale); err != nil {
			return settled, partial, remaining, fmt.Errorf("%w: allocation stopped at sale %s: %v", ErrConsistencyDrift, sale.ID, err)
		}
		if sale.Status == domain.SaleStatusPaid {
			settled++
		} else {
			partial++
		}
		remaining -= pay
	}
	if remaining < 0 {
		remaining = 0
	}
	return settled, partial, remaining, nil
}

// AllocatePayment records a payment and distributes it across the client's
// open credit sales in FIFO order. Any remainder after all open sales are
// settled becomes prepaid client credit.
func (s *Service) AllocatePayment(ctx context.Context, clientID string, req domain.PaymentRequest) (*domain.AllocationResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
	}
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	// The payment record is written first: it is the source of truth for
	// money received regardless of how allocation goes afterwards.
	payment, err := s.repo.CreatePayment(ctx, domain.PaymentRecord{
		ClientID: clientID,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, err
	}

	settled, partial, leftover, err := s.allocateAcrossSales(ctx, clientID, req.Amount)
	if err != nil {
		return nil, err
	}

	var creditAdded float64
	if leftover > paidEpsilon {
		client, err := s.repo.GetClient(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("%w: client load after allocation: %v", ErrConsistencyDrift, err)
		}
		client.Credit += leftover
		creditAdded = leftover
		if _, err := s.repo.UpdateClient(ctx, *client); err != nil {
			return nil, fmt.Errorf("%w: credit update after allocation: %v", ErrConsistencyDrift, err)
		}
	}

	client, err := s.recomputeClientDebt(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: debt recompute after allocation: %v", ErrConsistencyDrift, err)
	}

	s.logAudit(ctx, "allocate_payment", "payment", payment.ID, fmt.Sprintf("%.2f settled=%d partial=%d credit=%.2f", req.Amount, settled, partial, creditAdded))
	s.invalidateSummary(ctx)
	return &domain.AllocationResult{
		Payment:      *payment,
		SalesSettled: settled,
		SalesPartial: partial,
		CreditAdded:  creditAdded,
		TotalDebt:    client.TotalDebt,
	}, nil
}

// SettleSale marks one specific credit sale fully paid, bypassing FIFO
// order, for the "pay this one sale now" action. Calling it on an already
// paid sale is a no-op.
func (s *Service) SettleSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Type != domain.SaleTypeCredit {
		return nil, fmt.Errorf("%w: only credit sales can be settled", store.ErrValidation)
	}
	if sale.RemainingBalance <= paidEpsilon {
		return sale, nil
	}

	if _, err := s.repo.CreatePayment(ctx, domain.PaymentRecord{
		ClientID: sale.ClientID,
		Amount:   sale.RemainingBalance,
	}); err != nil {
		return nil, err
	}

	settledAmount := sale.RemainingBalance
	sale.RemainingBalance = 0
	sale.Status = domain.SaleStatusPaid
	updated, err := s.repo.UpdateSale(ctx, *sale)
	if err != nil {
		return nil, fmt.Errorf("%w: settle write failed for sale %s: %v", ErrConsistencyDrift, saleID, err)
	}
	if _, err := s.recomputeClientDebt(ctx, sale.ClientID); err != nil {
		return nil, fmt.Errorf("%w: debt recompute after settle: %v", ErrConsistencyDrift, err)
	}

	updated.Items = sale.Items
	s.logAudit(ctx, "settle", "sale", saleID, fmt.Sprintf("%.2f", settledAmount))
	s.invalidateSummary(ctx)
	return updated, nil
}

// ApplyClientCredit spends the client's prepaid credit against their open
// debt, recorded as a used-credit payment.
func (s *Service) ApplyClientCredit(ctx context.Context, clientID string) (*domain.AllocationResult, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	spend := math.Min(client.Credit, client.TotalDebt)
	if spend <= paidEpsilon {
		return nil, fmt.Errorf("%w: no credit applicable to open debt", store.ErrValidation)
	}

	client.Credit -= spend
	if _, err := s.repo.UpdateClient(ctx, *client); err != nil {
		return nil, err
	}
	payment, err := s.repo.CreatePayment(ctx, domain.PaymentRecord{
		ClientID:   clientID,
		Amount:     spend,
		UsedCredit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: credit payment write failed: %v", ErrConsistencyDrift, err)
	}
	settled, partial, _, err := s.allocateAcrossSales(ctx, clientID, spend)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.recomputeClientDebt(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: debt recompute after credit application: %v", ErrConsistencyDrift, err)
	}

	s.logAudit(ctx, "apply_credit", "client", clientID, fmt.Sprintf("%.2f", spend))
	s.invalidateSummary(ctx)
	return &domain.AllocationResult{
		Payment:      *payment,
		SalesSettled: settled,
		SalesPartial: partial,
		TotalDebt:    refreshed.TotalDebt,
	}, nil
}

func (s *Service) ListClientPayments(ctx context.Context, clientID string) ([]domain.PaymentRecord, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByClient(ctx, clientID)
}

// restoreAcrossSales puts amount back onto the client's ledger after a
// payment shrinks or disappears. The client's prepaid credit is drained
// first, then balances are restored newest sale first, capped at each
// sale's final total. Any remainder beyond all caps is logged and dropped.
func (s *Service) restoreAcrossSales(ctx context.Context, clientID string, amount float64) error {
	remaining := amount

	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if client.Credit > 0 {
		take := math.Min(client.Credit, remaining)
		client.Credit -= take
		remaining -= take
		if _, err := s.repo.UpdateClient(ctx, *client); err != nil {
			return fmt.Errorf("%w: credit drain failed: %v", ErrConsistencyDrift, err)
		}
	}
	if remaining <= paidEpsilon {
		return nil
	}

	sales, err := s.repo.ListSalesByClient(ctx, clientID)
	if err != nil {
		return err
	}
	credit := sales[:0]
	for _, sale := range sales {
		if sale.Type == domain.SaleTypeCredit {
			credit = append(credit, sale)
		}
	}
	sort.SliceStable(credit, func(i, j int) bool {
		if credit[i].SaleTime.Equal(credit[j].SaleTime) {
			return credit[i].ID > credit[j].ID
		}
		return credit[i].SaleTime.After(credit[j].SaleTime)
	})
	for _, sale := range credit {
		if remaining <= paidEpsilon {
			break
		}
		headroom := sale.FinalTotal - sale.RemainingBalance
		if headroom <= 0 {
			continue
		}
		add := math.Min(headroom, remaining)
		sale.RemainingBalance += add
		sale.Status = statusForBalance(sale.RemainingBalance)
		if _, err := s.repo.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("%w: balance restore stopped at sale %s: %v", ErrConsistencyDrift, sale.ID, err)
		}
		remaining -= add
	}
	if remaining > paidEpsilon {
		log.Printf("[service] WARN: %.2f could not be restored onto client %s sales", remaining, clientID)
	}
	return nil
}

// EditPayment changes a payment's amount and rebalances the ledger: an
// increase is allocated like a fresh payment, a decrease is clawed back from
// credit first and then from sale balances newest-first.
func (s *Service) EditPayment(ctx context.Context, paymentID string, req domain.PaymentRequest) (*domain.PaymentRecord, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
	}
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UsedCredit {
		return nil, fmt.Errorf("%w: credit-funded payments cannot be edited", store.ErrValidation)
	}
	delta := req.Amount - payment.Amount
	payment.Amount = req.Amount
	updated, err := s.repo.UpdatePayment(ctx, *payment)
	if err != nil {
		return nil, err
	}

	switch {
	case delta > paidEpsilon:
		_, _, leftover, err := s.allocateAcrossSales(ctx, payment.ClientID, delta)
		if err != nil {
			return nil, err
		}
		if leftover > paidEpsilon {
			client, err := s.repo.GetClient(ctx, payment.ClientID)
			if err != nil {
				return nil, fmt.Errorf("%w: client load after payment edit: %v", ErrConsistencyDrift, err)
			}
			client.Credit += leftover
			if _, err := s.repo.UpdateClient(ctx, *client); err != nil {
				return nil, fmt.Errorf("%w: credit update after payment edit: %v", ErrConsistencyDrift, err)
			}
		}
	case delta < -paidEpsilon:
		if err := s.restoreAcrossSales(ctx, payment.ClientID, -delta); err != nil {
			return nil, err
		}
	}

	if _, err := s.recomputeClientDebt(ctx, payment.ClientID); err != nil {
		return nil, fmt.Errorf("%w: debt recompute after payment edit: %v", ErrConsistencyDrift, err)
	}
	s.logAudit(ctx, "update", "payment", paymentID, fmt.Sprintf("%+.2f", delta))
	s.invalidateSummary(ctx)
	return updated, nil
}

// DeletePayment removes a payment and claws its amount back onto the
// client's ledger, then recomputes the cached debt.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) error {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
		return err
	}
	if !payment.UsedCredit {
		if err := s.restoreAcrossSales(ctx, payment.ClientID, payment.Amount); err != nil {
			return err
		}
	}
	if _, err := s.recomputeClientDebt(ctx, payment.ClientID); err != nil {
		return fmt.Errorf("%w: debt recompute after payment delete: %v", ErrConsistencyDrift, err)
	}
	s.logAudit(ctx, "delete", "payment", paymentID, fmt.Sprintf("%.2f", payment.Amount))
	s.invalidateSummary(ctx)
	return nil
}

// --- expenses ---

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: expense description is required", store.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: expense amount must be positive", store.ErrValidation)
	}
	expenseType := strings.ToUpper(strings.TrimSpace(req.Type))
	if expenseType == "" {
		expenseType = domain.ExpenseTypeVariable
	}
	switch expenseType {
	case domain.ExpenseTypeFixed, domain.ExpenseTypeVariable, domain.ExpenseTypeCardFee:
	default:
		return nil, fmt.Errorf("%w: unknown expense type %q", store.ErrValidation, req.Type)
	}
	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: expense date must be YYYY-MM-DD", store.ErrValidation)
		}
		date = parsed
	}
	expense, err := s.repo.CreateExpense(ctx, domain.Expense{
		Description: description,
		Amount:      req.Amount,
		Type:        expenseType,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "expense", expense.ID, description)
	s.invalidateSummary(ctx)
	return expense, nil
}

func (s *Service) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, from, to)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "expense", id, "")
	s.invalidateSummary(ctx)
	return nil
}

// --- settings ---

func (s *Service) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	return &domain.Setting{Key: key, Value: value}, nil
}

func (s *Service) SetSetting(ctx context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: setting key is required", store.ErrValidation)
	}
	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.logAudit(ctx, "update", "setting", key, value)
	return nil
}

// --- backup export/import ---

// ExportBackup serializes the entire dataset into one versioned snapshot.
// No filtering, no pagination.
func (s *Service) ExportBackup(ctx context.Context) (*domain.Backup, error) {
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAllSaleItems(ctx)
	if err != nil {
		return nil, err
	}
	expenses, err := s.repo.ListExpenses(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "export", "backup", "", fmt.Sprintf("%d clients, %d sales", len(clients), len(sales)))
	return &domain.Backup{
		Version:   domain.BackupVersion,
		Timestamp: time.Now().UTC(),
		Clients:   clients,
		Products:  products,
		Sales:     sales,
		SaleItems: items,
		Expenses:  expenses,
		Payments:  payments,
	}, nil
}

// ImportBackup wipes every table in child-to-parent order and reloads the
// snapshot parent-to-child so foreign keys are always satisfied at insert
// time. Destructive and non-transactional: a failure partway through leaves
// a mixed dataset, which is why callers must confirm explicitly.
func (s *Service) ImportBackup(ctx context.Context, backup *domain.Backup) error {
	if backup == nil {
		return fmt.Errorf("%w: backup document is required", store.ErrValidation)
	}
	if backup.Version != domain.BackupVersion {
		return fmt.Errorf("%w: unsupported backup version %d", store.ErrValidation, backup.Version)
	}

	wipes := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"sale_items", s.repo.ClearSaleItems},
		{"payment_records", s.repo.ClearPayments},
		{"expenses", s.repo.ClearExpenses},
		{"sales", s.repo.ClearSales},
		{"products", s.repo.ClearProducts},
		{"clients", s.repo.ClearClients},
	}
	for _, w := range wipes {
		if err := w.fn(ctx); err != nil {
			return fmt.Errorf("%w: wipe %s failed: %v", ErrConsistencyDrift, w.name, err)
		}
	}

	loads := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"clients", func(ctx context.Context) error { return s.repo.ImportClients(ctx, backup.Clients) }},
		{"products", func(ctx context.Context) error { return s.repo.ImportProducts(ctx, backup.Products) }},
		{"sales", func(ctx context.Context) error { return s.repo.ImportSales(ctx, backup.Sales) }},
		{"sale_items", func(ctx context.Context) error { return s.repo.ImportSaleItems(ctx, backup.SaleItems) }},
		{"expenses", func(ctx context.Context) error { return s.repo.ImportExpenses(ctx, backup.Expenses) }},
		{"payment_records", func(ctx context.Context) error { return s.repo.ImportPayments(ctx, backup.Payments) }},
	}
	for _, l := range loads {
		if err := l.fn(ctx); err != nil {
			return fmt.Errorf("%w: reload %s failed: %v", ErrConsistencyDrift, l.name, err)
		}
	}

	s.logAudit(ctx, "import", "backup", "", fmt.Sprintf("%d clients, %d sales", len(backup.Clients), len(backup.Sales)))
	s.invalidateSummary(ctx)
	return nil
}

// --- dashboard summary ---

// Summary computes the dashboard report, served from cache when fresh.
func (s *Service) Summary(ctx context.Context) (*domain.SummaryReport, error) {
	if report, ok := s.summaries.Get(ctx); ok {
		return report, nil
	}

	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	expenses, err := s.repo.ListExpenses(ctx, monthStart, time.Time{})
	if err != nil {
		return nil, err
	}

	report := &domain.SummaryReport{GeneratedAt: now.Format(time.RFC3339)}
	for _, c := range clients {
		report.ReceivablesTotal += c.TotalDebt
		report.ClientCreditTotal += c.Credit
	}
	for _, p := range products {
		if !p.TrackStock {
			continue
		}
		if p.Stock > 0 {
			report.StockValueAtCost += p.Stock * p.UnitCost
		}
		if p.Stock <= p.MinStock {
			report.LowStock = append(report.LowStock, domain.LowStockProduct{
				ProductID: p.ID,
				Name:      p.Name,
				Unit:      p.Unit,
				Stock:     p.Stock,
				MinStock:  p.MinStock,
			})
		}
	}
	for _, sale := range sales {
		if !sale.SaleTime.Before(dayStart) {
			report.TodaySalesTotal += sale.FinalTotal
			report.TodaySalesCount++
		}
	}
	for _, e := range expenses {
		report.MonthExpenses += e.Amount
	}

	s.summaries.Set(ctx, report, s.summaryTTL)
	return report, nil
}

// --- audit ---

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}
