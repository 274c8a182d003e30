package store

import (
	"context"
	"errors"
	"time"

	"fiadopos/internal/domain"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for inputs rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity is returned when a delete would orphan referencing rows
	// (e.g. removing a product still present on sale items).
	ErrIntegrity = errors.New("integrity violation")
)

// Repository is the ledger store: six relational tables (clients, products,
// sales, sale_items, payment_records, expenses), a flat settings table and
// the auth/audit side tables. Implementations return copies; callers never
// share memory with the store.
//
// Header and item writes are split on purpose: the sale mutation
// coordinator owns the orchestration (and its compensation paths), so
// CreateSale persists the header only and CreateSaleItems the rows.
// Implementations backed by a transactional database are still encouraged
// to make each individual method atomic.
type Repository interface {
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	// DeleteClient fails with ErrIntegrity while sales or payments reference the client.
	DeleteClient(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// DeleteProduct fails with ErrIntegrity while sale items reference the product.
	DeleteProduct(ctx context.Context, id string) error
	// AdjustProductStock applies a signed delta to the stock counter.
	// Stock is allowed to go negative (over-sale is recorded, not rejected).
	AdjustProductStock(ctx context.Context, id string, delta float64) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error) // items loaded
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListSalesByClient(ctx context.Context, clientID string) ([]domain.Sale, error)
	CreateSaleItems(ctx context.Context, items []domain.SaleItem) error
	DeleteSaleItems(ctx context.Context, saleID string) error
	ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error)

	CreatePayment(ctx context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error)
	GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error)
	UpdatePayment(ctx context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error)
	DeletePayment(ctx context.Context, id string) error
	ListPayments(ctx context.Context) ([]domain.PaymentRecord, error)
	ListPaymentsByClient(ctx context.Context, clientID string) ([]domain.PaymentRecord, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	// ListExpenses with zero from/to returns every expense.
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key string, value string) error

	// Backup support. The importer owns the FK-safe ordering; the store only
	// provides per-table wipe and bulk load primitives. Import* preserve the
	// ids and timestamps in the snapshot verbatim.
	ListAllSaleItems(ctx context.Context) ([]domain.SaleItem, error)
	ClearSaleItems(ctx context.Context) error
	ClearPayments(ctx context.Context) error
	ClearExpenses(ctx context.Context) error
	ClearSales(ctx context.Context) error
	ClearProducts(ctx context.Context) error
	ClearClients(ctx context.Context) error
	ImportClients(ctx context.Context, clients []domain.Client) error
	ImportProducts(ctx context.Context, products []domain.Product) error
	ImportSales(ctx context.Context, sales []domain.Sale) error
	ImportSaleItems(ctx context.Context, items []domain.SaleItem) error
	ImportExpenses(ctx context.Context, expenses []domain.Expense) error
	ImportPayments(ctx context.Context, payments []domain.PaymentRecord) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
