// Package postgres implements the repository on PostgreSQL via database/sql
// and the pgx stdlib driver.
//
// Expected schema:
//
//	CREATE TABLE clients (
//	    id TEXT PRIMARY KEY,
//	    name TEXT NOT NULL,
//	    phone TEXT NOT NULL DEFAULT '',
//	    address TEXT NOT NULL DEFAULT '',
//	    credit DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    total_debt DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    last_interaction TIMESTAMPTZ NOT NULL,
//	    next_payment_date TIMESTAMPTZ,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE products (
//	    id TEXT PRIMARY KEY,
//	    name TEXT NOT NULL,
//	    department TEXT NOT NULL DEFAULT '',
//	    category TEXT NOT NULL DEFAULT '',
//	    unit TEXT NOT NULL DEFAULT '',
//	    barcode TEXT,
//	    unit_price DOUBLE PRECISION NOT NULL,
//	    unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    track_stock BOOLEAN NOT NULL DEFAULT TRUE,
//	    stock DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    min_stock DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (barcode)
//	);
//	CREATE TABLE sales (
//	    id TEXT PRIMARY KEY,
//	    client_id TEXT REFERENCES clients(id),
//	    client_name TEXT NOT NULL DEFAULT '',
//	    type TEXT NOT NULL,
//	    payment_method TEXT NOT NULL DEFAULT '',
//	    subtotal DOUBLE PRECISION NOT NULL,
//	    adjustment DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    final_total DOUBLE PRECISION NOT NULL,
//	    remaining_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    status TEXT NOT NULL,
//	    sale_time TIMESTAMPTZ NOT NULL,
//	    delivery_address TEXT NOT NULL DEFAULT '',
//	    delivery_notes TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE sale_items (
//	    id TEXT PRIMARY KEY,
//	    sale_id TEXT NOT NULL REFERENCES sales(id),
//	    product_id TEXT NOT NULL REFERENCES products(id),
//	    product_name TEXT NOT NULL,
//	    quantity DOUBLE PRECISION NOT NULL,
//	    unit_price DOUBLE PRECISION NOT NULL,
//	    line_total DOUBLE PRECISION NOT NULL
//	);
//	CREATE TABLE payments (
//	    id TEXT PRIMARY KEY,
//	    client_id TEXT NOT NULL REFERENCES clients(id),
//	    amount DOUBLE PRECISION NOT NULL,
//	    used_credit BOOLEAN NOT NULL DEFAULT FALSE,
//	    paid_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE expenses (
//	    id TEXT PRIMARY KEY,
//	    description TEXT NOT NULL,
//	    amount DOUBLE PRECISION NOT NULL,
//	    type TEXT NOT NULL,
//	    date TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE settings (
//	    key TEXT PRIMARY KEY,
//	    value TEXT NOT NULL
//	);
//	CREATE TABLE users (
//	    username TEXT PRIMARY KEY,
//	    password TEXT NOT NULL,
//	    role TEXT NOT NULL,
//	    active BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE audit_logs (
//	    id TEXT PRIMARY KEY,
//	    actor_username TEXT NOT NULL DEFAULT '',
//	    actor_role TEXT NOT NULL DEFAULT '',
//	    action TEXT NOT NULL,
//	    entity_type TEXT NOT NULL DEFAULT '',
//	    entity_id TEXT NOT NULL DEFAULT '',
//	    detail TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fiadopos/internal/domain"
	"fiadopos/internal/store"
	"fiadopos/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// mapConstraintErr translates the two constraint classes the handlers care
// about: foreign key violations become ErrIntegrity, unique violations
// become ErrValidation.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return store.ErrIntegrity
		case "23505":
			return store.ErrValidation
		}
	}
	return err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

// --- clients ---

const clientColumns = `id, name, phone, address, credit, total_debt, last_interaction, next_payment_date, created_at`

func scanClient(row interface{ Scan(...any) error }) (*domain.Client, error) {
	var c domain.Client
	var next sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Credit, &c.TotalDebt, &c.LastInteraction, &next, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	if next.Valid {
		t := next.Time
		c.NextPaymentDate = &t
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	if client.LastInteraction.IsZero() {
		client.LastInteraction = client.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		client.ID, client.Name, client.Phone, client.Address, client.Credit, client.TotalDebt,
		client.LastInteraction, nullTime(client.NextPaymentDate), client.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", mapConstraintErr(err))
	}
	return &client, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET name=$2, phone=$3, address=$4, credit=$5, total_debt=$6, last_interaction=$7, next_payment_date=$8 WHERE id=$1`,
		client.ID, client.Name, client.Phone, client.Address, client.Credit, client.TotalDebt,
		client.LastInteraction, nullTime(client.NextPaymentDate))
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &client, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- products ---

const productColumns = `id, name, department, category, unit, barcode, unit_price, unit_cost, track_stock, stock, min_stock, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Department, &p.Category, &p.Unit, &barcode, &p.UnitPrice, &p.UnitCost, &p.TrackStock, &p.Stock, &p.MinStock, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Barcode = barcode.String
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.UnitPrice < 0 || product.UnitCost < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		product.ID, product.Name, product.Department, product.Category, product.Unit,
		nullString(product.Barcode), product.UnitPrice, product.UnitCost, product.TrackStock,
		product.Stock, product.MinStock, product.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", mapConstraintErr(err))
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if strings.TrimSpace(barcode) == "" {
		return nil, store.ErrValidation
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
	return scanProduct(row)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.UnitPrice < 0 || product.UnitCost < 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name=$2, department=$3, category=$4, unit=$5, barcode=$6, unit_price=$7, unit_cost=$8, track_stock=$9, stock=$10, min_stock=$11 WHERE id=$1`,
		product.ID, product.Name, product.Department, product.Category, product.Unit,
		nullString(product.Barcode), product.UnitPrice, product.UnitCost, product.TrackStock,
		product.Stock, product.MinStock)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY department, name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustProductStock(ctx context.Context, id string, delta float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- sales ---

const saleColumns = `id, client_id, client_name, type, payment_method, subtotal, adjustment, final_total, remaining_balance, status, sale_time, delivery_address, delivery_notes, created_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var clientID sql.NullString
	if err := row.Scan(&sale.ID, &clientID, &sale.ClientName, &sale.Type, &sale.PaymentMethod,
		&sale.Subtotal, &sale.Adjustment, &sale.FinalTotal, &sale.RemainingBalance, &sale.Status,
		&sale.SaleTime, &sale.DeliveryAddress, &sale.DeliveryNotes, &sale.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan sale: %w", err)
	}
	sale.ClientID = clientID.String
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.Type != domain.SaleTypeCash && sale.Type != domain.SaleTypeCredit {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleTime.IsZero() {
		sale.SaleTime = time.Now().UTC()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Items = nil

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sales (`+saleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		sale.ID, nullString(sale.ClientID), sale.ClientName, sale.Type, sale.PaymentMethod,
		sale.Subtotal, sale.Adjustment, sale.FinalTotal, sale.RemainingBalance, sale.Status,
		sale.SaleTime, sale.DeliveryAddress, sale.DeliveryNotes, sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert sale: %w", mapConstraintErr(err))
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	items, err := s.ListSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	sale.Items = nil

	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET client_id=$2, client_name=$3, type=$4, payment_method=$5, subtotal=$6, adjustment=$7, final_total=$8, remaining_balance=$9, status=$10, sale_time=$11, delivery_address=$12, delivery_notes=$13 WHERE id=$1`,
		sale.ID, nullString(sale.ClientID), sale.ClientName, sale.Type, sale.PaymentMethod,
		sale.Subtotal, sale.Adjustment, sale.FinalTotal, sale.RemainingBalance, sale.Status,
		sale.SaleTime, sale.DeliveryAddress, sale.DeliveryNotes)
	if err != nil {
		return nil, fmt.Errorf("update sale: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) listSales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.listSales(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY sale_time, id`)
}

func (s *Store) ListSalesByClient(ctx context.Context, clientID string) ([]domain.Sale, error) {
	return s.listSales(ctx, `SELECT `+saleColumns+` FROM sales WHERE client_id = $1 ORDER BY sale_time, id`, clientID)
}

func (s *Store) CreateSaleItems(ctx context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		item := items[i]
		if item.SaleID == "" || item.Quantity <= 0 {
			return store.ErrValidation
		}
		if item.ID == "" {
			item.ID = xid.New("itm")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, line_total) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal); err != nil {
			return fmt.Errorf("insert sale item: %w", mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteSaleItems(ctx context.Context, saleID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	return nil
}

const saleItemColumns = `id, sale_id, product_id, product_name, quantity, unit_price, line_total`

func (s *Store) listSaleItems(ctx context.Context, query string, args ...any) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	var items []domain.SaleItem
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	return s.listSaleItems(ctx, `SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
}

// --- payments ---

const paymentColumns = `id, client_id, amount, used_credit, paid_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	if err := row.Scan(&p.ID, &p.ClientID, &p.Amount, &p.UsedCredit, &p.PaidAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if payment.ClientID == "" || payment.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES ($1,$2,$3,$4,$5)`,
		payment.ID, payment.ClientID, payment.Amount, payment.UsedCredit, payment.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", mapConstraintErr(err))
	}
	return &payment, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (s *Store) UpdatePayment(ctx context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if payment.Amount <= 0 {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET client_id=$2, amount=$3, used_credit=$4, paid_at=$5 WHERE id=$1`,
		payment.ID, payment.ClientID, payment.Amount, payment.UsedCredit, payment.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return &payment, nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) listPayments(ctx context.Context, query string, args ...any) ([]domain.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context) ([]domain.PaymentRecord, error) {
	return s.listPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY paid_at, id`)
}

func (s *Store) ListPaymentsByClient(ctx context.Context, clientID string) ([]domain.PaymentRecord, error) {
	return s.listPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE client_id = $1 ORDER BY paid_at, id`, clientID)
}

// --- expenses ---

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" || expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount, type, date) VALUES ($1,$2,$3,$4,$5)`,
		expense.ID, expense.Description, expense.Amount, expense.Type, expense.Date)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	query := `SELECT id, description, amount, type, date FROM expenses`
	var args []any
	var conds []string
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("date < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []domain.Expense
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Type, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- settings ---

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// --- backup support ---

func (s *Store) ListAllSaleItems(ctx context.Context) ([]domain.SaleItem, error) {
	return s.listSaleItems(ctx, `SELECT `+saleItemColumns+` FROM sale_items ORDER BY sale_id, id`)
}

func (s *Store) clearTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, mapConstraintErr(err))
	}
	return nil
}

func (s *Store) ClearSaleItems(ctx context.Context) error { return s.clearTable(ctx, "sale_items") }
func (s *Store) ClearPayments(ctx context.Context) error  { return s.clearTable(ctx, "payments") }
func (s *Store) ClearExpenses(ctx context.Context) error  { return s.clearTable(ctx, "expenses") }
func (s *Store) ClearSales(ctx context.Context) error     { return s.clearTable(ctx, "sales") }
func (s *Store) ClearProducts(ctx context.Context) error  { return s.clearTable(ctx, "products") }
func (s *Store) ClearClients(ctx context.Context) error   { return s.clearTable(ctx, "clients") }

func (s *Store) ImportClients(ctx context.Context, clients []domain.Client) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range clients {
		if c.ID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clients (`+clientColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			c.ID, c.Name, c.Phone, c.Address, c.Credit, c.TotalDebt,
			c.LastInteraction, nullTime(c.NextPaymentDate), c.CreatedAt); err != nil {
			return fmt.Errorf("import client %s: %w", c.ID, mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

func (s *Store) ImportProducts(ctx context.Context, products []domain.Product) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		if p.ID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			p.ID, p.Name, p.Department, p.Category, p.Unit, nullString(p.Barcode),
			p.UnitPrice, p.UnitCost, p.TrackStock, p.Stock, p.MinStock, p.CreatedAt); err != nil {
			return fmt.Errorf("import product %s: %w", p.ID, mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

func (s *Store) ImportSales(ctx context.Context, sales []domain.Sale) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, sale := range sales {
		if sale.ID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sales (`+saleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			sale.ID, nullString(sale.ClientID), sale.ClientName, sale.Type, sale.PaymentMethod,
			sale.Subtotal, sale.Adjustment, sale.FinalTotal, sale.RemainingBalance, sale.Status,
			sale.SaleTime, sale.DeliveryAddress, sale.DeliveryNotes, sale.CreatedAt); err != nil {
			return fmt.Errorf("import sale %s: %w", sale.ID, mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

func (s *Store) ImportSaleItems(ctx context.Context, items []domain.SaleItem) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if item.ID == "" || item.SaleID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (`+saleItemColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal); err != nil {
			return fmt.Errorf("import sale item %s: %w", item.ID, mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

func (s *Store) ImportExpenses(ctx context.Context, expenses []domain.Expense) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range expenses {
		if e.ID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, description, amount, type, date) VALUES ($1,$2,$3,$4,$5)`,
			e.ID, e.Description, e.Amount, e.Type, e.Date); err != nil {
			return fmt.Errorf("import expense %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ImportPayments(ctx context.Context, payments []domain.PaymentRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range payments {
		if p.ID == "" {
			return store.ErrValidation
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payments (`+paymentColumns+`) VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.ClientID, p.Amount, p.UsedCredit, p.PaidAt); err != nil {
			return fmt.Errorf("import payment %s: %w", p.ID, mapConstraintErr(err))
		}
	}
	return tx.Commit()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, role, active, created_at) VALUES ($1,$2,$3,$4,$5)`,
		username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapConstraintErr(err))
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, role, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserAccount
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	query := `SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at FROM audit_logs`
	var args []any
	var conds []string
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.ActorUsername, &e.ActorRole, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
