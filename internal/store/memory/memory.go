package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fiadopos/internal/domain"
	"fiadopos/internal/store"
	"fiadopos/internal/xid"
)

// Store is a fully in-memory Repository used for dev mode and tests.
// It mirrors the relational layout: sale headers and sale items live in
// separate structures related by sale id.
type Store struct {
	mu        sync.RWMutex
	clients   map[string]domain.Client
	products  map[string]domain.Product
	sales     map[string]domain.Sale
	saleItems map[string][]domain.SaleItem
	payments  map[string]domain.PaymentRecord
	expenses  map[string]domain.Expense
	settings  map[string]string
	users     map[string]domain.UserAccount
	auditLogs []domain.AuditLog
}

func New() *Store {
	return &Store{
		clients:   make(map[string]domain.Client),
		products:  make(map[string]domain.Product),
		sales:     make(map[string]domain.Sale),
		saleItems: make(map[string][]domain.SaleItem),
		payments:  make(map[string]domain.PaymentRecord),
		expenses:  make(map[string]domain.Expense),
		settings:  make(map[string]string),
		users:     make(map[string]domain.UserAccount),
		auditLogs: make([]domain.AuditLog, 0, 128),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small agro/pet-shop catalog,
// a couple of regular clients and the default card fee setting.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prd-seed-01", Name: "Alimento Perro Adulto 25kg", Department: "mascotas", Category: "alimento", Unit: "bolsa", Barcode: "7791234500011", UnitPrice: 52.5, UnitCost: 41.0, TrackStock: true, Stock: 18, MinStock: 5},
		{ID: "prd-seed-02", Name: "Alimento Gato 7.5kg", Department: "mascotas", Category: "alimento", Unit: "bolsa", Barcode: "7791234500028", UnitPrice: 24.9, UnitCost: 18.6, TrackStock: true, Stock: 22, MinStock: 6},
		{ID: "prd-seed-03", Name: "Balanceado Ponedoras", Department: "agro", Category: "forraje", Unit: "kg", UnitPrice: 0.85, UnitCost: 0.62, TrackStock: true, Stock: 640, MinStock: 100},
		{ID: "prd-seed-04", Name: "Maíz Partido", Department: "agro", Category: "forraje", Unit: "kg", UnitPrice: 0.6, UnitCost: 0.41, TrackStock: true, Stock: 800, MinStock: 150},
		{ID: "prd-seed-05", Name: "Piedras Sanitarias 4kg", Department: "mascotas", Category: "higiene", Unit: "bolsa", Barcode: "7791234500059", UnitPrice: 6.4, UnitCost: 4.1, TrackStock: true, Stock: 30, MinStock: 8},
		{ID: "prd-seed-06", Name: "Antiparasitario Oral", Department: "veterinaria", Category: "sanidad", Unit: "unidad", UnitPrice: 9.8, UnitCost: 6.9, TrackStock: true, Stock: 14, MinStock: 4},
		{ID: "prd-seed-07", Name: "Collar Mediano", Department: "mascotas", Category: "accesorios", Unit: "unidad", UnitPrice: 7.5, UnitCost: 3.8, TrackStock: false},
		{ID: "prd-seed-08", Name: "Semilla Alfalfa", Department: "agro", Category: "semillas", Unit: "kg", UnitPrice: 4.2, UnitCost: 3.1, TrackStock: true, Stock: 120, MinStock: 25},
	}
	for _, p := range products {
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	clients := []domain.Client{
		{ID: "cli-seed-01", Name: "Marta Giménez", Phone: "+595981223344", Address: "Barrio San Pedro 123"},
		{ID: "cli-seed-02", Name: "Ramón Ayala", Phone: "+595982556677", Address: "Ruta 2 km 31"},
	}
	for _, c := range clients {
		c.CreatedAt = now
		c.LastInteraction = now
		s.clients[c.ID] = c
	}

	s.settings[domain.SettingCardFeePercent] = "2.5"
	s.users = seedUsers()
	return s
}

func cmpString(a, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

// --- clients ---

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return nil, store.ErrValidation
	}
	s.clients[client.ID] = client
	created := client
	return &created, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyClient := client
	return &copyClient, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.clients[client.ID] = client
	updated := client
	return &updated, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return cmpString(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[id]; !exists {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.ClientID == id {
			return store.ErrIntegrity
		}
	}
	for _, payment := range s.payments {
		if payment.ClientID == id {
			return store.ErrIntegrity
		}
	}
	delete(s.clients, id)
	return nil
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.UnitPrice < 0 || product.UnitCost < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrValidation
	}
	if product.Barcode != "" {
		for _, other := range s.products {
			if other.Barcode == product.Barcode {
				return nil, store.ErrValidation
			}
		}
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	if strings.TrimSpace(barcode) == "" {
		return nil, store.ErrValidation
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if product.Barcode == barcode {
			copyProduct := product
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.UnitPrice < 0 || product.UnitCost < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if product.Barcode != "" {
		for id, other := range s.products {
			if id != product.ID && other.Barcode == product.Barcode {
				return nil, store.ErrValidation
			}
		}
	}
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Department == b.Department {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Department, b.Department)
	})
	return products, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	for _, items := range s.saleItems {
		for _, item := range items {
			if item.ProductID == id {
				return store.ErrIntegrity
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustProductStock(_ context.Context, id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	// Negative stock is allowed: it records an over-sale.
	product.Stock += delta
	s.products[id] = product
	return nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[sale.ID]; exists {
		return nil, store.ErrValidation
	}
	if sale.ClientID != "" {
		if _, ok := s.clients[sale.ClientID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	s.sales[sale.ID] = sale
	created := sale
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := sale
	copySale.Items = append([]domain.SaleItem(nil), s.saleItems[id]...)
	return &copySale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	sale.Items = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[sale.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.sales[sale.ID] = sale
	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[id]; !exists {
		return store.ErrNotFound
	}
	if len(s.saleItems[id]) > 0 {
		return store.ErrIntegrity
	}
	delete(s.sales, id)
	delete(s.saleItems, id)
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sale.Items = nil
		sales = append(sales, sale)
	}
	sortSalesOldestFirst(sales)
	return sales, nil
}

func (s *Store) ListSalesByClient(_ context.Context, clientID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales {
		if sale.ClientID != clientID {
			continue
		}
		sale.Items = nil
		sales = append(sales, sale)
	}
	sortSalesOldestFirst(sales)
	return sales, nil
}

func sortSalesOldestFirst(sales []domain.Sale) {
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.SaleTime.Equal(b.SaleTime) {
			return cmpString(a.ID, b.ID)
		}
		if a.SaleTime.Before(b.SaleTime) {
			return -1
		}
		return 1
	})
}

func (s *Store) CreateSaleItems(_ context.Context, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first so the insert below is all-or-nothing.
	for _, item := range items {
		if item.SaleID == "" || item.Quantity <= 0 {
			return store.ErrValidation
		}
		if _, ok := s.sales[item.SaleID]; !ok {
			return store.ErrNotFound
		}
	}
	for i := range items {
		item := items[i]
		if item.ID == "" {
			item.ID = xid.New("itm")
		}
		s.saleItems[item.SaleID] = append(s.saleItems[item.SaleID], item)
	}
	return nil
}

func (s *Store) DeleteSaleItems(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.saleItems, saleID)
	return nil
}

func (s *Store) ListSaleItems(_ context.Context, saleID string) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.SaleItem(nil), s.saleItems[saleID]...), nil
}

// --- payments ---

func (s *Store) CreatePayment(_ context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if payment.ClientID == "" || payment.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[payment.ClientID]; !ok {
		return nil, store.ErrNotFound
	}
	s.payments[payment.ID] = payment
	created := payment
	return &created, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, exists := s.payments[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPayment := payment
	return &copyPayment, nil
}

func (s *Store) UpdatePayment(_ context.Context, payment domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if payment.Amount <= 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.payments[payment.ID] = payment
	updated := payment
	return &updated, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) ListPayments(_ context.Context) ([]domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		payments = append(payments, p)
	}
	sortPaymentsOldestFirst(payments)
	return payments, nil
}

func (s *Store) ListPaymentsByClient(_ context.Context, clientID string) ([]domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.PaymentRecord, 0, 16)
	for _, p := range s.payments {
		if p.ClientID == clientID {
			payments = append(payments, p)
		}
	}
	sortPaymentsOldestFirst(payments)
	return payments, nil
}

func sortPaymentsOldestFirst(payments []domain.PaymentRecord) {
	slices.SortFunc(payments, func(a, b domain.PaymentRecord) int {
		if a.PaidAt.Equal(b.PaidAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.PaidAt.Before(b.PaidAt) {
			return -1
		}
		return 1
	})
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" || expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Date.Before(to) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.ID, b.ID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return expenses, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expenses[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// --- settings ---

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.settings[key]
	if !exists {
		return "", store.ErrNotFound
	}
	return value, nil
}

func (s *Store) SetSetting(_ context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}

// --- backup support ---

func (s *Store) ListAllSaleItems(_ context.Context) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.SaleItem, 0, 64)
	for _, saleItems := range s.saleItems {
		items = append(items, saleItems...)
	}
	slices.SortFunc(items, func(a, b domain.SaleItem) int {
		if a.SaleID == b.SaleID {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.SaleID, b.SaleID)
	})
	return items, nil
}

func (s *Store) ClearSaleItems(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saleItems = make(map[string][]domain.SaleItem)
	return nil
}

func (s *Store) ClearPayments(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = make(map[string]domain.PaymentRecord)
	return nil
}

func (s *Store) ClearExpenses(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = make(map[string]domain.Expense)
	return nil
}

func (s *Store) ClearSales(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = make(map[string]domain.Sale)
	return nil
}

func (s *Store) ClearProducts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[string]domain.Product)
	return nil
}

func (s *Store) ClearClients(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]domain.Client)
	return nil
}

func (s *Store) ImportClients(_ context.Context, clients []domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range clients {
		if c.ID == "" {
			return store.ErrValidation
		}
		s.clients[c.ID] = c
	}
	return nil
}

func (s *Store) ImportProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if p.ID == "" {
			return store.ErrValidation
		}
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) ImportSales(_ context.Context, sales []domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sale := range sales {
		if sale.ID == "" {
			return store.ErrValidation
		}
		if sale.ClientID != "" {
			if _, ok := s.clients[sale.ClientID]; !ok {
				return store.ErrIntegrity
			}
		}
		sale.Items = nil
		s.sales[sale.ID] = sale
	}
	return nil
}

func (s *Store) ImportSaleItems(_ context.Context, items []domain.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if item.ID == "" || item.SaleID == "" {
			return store.ErrValidation
		}
		if _, ok := s.sales[item.SaleID]; !ok {
			return store.ErrIntegrity
		}
		s.saleItems[item.SaleID] = append(s.saleItems[item.SaleID], item)
	}
	return nil
}

func (s *Store) ImportExpenses(_ context.Context, expenses []domain.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range expenses {
		if e.ID == "" {
			return store.ErrValidation
		}
		s.expenses[e.ID] = e
	}
	return nil
}

func (s *Store) ImportPayments(_ context.Context, payments []domain.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range payments {
		if p.ID == "" {
			return store.ErrValidation
		}
		if _, ok := s.clients[p.ClientID]; !ok {
			return store.ErrIntegrity
		}
		s.payments[p.ID] = p
	}
	return nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

// --- audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
