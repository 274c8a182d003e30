package domain

import "time"

// Sale lifecycle. A CASH sale is born PAID; a CREDIT sale starts PENDING,
// moves to PARTIAL once some payment has been allocated to it, and ends
// PAID when its remaining balance drops under the paid epsilon.
const (
	SaleTypeCash   = "CASH"
	SaleTypeCredit = "CREDIT"

	SaleStatusPaid    = "PAID"
	SaleStatusPartial = "PARTIAL"
	SaleStatusPending = "PENDING"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

const (
	ExpenseTypeFixed    = "FIXED"
	ExpenseTypeVariable = "VARIABLE"
	ExpenseTypeCardFee  = "CARD_FEE"
)

// SettingCardFeePercent holds the card surcharge percentage recorded as a
// CARD_FEE expense when a cash sale is paid by card.
const SettingCardFeePercent = "card_fee_percent"

// BackupVersion is the only backup document version this build can import.
const BackupVersion = 1

type Client struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Address         string     `json:"address,omitempty"`
	Credit          float64    `json:"credit"`
	TotalDebt       float64    `json:"total_debt"`
	LastInteraction time.Time  `json:"last_interaction"`
	NextPaymentDate *time.Time `json:"next_payment_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ClientCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ClientUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Address         *string `json:"address,omitempty"`
	NextPaymentDate *string `json:"next_payment_date,omitempty"` // "2006-01-02", empty string clears
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Category   string    `json:"category,omitempty"`
	Unit       string    `json:"unit"`
	Barcode    string    `json:"barcode,omitempty"`
	UnitPrice  float64   `json:"unit_price"`
	UnitCost   float64   `json:"unit_cost"`
	TrackStock bool      `json:"track_stock"`
	Stock      float64   `json:"stock"`
	MinStock   float64   `json:"min_stock"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string  `json:"name"`
	Department string  `json:"department"`
	Category   string  `json:"category"`
	Unit       string  `json:"unit"`
	Barcode    string  `json:"barcode"`
	UnitPrice  float64 `json:"unit_price"`
	UnitCost   float64 `json:"unit_cost"`
	TrackStock bool    `json:"track_stock"`
	Stock      float64 `json:"stock"`
	MinStock   float64 `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name       *string  `json:"name,omitempty"`
	Department *string  `json:"department,omitempty"`
	Category   *string  `json:"category,omitempty"`
	Unit       *string  `json:"unit,omitempty"`
	Barcode    *string  `json:"barcode,omitempty"`
	UnitPrice  *float64 `json:"unit_price,omitempty"`
	UnitCost   *float64 `json:"unit_cost,omitempty"`
	TrackStock *bool    `json:"track_stock,omitempty"`
	MinStock   *float64 `json:"min_stock,omitempty"`
}

// SaleItem snapshots the product name and unit price at sale time; later
// edits to the product never resynchronize these fields.
type SaleItem struct {
	ID          string  `json:"id"`
	SaleID      string  `json:"sale_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

type SaleItemDraft struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"` // 0 means use the product's current price
}

type Sale struct {
	ID               string     `json:"id"`
	ClientID         string     `json:"client_id,omitempty"` // empty means walk-in cash sale
	ClientName       string     `json:"client_name,omitempty"`
	Type             string     `json:"type"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	Subtotal         float64    `json:"subtotal"`
	Adjustment       float64    `json:"adjustment"`
	FinalTotal       float64    `json:"final_total"`
	RemainingBalance float64    `json:"remaining_balance"`
	Status           string     `json:"status"`
	SaleTime         time.Time  `json:"sale_time"`
	DeliveryAddress  string     `json:"delivery_address,omitempty"`
	DeliveryNotes    string     `json:"delivery_notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Items            []SaleItem `json:"items,omitempty"`
}

type SaleDraft struct {
	ClientID        string          `json:"client_id"`
	Type            string          `json:"type"`
	PaymentMethod   string          `json:"payment_method"`
	Adjustment      float64         `json:"adjustment"`
	SaleTime        *time.Time      `json:"sale_time,omitempty"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryNotes   string          `json:"delivery_notes"`
	Items           []SaleItemDraft `json:"items"`
}

type SaleEditRequest struct {
	Items      []SaleItemDraft `json:"items"`
	Adjustment float64         `json:"adjustment"`
}

// PaymentRecord is the append-only history of money received. UsedCredit
// marks payments funded from the client's own prepaid credit balance.
type PaymentRecord struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	Amount     float64   `json:"amount"`
	UsedCredit bool      `json:"used_credit"`
	PaidAt     time.Time `json:"paid_at"`
}

type PaymentRequest struct {
	Amount float64 `json:"amount"`
}

type AllocationResult struct {
	Payment      PaymentRecord `json:"payment"`
	SalesSettled int           `json:"sales_settled"`
	SalesPartial int           `json:"sales_partial"`
	CreditAdded  float64       `json:"credit_added"`
	TotalDebt    float64       `json:"total_debt"`
}

type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
}

type ExpenseCreateRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Date        string  `json:"date"` // "2006-01-02", empty means today
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Backup is the portable full-dataset snapshot. Sale items are flattened
// into their own top-level array; Sale.Items is left empty on export so
// relationships are restored from SaleItems during import.
type Backup struct {
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Clients   []Client        `json:"clients"`
	Products  []Product       `json:"products"`
	Sales     []Sale          `json:"sales"`
	SaleItems []SaleItem      `json:"sale_items"`
	Expenses  []Expense       `json:"expenses"`
	Payments  []PaymentRecord `json:"payment_records"`
}

type SummaryReport struct {
	ReceivablesTotal  float64           `json:"receivables_total"`
	ClientCreditTotal float64           `json:"client_credit_total"`
	StockValueAtCost  float64           `json:"stock_value_at_cost"`
	LowStock          []LowStockProduct `json:"low_stock"`
	TodaySalesTotal   float64           `json:"today_sales_total"`
	TodaySalesCount   int64             `json:"today_sales_count"`
	MonthExpenses     float64           `json:"month_expenses"`
	GeneratedAt       string            `json:"generated_at"`
}

type LowStockProduct struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Stock     float64 `json:"stock"`
	MinStock  float64 `json:"min_stock"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupImportRequest wraps the snapshot with the manager PIN that confirms
// the destructive restore.
type BackupImportRequest struct {
	ManagerPIN string  `json:"manager_pin"`
	Backup     *Backup `json:"backup"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
