package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Prescription and line statuses.
const (
	StatusPending            = "pending"
	StatusDispensed          = "dispensed"
	StatusPartiallyDispensed = "partially_dispensed"
	StatusOutOfStock         = "out_of_stock"
	StatusCancelled          = "cancelled"
)

// Stock movement types.
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
	MovementTransfer   = "transfer"
)

// Transfer statuses and types.
const (
	TransferPending   = "pending"
	TransferCompleted = "completed"
	TransferCancelled = "cancelled"

	TransferInternal = "internal"
	TransferExternal = "external"
)

// Stock take statuses.
const (
	StockTakePending    = "pending"
	StockTakeInProgress = "in_progress"
	StockTakeCompleted  = "completed"
)

// Patient types carried on walk-in and dispense flows.
const (
	PatientOutpatient = "outpatient"
	PatientInpatient  = "inpatient"
	PatientWalkIn     = "walkin"
)

// ReturnReasonPrefix tags an "in" movement as a pharmacy return. The returns
// report filters on this prefix.
const ReturnReasonPrefix = "Return: "

// InventoryItem maps to the pharmacy_inventory table (one row per medication
// batch per storage location).
type InventoryItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GenericName  string    `db:"generic_name" json:"generic_name"`
	Category     string    `db:"category" json:"category"`
	DosageForm   string    `db:"dosage_form" json:"dosage_form"`
	Strength     string    `db:"strength" json:"strength"`
	Manufacturer string    `db:"manufacturer" json:"manufacturer"`
	BatchNumber  string    `db:"batch_number" json:"batch_number"`
	ExpiryDate   time.Time `db:"expiry_date" json:"expiry_date"`
	Quantity     int       `db:"quantity" json:"quantity"`
	ReorderLevel int       `db:"reorder_level" json:"reorder_level"`
	UnitPrice    float64   `db:"unit_price" json:"unit_price"`
	Location     string    `db:"location" json:"location"`
	Branch       string    `db:"branch" json:"branch"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryUpdate is a partial field set for inventory edits. Nil fields are
// left untouched. Quantity is deliberately absent: quantity changes go through
// the stock movement ledger.
type InventoryUpdate struct {
	Name         *string    `json:"name,omitempty"`
	GenericName  *string    `json:"generic_name,omitempty"`
	Category     *string    `json:"category,omitempty"`
	DosageForm   *string    `json:"dosage_form,omitempty"`
	Strength     *string    `json:"strength,omitempty"`
	Manufacturer *string    `json:"manufacturer,omitempty"`
	BatchNumber  *string    `json:"batch_number,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	ReorderLevel *int       `json:"reorder_level,omitempty"`
	UnitPrice    *float64   `json:"unit_price,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Branch       *string    `json:"branch,omitempty"`
}

// Availability is the result of a stock check keyed by medication name.
type Availability struct {
	Available    bool `json:"available"`
	CurrentStock int  `json:"current_stock"`
}

// PrescriptionLine is a single ordered medication on a prescription with its
// own dispense progress.
type PrescriptionLine struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Duration     string    `db:"duration" json:"duration"`
	Instructions string    `db:"instructions" json:"instructions"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Dispensed    int       `db:"dispensed" json:"dispensed"`
	Status       string    `db:"status" json:"status"`
}

// Remaining returns the undelivered portion of the ordered quantity.
func (l *PrescriptionLine) Remaining() int {
	return l.Quantity - l.Dispensed
}

// Prescription maps to the pharmacy_prescription table.
type Prescription struct {
	ID                    uuid.UUID          `db:"id" json:"id"`
	PrescriptionNumber    string             `db:"prescription_number" json:"prescription_number"`
	PatientID             string             `db:"patient_id" json:"patient_id"`
	PatientName           string             `db:"patient_name" json:"patient_name"`
	TokenNumber           int                `db:"token_number" json:"token_number"`
	DoctorID              string             `db:"doctor_id" json:"doctor_id"`
	DoctorName            string             `db:"doctor_name" json:"doctor_name"`
	Medications           []PrescriptionLine `db:"-" json:"medications"`
	Status                string             `db:"status" json:"status"`
	PaymentStatus         *string            `db:"payment_status" json:"payment_status,omitempty"`
	InsuranceProvider     *string            `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicyNumber *string            `db:"insurance_policy_number" json:"insurance_policy_number,omitempty"`
	TotalAmount           *float64           `db:"total_amount" json:"total_amount,omitempty"`
	Notes                 *string            `db:"notes" json:"notes,omitempty"`
	PatientType           *string            `db:"patient_type" json:"patient_type,omitempty"`
	IsWalkIn              bool               `db:"is_walk_in" json:"is_walk_in"`
	IsConfirmed           bool               `db:"is_confirmed" json:"is_confirmed"`
	DispensedAt           *time.Time         `db:"dispensed_at" json:"dispensed_at,omitempty"`
	DispensedBy           *string            `db:"dispensed_by" json:"dispensed_by,omitempty"`
	CreatedAt             time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// AppendNote joins an audit note onto the prescription's free-text notes.
func (p *Prescription) AppendNote(note string) {
	if note == "" {
		return
	}
	if p.Notes == nil || *p.Notes == "" {
		p.Notes = &note
		return
	}
	joined := *p.Notes + "\n" + note
	p.Notes = &joined
}

// LineStatus derives a line's status from its dispense progress. Terminal
// states set explicitly (out_of_stock, cancelled) are preserved by callers and
// never produced here.
func LineStatus(dispensed, ordered int) string {
	switch {
	case ordered > 0 && dispensed >= ordered:
		return StatusDispensed
	case dispensed > 0:
		return StatusPartiallyDispensed
	default:
		return StatusPending
	}
}

// AggregateStatus derives the prescription-level status from its lines:
// dispensed iff every line is dispensed, partially_dispensed iff any line has
// progress, otherwise pending. Cancelled and out_of_stock are assigned
// explicitly by their operations, never derived.
func AggregateStatus(lines []PrescriptionLine) string {
	if len(lines) == 0 {
		return StatusPending
	}
	all := true
	any := false
	for _, l := range lines {
		switch l.Status {
		case StatusDispensed:
			any = true
		case StatusPartiallyDispensed:
			any = true
			all = false
		default:
			all = false
		}
	}
	if all {
		return StatusDispensed
	}
	if any {
		return StatusPartiallyDispensed
	}
	return StatusPending
}

// StockMovement is an append-only ledger entry. Quantity is a magnitude for
// in/out/transfer and a signed delta for adjustment.
type StockMovement struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	MedicationID   uuid.UUID  `db:"medication_id" json:"medication_id"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Type           string     `db:"type" json:"type"`
	Quantity       int        `db:"quantity" json:"quantity"`
	FromLocation   *string    `db:"from_location" json:"from_location,omitempty"`
	ToLocation     *string    `db:"to_location" json:"to_location,omitempty"`
	Reason         string     `db:"reason" json:"reason"`
	PerformedBy    string     `db:"performed_by" json:"performed_by"`
	PerformedAt    time.Time  `db:"performed_at" json:"performed_at"`
	Reference      *string    `db:"reference" json:"reference,omitempty"`
}

// TransferLine is one medication on a transfer.
type TransferLine struct {
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Quantity       int       `db:"quantity" json:"quantity"`
}

// Transfer maps to the pharmacy_transfer table.
type Transfer struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	TransferType string         `db:"transfer_type" json:"transfer_type"`
	FromLocation string         `db:"from_location" json:"from_location"`
	ToLocation   string         `db:"to_location" json:"to_location"`
	Medications  []TransferLine `db:"-" json:"medications"`
	Status       string         `db:"status" json:"status"`
	RequestedBy  string         `db:"requested_by" json:"requested_by"`
	RequestedAt  time.Time      `db:"requested_at" json:"requested_at"`
	CompletedBy  *string        `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	Notes        *string        `db:"notes" json:"notes,omitempty"`
}

// StockTakeItem is one counted medication on a stock take. Discrepancy is
// actual minus expected, recomputed every time a count is recorded.
type StockTakeItem struct {
	MedicationID     uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName   string    `db:"medication_name" json:"medication_name"`
	ExpectedQuantity int       `db:"expected_quantity" json:"expected_quantity"`
	ActualQuantity   int       `db:"actual_quantity" json:"actual_quantity"`
	Discrepancy      int       `db:"discrepancy" json:"discrepancy"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
}

// StockTake maps to the pharmacy_stock_take table.
type StockTake struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Status      string          `db:"status" json:"status"`
	StartDate   time.Time       `db:"start_date" json:"start_date"`
	EndDate     *time.Time      `db:"end_date" json:"end_date,omitempty"`
	Location    string          `db:"location" json:"location"`
	Branch      string          `db:"branch" json:"branch"`
	ConductedBy string          `db:"conducted_by" json:"conducted_by"`
	Items       []StockTakeItem `db:"-" json:"items"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
}

// MovementSummaryRow is one medication's reconciliation over a date range.
// OpeningBalance is reconstructed backward from the closing balance; see
// Service.MovementSummary for the documented approximation.
type MovementSummaryRow struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	OpeningBalance int       `json:"opening_balance"`
	Received       int       `json:"received"`
	Dispensed      int       `json:"dispensed"`
	Adjusted       int       `json:"adjusted"`
	Transferred    int       `json:"transferred"`
	ClosingBalance int       `json:"closing_balance"`
}

// ExpiryReportItem annotates an inventory item for the expiry report.
type ExpiryReportItem struct {
	InventoryItem
	IsExpired      bool `json:"is_expired"`
	IsExpiringSoon bool `json:"is_expiring_soon"`
}

// ReturnRow is one entry of the pharmacy returns report.
type ReturnRow struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Quantity       int       `json:"quantity"`
	Reason         string    `json:"reason"`
	ReturnedBy     string    `json:"returned_by"`
	ReturnedAt     time.Time `json:"returned_at"`
}

// PriceRow is one entry of the medication price list.
type PriceRow struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	UnitPrice      float64   `json:"unit_price"`
	LastUpdated    time.Time `json:"last_updated"`
}
