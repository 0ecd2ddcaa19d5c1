package pharmacy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hmis/hmis/internal/platform/notify"
)

// Service owns the pharmacy business rules. Every compound mutation
// (dispense, walk-in create, transfer completion, stock-take completion)
// validates all invariants against current state before performing any write,
// so a validation failure never leaves a partial mutation behind.
type Service struct {
	inventory     InventoryRepository
	movements     MovementRepository
	prescriptions PrescriptionRepository
	transfers     TransferRepository
	stockTakes    StockTakeRepository
	notifier      notify.Notifier
}

func NewService(
	inventory InventoryRepository,
	movements MovementRepository,
	prescriptions PrescriptionRepository,
	transfers TransferRepository,
	stockTakes StockTakeRepository,
	notifier notify.Notifier,
) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Service{
		inventory:     inventory,
		movements:     movements,
		prescriptions: prescriptions,
		transfers:     transfers,
		stockTakes:    stockTakes,
		notifier:      notifier,
	}
}

// -- Inventory --

func (s *Service) AddItem(ctx context.Context, item *InventoryItem) error {
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	if item.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	if item.ReorderLevel < 0 {
		return fmt.Errorf("reorder_level must not be negative")
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("unit_price must not be negative")
	}
	return s.inventory.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return s.inventory.GetByID(ctx, id)
}

func (s *Service) ListItems(ctx context.Context) ([]*InventoryItem, error) {
	return s.inventory.List(ctx)
}

func (s *Service) ListItemsByCategory(ctx context.Context, category string) ([]*InventoryItem, error) {
	return s.inventory.ListByCategory(ctx, category)
}

// UpdateItem merges the non-nil fields of upd into the item and refreshes
// UpdatedAt. Quantity is not part of InventoryUpdate: quantity moves through
// the ledger only.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, upd InventoryUpdate) (*InventoryItem, error) {
	item, err := s.inventory.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		item.Name = *upd.Name
	}
	if upd.GenericName != nil {
		item.GenericName = *upd.GenericName
	}
	if upd.Category != nil {
		item.Category = *upd.Category
	}
	if upd.DosageForm != nil {
		item.DosageForm = *upd.DosageForm
	}
	if upd.Strength != nil {
		item.Strength = *upd.Strength
	}
	if upd.Manufacturer != nil {
		item.Manufacturer = *upd.Manufacturer
	}
	if upd.BatchNumber != nil {
		item.BatchNumber = *upd.BatchNumber
	}
	if upd.ExpiryDate != nil {
		item.ExpiryDate = *upd.ExpiryDate
	}
	if upd.ReorderLevel != nil {
		if *upd.ReorderLevel < 0 {
			return nil, fmt.Errorf("reorder_level must not be negative")
		}
		item.ReorderLevel = *upd.ReorderLevel
	}
	if upd.UnitPrice != nil {
		if *upd.UnitPrice < 0 {
			return nil, fmt.Errorf("unit_price must not be negative")
		}
		item.UnitPrice = *upd.UnitPrice
	}
	if upd.Location != nil {
		item.Location = *upd.Location
	}
	if upd.Branch != nil {
		item.Branch = *upd.Branch
	}
	item.UpdatedAt = time.Now()
	if err := s.inventory.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) (*InventoryItem, error) {
	if price < 0 {
		return nil, fmt.Errorf("unit_price must not be negative")
	}
	return s.UpdateItem(ctx, id, InventoryUpdate{UnitPrice: &price})
}

// CheckAvailability reports whether the requested quantity is in stock for
// the named medication. Lookup is by denormalized name — the first matching
// row wins, so rows sharing a name (other batches or branches) are not summed.
func (s *Service) CheckAvailability(ctx context.Context, name string, quantity int) (Availability, error) {
	item, err := s.inventory.GetByName(ctx, name)
	if err != nil {
		return Availability{Available: false, CurrentStock: 0}, nil
	}
	return Availability{
		Available:    item.Quantity >= quantity,
		CurrentStock: item.Quantity,
	}, nil
}

// -- Stock movement ledger --

var validMovementTypes = map[string]bool{
	MovementIn: true, MovementOut: true, MovementAdjustment: true, MovementTransfer: true,
}

// RecordMovement appends a ledger entry and applies the matching inventory
// delta. The pair succeeds or fails together: validation happens before
// either write.
func (s *Service) RecordMovement(ctx context.Context, m *StockMovement) error {
	return s.applyMovement(ctx, m)
}

func (s *Service) MovementsFor(ctx context.Context, medicationID uuid.UUID) ([]*StockMovement, error) {
	return s.movements.ListByMedication(ctx, medicationID)
}

func (s *Service) ListMovements(ctx context.Context) ([]*StockMovement, error) {
	return s.movements.List(ctx)
}

// applyMovement validates a movement against current inventory, appends it to
// the ledger, and mutates the referenced item's quantity:
//
//	in          +quantity
//	out         -quantity (must not overdraw)
//	adjustment  +quantity, signed either way (must not drive below zero)
//	transfer    -quantity at the source row, +quantity at the destination row
//	            sharing the medication name, when one exists
func (s *Service) applyMovement(ctx context.Context, m *StockMovement) error {
	if !validMovementTypes[m.Type] {
		return fmt.Errorf("invalid movement type: %s", m.Type)
	}
	if m.Type != MovementAdjustment && m.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if m.Type == MovementAdjustment && m.Quantity == 0 {
		return fmt.Errorf("adjustment quantity must not be zero")
	}
	if m.Type == MovementTransfer {
		if m.FromLocation == nil || m.ToLocation == nil || *m.FromLocation == "" || *m.ToLocation == "" {
			return fmt.Errorf("transfer requires from_location and to_location")
		}
	}

	item, err := s.inventory.GetByID(ctx, m.MedicationID)
	if err != nil {
		return fmt.Errorf("medication %s not found", m.MedicationID)
	}
	if m.MedicationName == "" {
		m.MedicationName = item.Name
	}

	var delta int
	switch m.Type {
	case MovementIn:
		delta = m.Quantity
	case MovementOut:
		delta = -m.Quantity
	case MovementAdjustment:
		delta = m.Quantity
	case MovementTransfer:
		delta = -m.Quantity
	}
	if item.Quantity+delta < 0 {
		return fmt.Errorf("insufficient stock for %s: %d available", item.Name, item.Quantity)
	}

	// Destination row for a transfer: another per-location row with the same
	// name. Resolved before any write so a lookup failure cannot strand a
	// half-applied transfer.
	var dest *InventoryItem
	if m.Type == MovementTransfer {
		rows, err := s.inventory.ListByName(ctx, item.Name)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.ID != item.ID && row.Location == *m.ToLocation {
				dest = row
				break
			}
		}
	}

	if err := s.movements.Append(ctx, m); err != nil {
		return err
	}

	now := time.Now()
	item.Quantity += delta
	item.UpdatedAt = now
	if err := s.inventory.Update(ctx, item); err != nil {
		return err
	}
	if dest != nil {
		dest.Quantity += m.Quantity
		dest.UpdatedAt = now
		if err := s.inventory.Update(ctx, dest); err != nil {
			return err
		}
	}

	if delta < 0 && item.Quantity <= item.ReorderLevel {
		s.notifier.NotifyRole(ctx, "pharmacy", notify.CodeInventoryLow,
			fmt.Sprintf("%s inventory is low (%d remaining). Please reorder.", item.Name, item.Quantity),
			map[string]interface{}{
				"medication_name": item.Name,
				"current_stock":   item.Quantity,
				"reorder_level":   item.ReorderLevel,
			})
	}
	return nil
}

// -- Prescriptions --

var validPrescriptionStatuses = map[string]bool{
	StatusPending: true, StatusDispensed: true, StatusPartiallyDispensed: true,
	StatusOutOfStock: true, StatusCancelled: true,
}

var validPatientTypes = map[string]bool{
	PatientOutpatient: true, PatientInpatient: true, PatientWalkIn: true,
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context) ([]*Prescription, error) {
	return s.prescriptions.List(ctx)
}

func (s *Service) ListPrescriptionsByPatient(ctx context.Context, patientID string) ([]*Prescription, error) {
	return s.prescriptions.ListByPatient(ctx, patientID)
}

func (s *Service) ListPrescriptionsByStatus(ctx context.Context, status string) ([]*Prescription, error) {
	if !validPrescriptionStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	return s.prescriptions.ListByStatus(ctx, status)
}

// UpdatePrescriptionStatus is the manual status override, with an optional
// audit note appended to the prescription's notes.
func (s *Service) UpdatePrescriptionStatus(ctx context.Context, id uuid.UUID, status string, note string) (*Prescription, error) {
	if !validPrescriptionStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	p.AppendNote(note)
	p.UpdatedAt = time.Now()
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateWalkIn creates a walk-in prescription after an aggregate availability
// check across all lines. On any shortfall the error lists every offending
// medication name and nothing is created.
func (s *Service) CreateWalkIn(ctx context.Context, p *Prescription) error {
	if p.PatientName == "" {
		return fmt.Errorf("patient_name is required")
	}
	if len(p.Medications) == 0 {
		return fmt.Errorf("at least one medication line is required")
	}
	required := map[string]int{}
	var order []string
	for _, l := range p.Medications {
		if l.Name == "" {
			return fmt.Errorf("medication name is required on every line")
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive for %s", l.Name)
		}
		if _, seen := required[l.Name]; !seen {
			order = append(order, l.Name)
		}
		required[l.Name] += l.Quantity
	}

	var short []string
	for _, name := range order {
		avail, err := s.CheckAvailability(ctx, name, required[name])
		if err != nil {
			return err
		}
		if !avail.Available {
			short = append(short, name)
		}
	}
	if len(short) > 0 {
		return fmt.Errorf("insufficient stock for: %s", strings.Join(short, ", "))
	}

	p.Status = StatusPending
	p.IsWalkIn = true
	pt := PatientWalkIn
	p.PatientType = &pt
	for i := range p.Medications {
		p.Medications[i].Dispensed = 0
		p.Medications[i].Status = StatusPending
	}
	return s.prescriptions.Create(ctx, p)
}

// DispenseLine dispenses qty units of one prescription line. It fails without
// mutating anything when qty exceeds the line's remaining quantity or the
// current stock for that medication name. On success the line's progress, the
// line and aggregate statuses, the ledger, and the inventory quantity all
// advance together.
func (s *Service) DispenseLine(ctx context.Context, prescriptionID, lineID uuid.UUID, qty int, performedBy string) (*Prescription, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	p, err := s.prescriptions.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCancelled {
		return nil, fmt.Errorf("prescription is cancelled")
	}
	idx := -1
	for i := range p.Medications {
		if p.Medications[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("medication line %s not found", lineID)
	}
	line := &p.Medications[idx]
	if remaining := line.Remaining(); qty > remaining {
		return nil, fmt.Errorf("quantity %d exceeds remaining %d for %s", qty, remaining, line.Name)
	}
	item, err := s.inventory.GetByName(ctx, line.Name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in inventory", line.Name)
	}
	if item.Quantity < qty {
		return nil, fmt.Errorf("insufficient stock for %s: %d available", line.Name, item.Quantity)
	}

	// All invariants hold; commit.
	line.Dispensed += qty
	line.Status = LineStatus(line.Dispensed, line.Quantity)
	p.Status = AggregateStatus(p.Medications)
	p.UpdatedAt = time.Now()

	ref := p.ID.String()
	movement := &StockMovement{
		MedicationID:   item.ID,
		MedicationName: line.Name,
		Type:           MovementOut,
		Quantity:       qty,
		Reason:         fmt.Sprintf("Dispensed to %s", p.PatientName),
		PerformedBy:    performedBy,
		Reference:      &ref,
	}
	if err := s.applyMovement(ctx, movement); err != nil {
		return nil, err
	}
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CompletePrescription marks the whole prescription dispensed. Every line must
// have some dispense progress first.
func (s *Service) CompletePrescription(ctx context.Context, id uuid.UUID, dispensedBy string) (*Prescription, error) {
	return s.finalize(ctx, id, "", dispensedBy)
}

// DispenseDrugs finalizes a prescription for the given patient type. Stock was
// already decremented line by line at dispense time, so no further movements
// are written here.
func (s *Service) DispenseDrugs(ctx context.Context, id uuid.UUID, patientType, dispensedBy string) (*Prescription, error) {
	if !validPatientTypes[patientType] {
		return nil, fmt.Errorf("invalid patient type: %s", patientType)
	}
	return s.finalize(ctx, id, patientType, dispensedBy)
}

func (s *Service) finalize(ctx context.Context, id uuid.UUID, patientType, dispensedBy string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCancelled {
		return nil, fmt.Errorf("prescription is cancelled")
	}
	for _, l := range p.Medications {
		if l.Dispensed <= 0 {
			return nil, fmt.Errorf("%s has not been dispensed", l.Name)
		}
	}
	now := time.Now()
	p.Status = StatusDispensed
	p.DispensedAt = &now
	p.DispensedBy = &dispensedBy
	if patientType != "" {
		p.PatientType = &patientType
	}
	p.UpdatedAt = now
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	s.notifier.NotifyRole(ctx, "front_office", notify.CodePrescriptionDispensed,
		fmt.Sprintf("Prescription for patient %s (Token #%d) has been dispensed", p.PatientName, p.TokenNumber),
		map[string]interface{}{
			"patient_id":   p.PatientID,
			"patient_name": p.PatientName,
			"token_number": p.TokenNumber,
		})
	return p, nil
}

// MarkLineOutOfStock flags one line as out of stock. The prescription itself
// goes out_of_stock only when every line is.
func (s *Service) MarkLineOutOfStock(ctx context.Context, prescriptionID, lineID uuid.UUID, note string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	idx := -1
	allOut := true
	for i := range p.Medications {
		if p.Medications[i].ID == lineID {
			idx = i
			continue
		}
		if p.Medications[i].Status != StatusOutOfStock {
			allOut = false
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("medication line %s not found", lineID)
	}
	if p.Status == StatusCancelled {
		return nil, fmt.Errorf("prescription is cancelled")
	}
	switch p.Medications[idx].Status {
	case StatusPending, StatusPartiallyDispensed:
	default:
		return nil, fmt.Errorf("medication line is %s and cannot be marked out of stock", p.Medications[idx].Status)
	}
	p.Medications[idx].Status = StatusOutOfStock
	if allOut {
		p.Status = StatusOutOfStock
	}
	p.AppendNote(note)
	p.UpdatedAt = time.Now()
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CancelPrescription cancels undispensed drugs with an audit note.
func (s *Service) CancelPrescription(ctx context.Context, id uuid.UUID, reason string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusDispensed {
		return nil, fmt.Errorf("prescription is already dispensed")
	}
	p.Status = StatusCancelled
	p.AppendNote("Cancelled: " + reason)
	p.UpdatedAt = time.Now()
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ConfirmPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.IsConfirmed = true
	p.UpdatedAt = time.Now()
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ReverseConfirmation(ctx context.Context, id uuid.UUID, reason string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.IsConfirmed = false
	p.AppendNote("Reversed: " + reason)
	p.UpdatedAt = time.Now()
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// -- Transfers --

var validTransferTypes = map[string]bool{
	TransferInternal: true, TransferExternal: true,
}

func (s *Service) CreateTransfer(ctx context.Context, t *Transfer) error {
	if !validTransferTypes[t.TransferType] {
		return fmt.Errorf("invalid transfer type: %s", t.TransferType)
	}
	if t.FromLocation == "" || t.ToLocation == "" {
		return fmt.Errorf("from_location and to_location are required")
	}
	if t.FromLocation == t.ToLocation {
		return fmt.Errorf("from_location and to_location must differ")
	}
	if len(t.Medications) == 0 {
		return fmt.Errorf("at least one medication line is required")
	}
	for i := range t.Medications {
		l := &t.Medications[i]
		if l.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive for %s", l.MedicationName)
		}
		item, err := s.inventory.GetByID(ctx, l.MedicationID)
		if err != nil {
			return fmt.Errorf("medication %s not found", l.MedicationID)
		}
		if l.MedicationName == "" {
			l.MedicationName = item.Name
		}
	}
	t.Status = TransferPending
	return s.transfers.Create(ctx, t)
}

func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	return s.transfers.GetByID(ctx, id)
}

func (s *Service) ListTransfers(ctx context.Context) ([]*Transfer, error) {
	return s.transfers.List(ctx)
}

// CompleteTransfer emits one transfer movement per line (-qty at the source
// row, +qty at the destination row when inventory is modeled per location)
// and marks the transfer completed. Source stock for every line is validated
// before any movement is written.
func (s *Service) CompleteTransfer(ctx context.Context, id uuid.UUID, completedBy string) (*Transfer, error) {
	t, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != TransferPending {
		return nil, fmt.Errorf("transfer is %s", t.Status)
	}
	// A transfer may carry several lines for one medication; validate the
	// combined demand so a failing line cannot strand a half-applied
	// transfer.
	required := map[uuid.UUID]int{}
	var order []uuid.UUID
	for _, l := range t.Medications {
		if _, seen := required[l.MedicationID]; !seen {
			order = append(order, l.MedicationID)
		}
		required[l.MedicationID] += l.Quantity
	}
	for _, medID := range order {
		item, err := s.inventory.GetByID(ctx, medID)
		if err != nil {
			return nil, fmt.Errorf("medication %s not found", medID)
		}
		if item.Quantity < required[medID] {
			return nil, fmt.Errorf("insufficient stock for %s: %d available", item.Name, item.Quantity)
		}
	}

	ref := t.ID.String()
	for _, l := range t.Medications {
		movement := &StockMovement{
			MedicationID:   l.MedicationID,
			MedicationName: l.MedicationName,
			Type:           MovementTransfer,
			Quantity:       l.Quantity,
			FromLocation:   &t.FromLocation,
			ToLocation:     &t.ToLocation,
			Reason:         fmt.Sprintf("Transfer: %s", t.TransferType),
			PerformedBy:    completedBy,
			Reference:      &ref,
		}
		if err := s.applyMovement(ctx, movement); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	t.Status = TransferCompleted
	t.CompletedBy = &completedBy
	t.CompletedAt = &now
	if err := s.transfers.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) CancelTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	t, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != TransferPending {
		return nil, fmt.Errorf("transfer is %s", t.Status)
	}
	t.Status = TransferCancelled
	if err := s.transfers.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// -- Stock takes --

// CreateStockTake opens a stock take with expected quantities snapshotted
// from current inventory. When no items are given, every item at the stock
// take's location (or everywhere, if the location is blank) is included.
func (s *Service) CreateStockTake(ctx context.Context, st *StockTake) error {
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}
	if st.ConductedBy == "" {
		return fmt.Errorf("conducted_by is required")
	}
	if st.StartDate.IsZero() {
		st.StartDate = time.Now()
	}

	if len(st.Items) == 0 {
		items, err := s.inventory.List(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			if st.Location != "" && item.Location != st.Location {
				continue
			}
			st.Items = append(st.Items, StockTakeItem{
				MedicationID:     item.ID,
				MedicationName:   item.Name,
				ExpectedQuantity: item.Quantity,
				ActualQuantity:   item.Quantity,
			})
		}
	} else {
		for i := range st.Items {
			entry := &st.Items[i]
			item, err := s.inventory.GetByID(ctx, entry.MedicationID)
			if err != nil {
				return fmt.Errorf("medication %s not found", entry.MedicationID)
			}
			entry.MedicationName = item.Name
			entry.ExpectedQuantity = item.Quantity
			entry.Discrepancy = entry.ActualQuantity - entry.ExpectedQuantity
		}
	}

	st.Status = StockTakePending
	st.EndDate = nil
	return s.stockTakes.Create(ctx, st)
}

func (s *Service) GetStockTake(ctx context.Context, id uuid.UUID) (*StockTake, error) {
	return s.stockTakes.GetByID(ctx, id)
}

func (s *Service) ListStockTakes(ctx context.Context) ([]*StockTake, error) {
	return s.stockTakes.List(ctx)
}

func (s *Service) StartStockTake(ctx context.Context, id uuid.UUID) (*StockTake, error) {
	st, err := s.stockTakes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StockTakePending {
		return nil, fmt.Errorf("stock take is %s", st.Status)
	}
	st.Status = StockTakeInProgress
	if err := s.stockTakes.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RecordCount stores a physical count for one medication and recomputes its
// discrepancy. Counts may be revised any number of times until completion.
func (s *Service) RecordCount(ctx context.Context, stockTakeID, medicationID uuid.UUID, actual int, note string) (*StockTake, error) {
	if actual < 0 {
		return nil, fmt.Errorf("actual quantity must not be negative")
	}
	st, err := s.stockTakes.GetByID(ctx, stockTakeID)
	if err != nil {
		return nil, err
	}
	if st.Status == StockTakeCompleted {
		return nil, fmt.Errorf("stock take is already completed")
	}
	for i := range st.Items {
		entry := &st.Items[i]
		if entry.MedicationID != medicationID {
			continue
		}
		entry.ActualQuantity = actual
		entry.Discrepancy = actual - entry.ExpectedQuantity
		if note != "" {
			entry.Notes = &note
		}
		if err := s.stockTakes.Update(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("medication %s is not part of this stock take", medicationID)
}

// CompleteStockTake emits one adjustment movement per non-zero discrepancy
// and closes the stock take. A completed stock take cannot be completed
// again: without this guard discrepancies would double-apply.
func (s *Service) CompleteStockTake(ctx context.Context, id uuid.UUID) (*StockTake, error) {
	st, err := s.stockTakes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status == StockTakeCompleted {
		return nil, fmt.Errorf("stock take is already completed")
	}

	// Walk the sheet once against projected stock levels before writing
	// anything, so a negative discrepancy that would overdraw a medication
	// rejects the whole completion instead of leaving earlier adjustments
	// applied.
	projected := map[uuid.UUID]int{}
	for _, entry := range st.Items {
		if entry.Discrepancy == 0 {
			continue
		}
		if _, ok := projected[entry.MedicationID]; !ok {
			item, err := s.inventory.GetByID(ctx, entry.MedicationID)
			if err != nil {
				return nil, fmt.Errorf("medication %s not found", entry.MedicationID)
			}
			projected[entry.MedicationID] = item.Quantity
		}
		projected[entry.MedicationID] += entry.Discrepancy
		if projected[entry.MedicationID] < 0 {
			return nil, fmt.Errorf("insufficient stock for %s: adjustment of %d exceeds current quantity", entry.MedicationName, entry.Discrepancy)
		}
	}

	ref := st.ID.String()
	for _, entry := range st.Items {
		if entry.Discrepancy == 0 {
			continue
		}
		movement := &StockMovement{
			MedicationID:   entry.MedicationID,
			MedicationName: entry.MedicationName,
			Type:           MovementAdjustment,
			Quantity:       entry.Discrepancy,
			Reason:         fmt.Sprintf("Stock take adjustment: %s", st.Name),
			PerformedBy:    st.ConductedBy,
			Reference:      &ref,
		}
		if err := s.applyMovement(ctx, movement); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	st.Status = StockTakeCompleted
	st.EndDate = &now
	if err := s.stockTakes.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// -- Returns --

// CreateReturn books returned stock back in as an "in" movement whose reason
// carries the return tag consumed by the returns report.
func (s *Service) CreateReturn(ctx context.Context, medicationID uuid.UUID, quantity int, reason, returnedBy string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	item, err := s.inventory.GetByID(ctx, medicationID)
	if err != nil {
		return fmt.Errorf("medication %s not found", medicationID)
	}
	ref := fmt.Sprintf("RET%d", time.Now().UnixMilli())
	return s.applyMovement(ctx, &StockMovement{
		MedicationID:   item.ID,
		MedicationName: item.Name,
		Type:           MovementIn,
		Quantity:       quantity,
		Reason:         ReturnReasonPrefix + reason,
		PerformedBy:    returnedBy,
		Reference:      &ref,
	})
}

// sortMovements orders ledger entries oldest first; used by report queries
// whose repos do not guarantee order.
func sortMovements(ms []*StockMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].PerformedAt.Before(ms[j].PerformedAt)
	})
}
