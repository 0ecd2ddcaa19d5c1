package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Inventory Repository ===========

type inventoryRepoPG struct{ pool *pgxpool.Pool }

func NewInventoryRepoPG(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepoPG{pool: pool}
}

const inventoryCols = `id, name, generic_name, category, dosage_form, strength,
	manufacturer, batch_number, expiry_date, quantity, reorder_level,
	unit_price, location, branch, created_at, updated_at`

func scanInventory(row pgx.Row) (*InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(&it.ID, &it.Name, &it.GenericName, &it.Category, &it.DosageForm, &it.Strength,
		&it.Manufacturer, &it.BatchNumber, &it.ExpiryDate, &it.Quantity, &it.ReorderLevel,
		&it.UnitPrice, &it.Location, &it.Branch, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func collectInventory(rows pgx.Rows) ([]*InventoryItem, error) {
	defer rows.Close()
	var items []*InventoryItem
	for rows.Next() {
		it, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *inventoryRepoPG) Create(ctx context.Context, item *InventoryItem) error {
	item.ID = uuid.New()
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pharmacy_inventory (id, name, generic_name, category, dosage_form, strength,
			manufacturer, batch_number, expiry_date, quantity, reorder_level,
			unit_price, location, branch, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		item.ID, item.Name, item.GenericName, item.Category, item.DosageForm, item.Strength,
		item.Manufacturer, item.BatchNumber, item.ExpiryDate, item.Quantity, item.ReorderLevel,
		item.UnitPrice, item.Location, item.Branch, item.CreatedAt, item.UpdatedAt)
	return err
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return scanInventory(r.pool.QueryRow(ctx,
		`SELECT `+inventoryCols+` FROM pharmacy_inventory WHERE id = $1`, id))
}

func (r *inventoryRepoPG) GetByName(ctx context.Context, name string) (*InventoryItem, error) {
	return scanInventory(r.pool.QueryRow(ctx,
		`SELECT `+inventoryCols+` FROM pharmacy_inventory WHERE name = $1 ORDER BY created_at LIMIT 1`, name))
}

func (r *inventoryRepoPG) ListByName(ctx context.Context, name string) ([]*InventoryItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inventoryCols+` FROM pharmacy_inventory WHERE name = $1 ORDER BY created_at`, name)
	if err != nil {
		return nil, err
	}
	return collectInventory(rows)
}

func (r *inventoryRepoPG) Update(ctx context.Context, item *InventoryItem) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pharmacy_inventory SET name=$2, generic_name=$3, category=$4, dosage_form=$5,
			strength=$6, manufacturer=$7, batch_number=$8, expiry_date=$9, quantity=$10,
			reorder_level=$11, unit_price=$12, location=$13, branch=$14, updated_at=$15
		WHERE id = $1`,
		item.ID, item.Name, item.GenericName, item.Category, item.DosageForm,
		item.Strength, item.Manufacturer, item.BatchNumber, item.ExpiryDate, item.Quantity,
		item.ReorderLevel, item.UnitPrice, item.Location, item.Branch, item.UpdatedAt)
	return err
}

func (r *inventoryRepoPG) List(ctx context.Context) ([]*InventoryItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inventoryCols+` FROM pharmacy_inventory ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return collectInventory(rows)
}

func (r *inventoryRepoPG) ListByCategory(ctx context.Context, category string) ([]*InventoryItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inventoryCols+` FROM pharmacy_inventory WHERE category = $1 ORDER BY created_at`, category)
	if err != nil {
		return nil, err
	}
	return collectInventory(rows)
}

// =========== Movement Repository ===========

type movementRepoPG struct{ pool *pgxpool.Pool }

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository {
	return &movementRepoPG{pool: pool}
}

const movementCols = `id, medication_id, medication_name, type, quantity,
	from_location, to_location, reason, performed_by, performed_at, reference`

func collectMovements(rows pgx.Rows) ([]*StockMovement, error) {
	defer rows.Close()
	var movements []*StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.MedicationID, &m.MedicationName, &m.Type, &m.Quantity,
			&m.FromLocation, &m.ToLocation, &m.Reason, &m.PerformedBy, &m.PerformedAt, &m.Reference); err != nil {
			return nil, err
		}
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}

func (r *movementRepoPG) Append(ctx context.Context, m *StockMovement) error {
	m.ID = uuid.New()
	if m.PerformedAt.IsZero() {
		m.PerformedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pharmacy_stock_movement (id, medication_id, medication_name, type, quantity,
			from_location, to_location, reason, performed_by, performed_at, reference)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.MedicationID, m.MedicationName, m.Type, m.Quantity,
		m.FromLocation, m.ToLocation, m.Reason, m.PerformedBy, m.PerformedAt, m.Reference)
	return err
}

func (r *movementRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*StockMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+movementCols+` FROM pharmacy_stock_movement WHERE medication_id = $1 ORDER BY performed_at`, medicationID)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

func (r *movementRepoPG) List(ctx context.Context) ([]*StockMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+movementCols+` FROM pharmacy_stock_movement ORDER BY performed_at`)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

func (r *movementRepoPG) ListBetween(ctx context.Context, start, end time.Time) ([]*StockMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+movementCols+` FROM pharmacy_stock_movement
		 WHERE performed_at >= $1 AND performed_at <= $2 ORDER BY performed_at`, start, end)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, prescription_number, patient_id, patient_name, token_number,
	doctor_id, doctor_name, status, payment_status, insurance_provider,
	insurance_policy_number, total_amount, notes, patient_type, is_walk_in,
	is_confirmed, dispensed_at, dispensed_by, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PrescriptionNumber, &p.PatientID, &p.PatientName, &p.TokenNumber,
		&p.DoctorID, &p.DoctorName, &p.Status, &p.PaymentStatus, &p.InsuranceProvider,
		&p.InsurancePolicyNumber, &p.TotalAmount, &p.Notes, &p.PatientType, &p.IsWalkIn,
		&p.IsConfirmed, &p.DispensedAt, &p.DispensedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) loadLines(ctx context.Context, p *Prescription) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, dosage, frequency, duration, instructions, quantity, dispensed, status
		FROM pharmacy_prescription_line WHERE prescription_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l PrescriptionLine
		if err := rows.Scan(&l.ID, &l.Name, &l.Dosage, &l.Frequency, &l.Duration,
			&l.Instructions, &l.Quantity, &l.Dispensed, &l.Status); err != nil {
			return err
		}
		p.Medications = append(p.Medications, l)
	}
	return rows.Err()
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	p.ID = uuid.New()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusPending
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pharmacy_prescription (id, prescription_number, patient_id, patient_name, token_number,
			doctor_id, doctor_name, status, payment_status, insurance_provider,
			insurance_policy_number, total_amount, notes, patient_type, is_walk_in,
			is_confirmed, dispensed_at, dispensed_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		p.ID, p.PrescriptionNumber, p.PatientID, p.PatientName, p.TokenNumber,
		p.DoctorID, p.DoctorName, p.Status, p.PaymentStatus, p.InsuranceProvider,
		p.InsurancePolicyNumber, p.TotalAmount, p.Notes, p.PatientType, p.IsWalkIn,
		p.IsConfirmed, p.DispensedAt, p.DispensedBy, p.CreatedAt, p.UpdatedAt); err != nil {
		return err
	}
	for i := range p.Medications {
		l := &p.Medications[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.Status == "" {
			l.Status = StatusPending
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO pharmacy_prescription_line (id, prescription_id, position, name, dosage,
				frequency, duration, instructions, quantity, dispensed, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			l.ID, p.ID, i, l.Name, l.Dosage, l.Frequency, l.Duration,
			l.Instructions, l.Quantity, l.Dispensed, l.Status); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.pool.QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM pharmacy_prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE pharmacy_prescription SET status=$2, payment_status=$3, insurance_provider=$4,
			insurance_policy_number=$5, total_amount=$6, notes=$7, patient_type=$8,
			is_confirmed=$9, dispensed_at=$10, dispensed_by=$11, updated_at=$12
		WHERE id = $1`,
		p.ID, p.Status, p.PaymentStatus, p.InsuranceProvider,
		p.InsurancePolicyNumber, p.TotalAmount, p.Notes, p.PatientType,
		p.IsConfirmed, p.DispensedAt, p.DispensedBy, p.UpdatedAt); err != nil {
		return err
	}
	for _, l := range p.Medications {
		if _, err := tx.Exec(ctx, `
			UPDATE pharmacy_prescription_line SET dispensed=$2, status=$3
			WHERE id = $1`, l.ID, l.Dispensed, l.Status); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *prescriptionRepoPG) list(ctx context.Context, where string, args ...interface{}) ([]*Prescription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prescriptionCols+` FROM pharmacy_prescription `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range prescriptions {
		if err := r.loadLines(ctx, p); err != nil {
			return nil, err
		}
	}
	return prescriptions, nil
}

func (r *prescriptionRepoPG) List(ctx context.Context) ([]*Prescription, error) {
	return r.list(ctx, "")
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Prescription, error) {
	return r.list(ctx, "WHERE patient_id = $1", patientID)
}

func (r *prescriptionRepoPG) ListByStatus(ctx context.Context, status string) ([]*Prescription, error) {
	return r.list(ctx, "WHERE status = $1", status)
}

// =========== Transfer Repository ===========

type transferRepoPG struct{ pool *pgxpool.Pool }

func NewTransferRepoPG(pool *pgxpool.Pool) TransferRepository {
	return &transferRepoPG{pool: pool}
}

const transferCols = `id, transfer_type, from_location, to_location, status,
	requested_by, requested_at, completed_by, completed_at, notes`

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.TransferType, &t.FromLocation, &t.ToLocation, &t.Status,
		&t.RequestedBy, &t.RequestedAt, &t.CompletedBy, &t.CompletedAt, &t.Notes)
	return &t, err
}

func (r *transferRepoPG) loadLines(ctx context.Context, t *Transfer) error {
	rows, err := r.pool.Query(ctx, `
		SELECT medication_id, medication_name, quantity
		FROM pharmacy_transfer_line WHERE transfer_id = $1 ORDER BY position`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l TransferLine
		if err := rows.Scan(&l.MedicationID, &l.MedicationName, &l.Quantity); err != nil {
			return err
		}
		t.Medications = append(t.Medications, l)
	}
	return rows.Err()
}

func (r *transferRepoPG) Create(ctx context.Context, t *Transfer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	t.ID = uuid.New()
	if t.RequestedAt.IsZero() {
		t.RequestedAt = time.Now()
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pharmacy_transfer (id, transfer_type, from_location, to_location, status,
			requested_by, requested_at, completed_by, completed_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.TransferType, t.FromLocation, t.ToLocation, t.Status,
		t.RequestedBy, t.RequestedAt, t.CompletedBy, t.CompletedAt, t.Notes); err != nil {
		return err
	}
	for i, l := range t.Medications {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pharmacy_transfer_line (transfer_id, position, medication_id, medication_name, quantity)
			VALUES ($1,$2,$3,$4,$5)`,
			t.ID, i, l.MedicationID, l.MedicationName, l.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *transferRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx,
		`SELECT `+transferCols+` FROM pharmacy_transfer WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *transferRepoPG) Update(ctx context.Context, t *Transfer) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pharmacy_transfer SET status=$2, completed_by=$3, completed_at=$4, notes=$5
		WHERE id = $1`,
		t.ID, t.Status, t.CompletedBy, t.CompletedAt, t.Notes)
	return err
}

func (r *transferRepoPG) List(ctx context.Context) ([]*Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transferCols+` FROM pharmacy_transfer ORDER BY requested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var transfers []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range transfers {
		if err := r.loadLines(ctx, t); err != nil {
			return nil, err
		}
	}
	return transfers, nil
}

// =========== Stock Take Repository ===========

type stockTakeRepoPG struct{ pool *pgxpool.Pool }

func NewStockTakeRepoPG(pool *pgxpool.Pool) StockTakeRepository {
	return &stockTakeRepoPG{pool: pool}
}

const stockTakeCols = `id, name, status, start_date, end_date, location, branch, conducted_by, notes`

func scanStockTake(row pgx.Row) (*StockTake, error) {
	var st StockTake
	err := row.Scan(&st.ID, &st.Name, &st.Status, &st.StartDate, &st.EndDate,
		&st.Location, &st.Branch, &st.ConductedBy, &st.Notes)
	return &st, err
}

func (r *stockTakeRepoPG) loadItems(ctx context.Context, st *StockTake) error {
	rows, err := r.pool.Query(ctx, `
		SELECT medication_id, medication_name, expected_quantity, actual_quantity, discrepancy, notes
		FROM pharmacy_stock_take_item WHERE stock_take_id = $1 ORDER BY position`, st.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it StockTakeItem
		if err := rows.Scan(&it.MedicationID, &it.MedicationName, &it.ExpectedQuantity,
			&it.ActualQuantity, &it.Discrepancy, &it.Notes); err != nil {
			return err
		}
		st.Items = append(st.Items, it)
	}
	return rows.Err()
}

func (r *stockTakeRepoPG) Create(ctx context.Context, st *StockTake) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	st.ID = uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO pharmacy_stock_take (id, name, status, start_date, end_date, location, branch, conducted_by, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		st.ID, st.Name, st.Status, st.StartDate, st.EndDate, st.Location, st.Branch, st.ConductedBy, st.Notes); err != nil {
		return err
	}
	for i, it := range st.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pharmacy_stock_take_item (stock_take_id, position, medication_id, medication_name,
				expected_quantity, actual_quantity, discrepancy, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			st.ID, i, it.MedicationID, it.MedicationName,
			it.ExpectedQuantity, it.ActualQuantity, it.Discrepancy, it.Notes); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *stockTakeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*StockTake, error) {
	st, err := scanStockTake(r.pool.QueryRow(ctx,
		`SELECT `+stockTakeCols+` FROM pharmacy_stock_take WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *stockTakeRepoPG) Update(ctx context.Context, st *StockTake) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE pharmacy_stock_take SET status=$2, end_date=$3, notes=$4
		WHERE id = $1`, st.ID, st.Status, st.EndDate, st.Notes); err != nil {
		return err
	}
	for _, it := range st.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE pharmacy_stock_take_item SET actual_quantity=$3, discrepancy=$4, notes=$5
			WHERE stock_take_id = $1 AND medication_id = $2`,
			st.ID, it.MedicationID, it.ActualQuantity, it.Discrepancy, it.Notes); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *stockTakeRepoPG) List(ctx context.Context) ([]*StockTake, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+stockTakeCols+` FROM pharmacy_stock_take ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stockTakes []*StockTake
	for rows.Next() {
		st, err := scanStockTake(rows)
		if err != nil {
			return nil, err
		}
		stockTakes = append(stockTakes, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, st := range stockTakes {
		if err := r.loadItems(ctx, st); err != nil {
			return nil, err
		}
	}
	return stockTakes, nil
}
