package admissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Admission Repository ===========

type admissionRepoPG struct{ pool *pgxpool.Pool }

func NewAdmissionRepoPG(pool *pgxpool.Pool) AdmissionRepository {
	return &admissionRepoPG{pool: pool}
}

const admissionCols = `id, patient_id, branch_id, ward_id, bed_id, category, diagnosis,
	admitting_doctor, daily_bed_rate, admission_date, discharge_date, discharge_notes,
	created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.PatientID, &a.BranchID, &a.WardID, &a.BedID, &a.Category, &a.Diagnosis,
		&a.AdmittingDoctor, &a.DailyBedRate, &a.AdmissionDate, &a.DischargeDate, &a.DischargeNotes,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func collectAdmissions(rows pgx.Rows) ([]*Admission, error) {
	defer rows.Close()
	var out []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *admissionRepoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admissions (id, patient_id, branch_id, ward_id, bed_id, category, diagnosis,
			admitting_doctor, daily_bed_rate, admission_date, discharge_date, discharge_notes,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.PatientID, a.BranchID, a.WardID, a.BedID, a.Category, a.Diagnosis,
		a.AdmittingDoctor, a.DailyBedRate, a.AdmissionDate, a.DischargeDate, a.DischargeNotes,
		a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *admissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.pool.QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admissions WHERE id = $1`, id))
}

func (r *admissionRepoPG) Update(ctx context.Context, a *Admission) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE admissions SET ward_id=$2, bed_id=$3, category=$4, diagnosis=$5,
			daily_bed_rate=$6, discharge_date=$7, discharge_notes=$8, updated_at=$9
		WHERE id = $1`,
		a.ID, a.WardID, a.BedID, a.Category, a.Diagnosis,
		a.DailyBedRate, a.DischargeDate, a.DischargeNotes, a.UpdatedAt)
	return err
}

func (r *admissionRepoPG) List(ctx context.Context) ([]*Admission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+admissionCols+` FROM admissions ORDER BY branch_id, ward_id, bed_id`)
	if err != nil {
		return nil, err
	}
	return collectAdmissions(rows)
}

func (r *admissionRepoPG) ListActive(ctx context.Context, branchID int) ([]*Admission, error) {
	query := `SELECT ` + admissionCols + ` FROM admissions WHERE discharge_date IS NULL`
	args := []interface{}{}
	if branchID > 0 {
		query += ` AND branch_id = $1`
		args = append(args, branchID)
	}
	query += ` ORDER BY admission_date`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAdmissions(rows)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, first_name, middle_name, last_name, gender, phone, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.CreatedAt = time.Now()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_details (id, first_name, middle_name, last_name, gender, phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.Gender, p.Phone, p.CreatedAt)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient_details WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.Gender, &p.Phone, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Search(ctx context.Context, q string) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientCols+` FROM patient_details
		WHERE id ILIKE '%' || $1 || '%'
		   OR (first_name || ' ' || COALESCE(middle_name || ' ', '') || last_name) ILIKE '%' || $1 || '%'
		   OR phone LIKE '%' || $1 || '%'
		ORDER BY last_name, first_name`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.Gender, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =========== Branch Repository ===========

type branchRepoPG struct{ pool *pgxpool.Pool }

func NewBranchRepoPG(pool *pgxpool.Pool) BranchRepository {
	return &branchRepoPG{pool: pool}
}

func (r *branchRepoPG) List(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM hospital_branches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *branchRepoPG) GetByID(ctx context.Context, id int) (*Branch, error) {
	var b Branch
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM hospital_branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
