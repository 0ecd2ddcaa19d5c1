package admissions

import (
	"context"

	"github.com/google/uuid"
)

type AdmissionRepository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	Update(ctx context.Context, a *Admission) error
	List(ctx context.Context) ([]*Admission, error)
	// ListActive returns undischarged admissions, optionally scoped to one
	// branch (branchID <= 0 means all branches).
	ListActive(ctx context.Context, branchID int) ([]*Admission, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	// Search matches the query against patient id, name parts, and phone,
	// case-insensitively.
	Search(ctx context.Context, q string) ([]*Patient, error)
}

type BranchRepository interface {
	List(ctx context.Context) ([]Branch, error)
	GetByID(ctx context.Context, id int) (*Branch, error)
}
