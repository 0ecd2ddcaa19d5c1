package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	// GetByName returns the first item matching the denormalized name.
	GetByName(ctx context.Context, name string) (*InventoryItem, error)
	// ListByName returns every per-location row sharing the name.
	ListByName(ctx context.Context, name string) ([]*InventoryItem, error)
	Update(ctx context.Context, item *InventoryItem) error
	List(ctx context.Context) ([]*InventoryItem, error)
	ListByCategory(ctx context.Context, category string) ([]*InventoryItem, error)
}

// MovementRepository is append-only: entries are never updated or deleted.
type MovementRepository interface {
	Append(ctx context.Context, m *StockMovement) error
	ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*StockMovement, error)
	List(ctx context.Context) ([]*StockMovement, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]*StockMovement, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	List(ctx context.Context) ([]*Prescription, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Prescription, error)
	ListByStatus(ctx context.Context, status string) ([]*Prescription, error)
}

type TransferRepository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	Update(ctx context.Context, t *Transfer) error
	List(ctx context.Context) ([]*Transfer, error)
}

type StockTakeRepository interface {
	Create(ctx context.Context, st *StockTake) error
	GetByID(ctx context.Context, id uuid.UUID) (*StockTake, error)
	Update(ctx context.Context, st *StockTake) error
	List(ctx context.Context) ([]*StockTake, error)
}
