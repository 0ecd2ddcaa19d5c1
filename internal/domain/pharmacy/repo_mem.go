package pharmacy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory repositories. These are the default store when no DATABASE_URL is
// configured: a single-process, insertion-ordered collection guarded by a
// mutex, with no durability beyond the process lifetime.

var ErrNotFound = fmt.Errorf("not found")

// -- Inventory --

type InventoryRepoMem struct {
	mu    sync.RWMutex
	items []*InventoryItem
	byID  map[uuid.UUID]*InventoryItem
}

func NewInventoryRepoMem() *InventoryRepoMem {
	return &InventoryRepoMem{byID: map[uuid.UUID]*InventoryItem{}}
}

func (r *InventoryRepoMem) Create(_ context.Context, item *InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	r.items = append(r.items, &cp)
	r.byID[cp.ID] = &cp
	return nil
}

func (r *InventoryRepoMem) GetByID(_ context.Context, id uuid.UUID) (*InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *InventoryRepoMem) GetByName(_ context.Context, name string) (*InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if item.Name == name {
			cp := *item
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InventoryRepoMem) ListByName(_ context.Context, name string) ([]*InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*InventoryItem
	for _, item := range r.items {
		if item.Name == name {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *InventoryRepoMem) Update(_ context.Context, item *InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[item.ID]
	if !ok {
		return ErrNotFound
	}
	item.CreatedAt = stored.CreatedAt
	*stored = *item
	return nil
}

func (r *InventoryRepoMem) List(_ context.Context) ([]*InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*InventoryItem, 0, len(r.items))
	for _, item := range r.items {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InventoryRepoMem) ListByCategory(_ context.Context, category string) ([]*InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*InventoryItem
	for _, item := range r.items {
		if item.Category == category {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -- Stock movements --

type MovementRepoMem struct {
	mu        sync.RWMutex
	movements []*StockMovement
}

func NewMovementRepoMem() *MovementRepoMem {
	return &MovementRepoMem{}
}

func (r *MovementRepoMem) Append(_ context.Context, m *StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.PerformedAt.IsZero() {
		m.PerformedAt = time.Now()
	}
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *MovementRepoMem) ListByMedication(_ context.Context, medicationID uuid.UUID) ([]*StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*StockMovement
	for _, m := range r.movements {
		if m.MedicationID == medicationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MovementRepoMem) List(_ context.Context) ([]*StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StockMovement, 0, len(r.movements))
	for _, m := range r.movements {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MovementRepoMem) ListBetween(_ context.Context, start, end time.Time) ([]*StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*StockMovement
	for _, m := range r.movements {
		if !m.PerformedAt.Before(start) && !m.PerformedAt.After(end) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -- Prescriptions --

type PrescriptionRepoMem struct {
	mu            sync.RWMutex
	prescriptions []*Prescription
	byID          map[uuid.UUID]*Prescription
}

func NewPrescriptionRepoMem() *PrescriptionRepoMem {
	return &PrescriptionRepoMem{byID: map[uuid.UUID]*Prescription{}}
}

func copyPrescription(p *Prescription) *Prescription {
	cp := *p
	cp.Medications = make([]PrescriptionLine, len(p.Medications))
	copy(cp.Medications, p.Medications)
	return &cp
}

func (r *PrescriptionRepoMem) Create(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	for i := range p.Medications {
		if p.Medications[i].ID == uuid.Nil {
			p.Medications[i].ID = uuid.New()
		}
		if p.Medications[i].Status == "" {
			p.Medications[i].Status = StatusPending
		}
	}
	cp := copyPrescription(p)
	r.prescriptions = append(r.prescriptions, cp)
	r.byID[cp.ID] = cp
	return nil
}

func (r *PrescriptionRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPrescription(p), nil
}

func (r *PrescriptionRepoMem) Update(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = stored.CreatedAt
	*stored = *copyPrescription(p)
	return nil
}

func (r *PrescriptionRepoMem) List(_ context.Context) ([]*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Prescription, 0, len(r.prescriptions))
	for _, p := range r.prescriptions {
		out = append(out, copyPrescription(p))
	}
	return out, nil
}

func (r *PrescriptionRepoMem) ListByPatient(_ context.Context, patientID string) ([]*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Prescription
	for _, p := range r.prescriptions {
		if p.PatientID == patientID {
			out = append(out, copyPrescription(p))
		}
	}
	return out, nil
}

func (r *PrescriptionRepoMem) ListByStatus(_ context.Context, status string) ([]*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Prescription
	for _, p := range r.prescriptions {
		if p.Status == status {
			out = append(out, copyPrescription(p))
		}
	}
	return out, nil
}

// -- Transfers --

type TransferRepoMem struct {
	mu        sync.RWMutex
	transfers []*Transfer
	byID      map[uuid.UUID]*Transfer
}

func NewTransferRepoMem() *TransferRepoMem {
	return &TransferRepoMem{byID: map[uuid.UUID]*Transfer{}}
}

func copyTransfer(t *Transfer) *Transfer {
	cp := *t
	cp.Medications = make([]TransferLine, len(t.Medications))
	copy(cp.Medications, t.Medications)
	return &cp
}

func (r *TransferRepoMem) Create(_ context.Context, t *Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.RequestedAt.IsZero() {
		t.RequestedAt = time.Now()
	}
	cp := copyTransfer(t)
	r.transfers = append(r.transfers, cp)
	r.byID[cp.ID] = cp
	return nil
}

func (r *TransferRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransfer(t), nil
}

func (r *TransferRepoMem) Update(_ context.Context, t *Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[t.ID]
	if !ok {
		return ErrNotFound
	}
	*stored = *copyTransfer(t)
	return nil
}

func (r *TransferRepoMem) List(_ context.Context) ([]*Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Transfer, 0, len(r.transfers))
	for _, t := range r.transfers {
		out = append(out, copyTransfer(t))
	}
	return out, nil
}

// -- Stock takes --

type StockTakeRepoMem struct {
	mu         sync.RWMutex
	stockTakes []*StockTake
	byID       map[uuid.UUID]*StockTake
}

func NewStockTakeRepoMem() *StockTakeRepoMem {
	return &StockTakeRepoMem{byID: map[uuid.UUID]*StockTake{}}
}

func copyStockTake(st *StockTake) *StockTake {
	cp := *st
	cp.Items = make([]StockTakeItem, len(st.Items))
	copy(cp.Items, st.Items)
	return &cp
}

func (r *StockTakeRepoMem) Create(_ context.Context, st *StockTake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	cp := copyStockTake(st)
	r.stockTakes = append(r.stockTakes, cp)
	r.byID[cp.ID] = cp
	return nil
}

func (r *StockTakeRepoMem) GetByID(_ context.Context, id uuid.UUID) (*StockTake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyStockTake(st), nil
}

func (r *StockTakeRepoMem) Update(_ context.Context, st *StockTake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[st.ID]
	if !ok {
		return ErrNotFound
	}
	*stored = *copyStockTake(st)
	return nil
}

func (r *StockTakeRepoMem) List(_ context.Context) ([]*StockTake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StockTake, 0, len(r.stockTakes))
	for _, st := range r.stockTakes {
		out = append(out, copyStockTake(st))
	}
	return out, nil
}
