package admissions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = fmt.Errorf("not found")

// AdmissionRepoMem is the in-memory admissions store used when no database
// is configured.
type AdmissionRepoMem struct {
	mu    sync.RWMutex
	order []uuid.UUID
	byID  map[uuid.UUID]*Admission
}

func NewAdmissionRepoMem() *AdmissionRepoMem {
	return &AdmissionRepoMem{byID: make(map[uuid.UUID]*Admission)}
}

func (r *AdmissionRepoMem) Create(_ context.Context, a *Admission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	r.byID[a.ID] = &cp
	r.order = append(r.order, a.ID)
	return nil
}

func (r *AdmissionRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Admission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AdmissionRepoMem) Update(_ context.Context, a *Admission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *AdmissionRepoMem) List(_ context.Context) ([]*Admission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Admission, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AdmissionRepoMem) ListActive(_ context.Context, branchID int) ([]*Admission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Admission
	for _, id := range r.order {
		a := r.byID[id]
		if !a.Active() {
			continue
		}
		if branchID > 0 && a.BranchID != branchID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// PatientRepoMem is the in-memory patient registry.
type PatientRepoMem struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Patient
}

func NewPatientRepoMem() *PatientRepoMem {
	return &PatientRepoMem{byID: make(map[string]*Patient)}
}

func (r *PatientRepoMem) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		return fmt.Errorf("patient id is required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return fmt.Errorf("patient %s already exists", p.ID)
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.byID[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

func (r *PatientRepoMem) GetByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PatientRepoMem) Search(_ context.Context, q string) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q = strings.ToLower(q)
	var out []*Patient
	for _, id := range r.order {
		p := r.byID[id]
		if strings.Contains(strings.ToLower(p.ID), q) ||
			strings.Contains(strings.ToLower(p.FullName()), q) ||
			strings.Contains(p.Phone, q) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// BranchRepoMem serves the static branch list.
type BranchRepoMem struct {
	branches []Branch
}

func NewBranchRepoMem() *BranchRepoMem {
	return &BranchRepoMem{branches: []Branch{
		{ID: 18, Name: "Bristol Park Hospital - Main"},
		{ID: 19, Name: "Bristol Park Hospital - Fedha"},
		{ID: 20, Name: "Bristol Park Hospital - Utawala"},
		{ID: 21, Name: "Bristol Park Hospital - Tassia"},
		{ID: 22, Name: "Bristol Park Hospital - Machakos"},
		{ID: 23, Name: "Bristol Park Hospital - Kitengela"},
	}}
}

func (r *BranchRepoMem) List(_ context.Context) ([]Branch, error) {
	out := make([]Branch, len(r.branches))
	copy(out, r.branches)
	return out, nil
}

func (r *BranchRepoMem) GetByID(_ context.Context, id int) (*Branch, error) {
	for _, b := range r.branches {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
