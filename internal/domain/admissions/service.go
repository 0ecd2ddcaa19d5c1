package admissions

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Categories accepted on admission, matching the admission_categories
// reference table.
var validCategories = map[string]bool{
	"GENERAL":    true,
	"SURGICAL":   true,
	"PEDIATRIC":  true,
	"MATERNITY":  true,
	"ICU":        true,
	"ISOLATION":  true,
	"ORTHOPEDIC": true,
}

type Service struct {
	admissions AdmissionRepository
	patients   PatientRepository
	branches   BranchRepository
}

func NewService(admissions AdmissionRepository, patients PatientRepository, branches BranchRepository) *Service {
	return &Service{admissions: admissions, patients: patients, branches: branches}
}

// Branches summarizes ward and bed counts per hospital site. Wards and beds
// are derived from the admissions table the way the reporting views do:
// a bed exists once an admission has referenced it.
func (s *Service) Branches(ctx context.Context) ([]*BranchSummary, error) {
	all, err := s.admissions.List(ctx)
	if err != nil {
		return nil, err
	}
	branches, err := s.branches.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}

	type branchAgg struct {
		wards    map[int]bool
		beds     map[[2]int]bool
		occupied int
	}
	aggs := map[int]*branchAgg{}
	var order []int
	for _, a := range all {
		agg, ok := aggs[a.BranchID]
		if !ok {
			agg = &branchAgg{wards: map[int]bool{}, beds: map[[2]int]bool{}}
			aggs[a.BranchID] = agg
			order = append(order, a.BranchID)
		}
		agg.wards[a.WardID] = true
		agg.beds[[2]int{a.WardID, a.BedID}] = true
		if a.Active() {
			agg.occupied++
		}
	}
	sort.Ints(order)

	out := make([]*BranchSummary, 0, len(order))
	for _, id := range order {
		agg := aggs[id]
		name, ok := names[id]
		if !ok {
			name = fmt.Sprintf("Hospital %d", id)
		}
		total := len(agg.beds)
		out = append(out, &BranchSummary{
			BranchID:            id,
			BranchName:          name,
			TotalWards:          len(agg.wards),
			TotalBeds:           total,
			OccupiedBeds:        agg.occupied,
			AvailableBeds:       total - agg.occupied,
			OccupancyPercentage: percentage(agg.occupied, total),
		})
	}
	return out, nil
}

// WardStatistics aggregates bed state per ward, optionally scoped to one
// branch (branchID <= 0 means all branches).
func (s *Service) WardStatistics(ctx context.Context, branchID int) ([]*WardStatistics, error) {
	all, err := s.admissions.List(ctx)
	if err != nil {
		return nil, err
	}

	type wardKey struct{ branch, ward int }
	type wardAgg struct {
		beds      map[int]bool
		occupied  int
		category  string
		rateSum   float64
		rateCount int
	}
	aggs := map[wardKey]*wardAgg{}
	var order []wardKey
	for _, a := range all {
		if branchID > 0 && a.BranchID != branchID {
			continue
		}
		key := wardKey{a.BranchID, a.WardID}
		agg, ok := aggs[key]
		if !ok {
			agg = &wardAgg{beds: map[int]bool{}, category: a.Category}
			aggs[key] = agg
			order = append(order, key)
		}
		agg.beds[a.BedID] = true
		if a.Active() {
			agg.occupied++
		}
		if a.DailyBedRate > 0 {
			agg.rateSum += a.DailyBedRate
			agg.rateCount++
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].branch != order[j].branch {
			return order[i].branch < order[j].branch
		}
		return order[i].ward < order[j].ward
	})

	out := make([]*WardStatistics, 0, len(order))
	for _, key := range order {
		agg := aggs[key]
		total := len(agg.beds)
		avgRate := 0.0
		if agg.rateCount > 0 {
			avgRate = round2(agg.rateSum / float64(agg.rateCount))
		}
		out = append(out, &WardStatistics{
			BranchID:            key.branch,
			WardID:              key.ward,
			WardName:            fmt.Sprintf("Ward %d", key.ward),
			WardType:            agg.category,
			TotalBeds:           total,
			OccupiedBeds:        agg.occupied,
			AvailableBeds:       total - agg.occupied,
			OccupancyPercentage: percentage(agg.occupied, total),
			CurrentPatients:     agg.occupied,
			AvgDailyRate:        avgRate,
		})
	}
	return out, nil
}

// BedOccupancy lists every known bed with its current state. A bed shows its
// latest admission; occupied beds carry the patient.
func (s *Service) BedOccupancy(ctx context.Context, branchID int) ([]*BedView, error) {
	all, err := s.admissions.List(ctx)
	if err != nil {
		return nil, err
	}

	type bedKey struct{ branch, ward, bed int }
	latest := map[bedKey]*Admission{}
	var order []bedKey
	for _, a := range all {
		if branchID > 0 && a.BranchID != branchID {
			continue
		}
		key := bedKey{a.BranchID, a.WardID, a.BedID}
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || a.AdmissionDate.After(prev.AdmissionDate) {
			latest[key] = a
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.branch != b.branch {
			return a.branch < b.branch
		}
		if a.ward != b.ward {
			return a.ward < b.ward
		}
		return a.bed < b.bed
	})

	now := time.Now()
	out := make([]*BedView, 0, len(order))
	for _, key := range order {
		a := latest[key]
		view := &BedView{
			BranchID:  key.branch,
			WardID:    key.ward,
			WardName:  fmt.Sprintf("Ward %d", key.ward),
			BedID:     key.bed,
			BedNumber: fmt.Sprintf("Bed-%d", key.bed),
			Status:    BedAvailable,
		}
		if a.Active() {
			view.Status = BedOccupied
			view.PatientID = a.PatientID
			date := a.AdmissionDate
			view.AdmissionDate = &date
			view.LengthOfStay = a.LengthOfStay(now)
			if p, err := s.patients.GetByID(ctx, a.PatientID); err == nil {
				view.PatientName = p.FullName()
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// ActiveAdmissions lists undischarged patients, longest stay first.
func (s *Service) ActiveAdmissions(ctx context.Context, branchID int) ([]*AdmissionView, error) {
	active, err := s.admissions.ListActive(ctx, branchID)
	if err != nil {
		return nil, err
	}
	views, err := s.admissionViews(ctx, active)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].LengthOfStay > views[j].LengthOfStay
	})
	return views, nil
}

// MaternityAdmissions lists active maternity-category admissions.
func (s *Service) MaternityAdmissions(ctx context.Context, branchID int) ([]*AdmissionView, error) {
	active, err := s.admissions.ListActive(ctx, branchID)
	if err != nil {
		return nil, err
	}
	var maternity []*Admission
	for _, a := range active {
		if strings.EqualFold(a.Category, CategoryMaternity) {
			maternity = append(maternity, a)
		}
	}
	return s.admissionViews(ctx, maternity)
}

func (s *Service) admissionViews(ctx context.Context, list []*Admission) ([]*AdmissionView, error) {
	branches, err := s.branches.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}
	now := time.Now()
	views := make([]*AdmissionView, 0, len(list))
	for _, a := range list {
		view := &AdmissionView{
			Admission:    *a,
			WardName:     fmt.Sprintf("Ward %d", a.WardID),
			BedNumber:    fmt.Sprintf("Bed-%d", a.BedID),
			BranchName:   names[a.BranchID],
			LengthOfStay: a.LengthOfStay(now),
		}
		if p, err := s.patients.GetByID(ctx, a.PatientID); err == nil {
			view.PatientName = p.FullName()
			view.Gender = p.Gender
			view.Phone = p.Phone
		}
		views = append(views, view)
	}
	return views, nil
}

// Metadata returns the reference data admission forms need.
func (s *Service) Metadata(ctx context.Context) (*Metadata, error) {
	branches, err := s.branches.List(ctx)
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(validCategories))
	for c := range validCategories {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return &Metadata{Branches: branches, Categories: categories}, nil
}

// SearchPatients matches by id, name, or phone.
func (s *Service) SearchPatients(ctx context.Context, q string) ([]*Patient, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	return s.patients.Search(ctx, q)
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.patients.Create(ctx, p)
}

// Admit places a patient in a bed. The patient and branch must exist and the
// bed must not hold an active admission.
func (s *Service) Admit(ctx context.Context, a *Admission) error {
	if a.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if a.WardID <= 0 || a.BedID <= 0 {
		return fmt.Errorf("ward_id and bed_id are required")
	}
	if !validCategories[strings.ToUpper(a.Category)] {
		return fmt.Errorf("invalid admission category: %s", a.Category)
	}
	a.Category = strings.ToUpper(a.Category)
	if _, err := s.patients.GetByID(ctx, a.PatientID); err != nil {
		return fmt.Errorf("patient %s not found", a.PatientID)
	}
	if _, err := s.branches.GetByID(ctx, a.BranchID); err != nil {
		return fmt.Errorf("branch %d not found", a.BranchID)
	}
	occupied, err := s.bedOccupied(ctx, a.BranchID, a.WardID, a.BedID)
	if err != nil {
		return err
	}
	if occupied {
		return fmt.Errorf("bed %d in ward %d is occupied", a.BedID, a.WardID)
	}
	if a.AdmissionDate.IsZero() {
		a.AdmissionDate = time.Now()
	}
	a.DischargeDate = nil
	return s.admissions.Create(ctx, a)
}

// TransferPatient moves an active admission to another ward and bed within
// its branch. The target bed must be free.
func (s *Service) TransferPatient(ctx context.Context, admissionID uuid.UUID, toWardID, toBedID int) (*Admission, error) {
	if toWardID <= 0 || toBedID <= 0 {
		return nil, fmt.Errorf("target ward_id and bed_id are required")
	}
	a, err := s.admissions.GetByID(ctx, admissionID)
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, fmt.Errorf("admission is already discharged")
	}
	if a.WardID == toWardID && a.BedID == toBedID {
		return nil, fmt.Errorf("patient is already in that bed")
	}
	occupied, err := s.bedOccupied(ctx, a.BranchID, toWardID, toBedID)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, fmt.Errorf("bed %d in ward %d is occupied", toBedID, toWardID)
	}
	a.WardID = toWardID
	a.BedID = toBedID
	a.UpdatedAt = time.Now()
	if err := s.admissions.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Discharge closes an active admission.
func (s *Service) Discharge(ctx context.Context, admissionID uuid.UUID, notes string) (*Admission, error) {
	a, err := s.admissions.GetByID(ctx, admissionID)
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, fmt.Errorf("admission is already discharged")
	}
	now := time.Now()
	a.DischargeDate = &now
	if notes != "" {
		a.DischargeNotes = &notes
	}
	a.UpdatedAt = now
	if err := s.admissions.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) bedOccupied(ctx context.Context, branchID, wardID, bedID int) (bool, error) {
	active, err := s.admissions.ListActive(ctx, branchID)
	if err != nil {
		return false, err
	}
	for _, other := range active {
		if other.WardID == wardID && other.BedID == bedID {
			return true, nil
		}
	}
	return false, nil
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
