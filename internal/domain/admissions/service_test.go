package admissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestService() *Service {
	return NewService(NewAdmissionRepoMem(), NewPatientRepoMem(), NewBranchRepoMem())
}

func seedPatient(t *testing.T, svc *Service, id, first, last, phone string) *Patient {
	t.Helper()
	p := &Patient{ID: id, FirstName: first, LastName: last, Gender: "female", Phone: phone}
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("seed patient %s: %v", id, err)
	}
	return p
}

func admit(t *testing.T, svc *Service, patientID string, branch, ward, bed int, category string) *Admission {
	t.Helper()
	a := &Admission{
		PatientID:       patientID,
		BranchID:        branch,
		WardID:          ward,
		BedID:           bed,
		Category:        category,
		Diagnosis:       "observation",
		AdmittingDoctor: "Dr. Sarah Kimani",
		DailyBedRate:    2500,
	}
	if err := svc.Admit(context.Background(), a); err != nil {
		t.Fatalf("admit %s: %v", patientID, err)
	}
	return a
}

func TestAdmit_RejectsOccupiedBed(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	seedPatient(t, svc, "P002", "Mary", "Atieno", "0711000002")
	admit(t, svc, "P001", 18, 1, 1, "GENERAL")

	err := svc.Admit(context.Background(), &Admission{
		PatientID: "P002", BranchID: 18, WardID: 1, BedID: 1, Category: "GENERAL",
	})
	if err == nil {
		t.Fatal("expected error admitting into an occupied bed")
	}

	// Same ward and bed numbers at another branch are a different bed.
	if err := svc.Admit(context.Background(), &Admission{
		PatientID: "P002", BranchID: 19, WardID: 1, BedID: 1, Category: "GENERAL",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdmit_UnknownPatient(t *testing.T) {
	svc := newTestService()
	err := svc.Admit(context.Background(), &Admission{
		PatientID: "P404", BranchID: 18, WardID: 1, BedID: 1, Category: "GENERAL",
	})
	if err == nil {
		t.Error("expected error for unknown patient")
	}
}

func TestAdmit_InvalidCategory(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	err := svc.Admit(context.Background(), &Admission{
		PatientID: "P001", BranchID: 18, WardID: 1, BedID: 1, Category: "SPA",
	})
	if err == nil {
		t.Error("expected error for invalid category")
	}
}

func TestBranches_Aggregation(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	seedPatient(t, svc, "P002", "Mary", "Atieno", "0711000002")
	seedPatient(t, svc, "P003", "Amos", "Otieno", "0711000003")

	a1 := admit(t, svc, "P001", 18, 1, 1, "GENERAL")
	admit(t, svc, "P002", 18, 1, 2, "GENERAL")
	admit(t, svc, "P003", 18, 2, 1, "SURGICAL")
	svc.Discharge(context.Background(), a1.ID, "recovered")

	branches, err := svc.Branches(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(branches))
	}
	b := branches[0]
	if b.BranchID != 18 || b.BranchName != "Bristol Park Hospital - Main" {
		t.Errorf("unexpected branch %+v", b)
	}
	if b.TotalWards != 2 || b.TotalBeds != 3 {
		t.Errorf("expected 2 wards / 3 beds, got %+v", b)
	}
	if b.OccupiedBeds != 2 || b.AvailableBeds != 1 {
		t.Errorf("discharged bed must count available, got %+v", b)
	}
	if b.OccupancyPercentage != 66.67 {
		t.Errorf("expected 66.67%%, got %v", b.OccupancyPercentage)
	}
}

func TestWardStatistics(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	seedPatient(t, svc, "P002", "Mary", "Atieno", "0711000002")
	admit(t, svc, "P001", 18, 1, 1, "GENERAL")
	admit(t, svc, "P002", 19, 1, 1, "MATERNITY")

	stats, err := svc.WardStatistics(context.Background(), 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 ward for branch 19, got %d", len(stats))
	}
	w := stats[0]
	if w.WardName != "Ward 1" || w.WardType != "MATERNITY" {
		t.Errorf("unexpected ward %+v", w)
	}
	if w.TotalBeds != 1 || w.OccupiedBeds != 1 || w.OccupancyPercentage != 100 {
		t.Errorf("unexpected occupancy %+v", w)
	}
	if w.AvgDailyRate != 2500 {
		t.Errorf("expected avg rate 2500, got %v", w.AvgDailyRate)
	}

	all, _ := svc.WardStatistics(context.Background(), 0)
	if len(all) != 2 {
		t.Errorf("expected 2 wards across branches, got %d", len(all))
	}
}

func TestBedOccupancy(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	a := admit(t, svc, "P001", 18, 1, 1, "GENERAL")

	beds, err := svc.BedOccupancy(context.Background(), 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(beds) != 1 {
		t.Fatalf("expected 1 bed, got %d", len(beds))
	}
	if beds[0].Status != BedOccupied || beds[0].PatientName != "Jane Njeri" {
		t.Errorf("expected occupied by Jane Njeri, got %+v", beds[0])
	}
	if beds[0].BedNumber != "Bed-1" {
		t.Errorf("unexpected bed number %q", beds[0].BedNumber)
	}

	svc.Discharge(context.Background(), a.ID, "")
	beds, _ = svc.BedOccupancy(context.Background(), 18)
	if beds[0].Status != BedAvailable || beds[0].PatientName != "" {
		t.Errorf("discharged bed must be available with no patient, got %+v", beds[0])
	}
}

func TestActiveAndMaternityAdmissions(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	seedPatient(t, svc, "P002", "Mary", "Atieno", "0711000002")
	admit(t, svc, "P001", 18, 1, 1, "GENERAL")
	admit(t, svc, "P002", 18, 3, 1, "MATERNITY")

	active, err := svc.ActiveAdmissions(context.Background(), 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active admissions, got %d", len(active))
	}
	if active[0].BranchName != "Bristol Park Hospital - Main" {
		t.Errorf("expected branch name join, got %q", active[0].BranchName)
	}

	maternity, err := svc.MaternityAdmissions(context.Background(), 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(maternity) != 1 || maternity[0].PatientName != "Mary Atieno" {
		t.Errorf("expected only the maternity admission, got %+v", maternity)
	}
}

func TestTransferPatient(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	seedPatient(t, svc, "P002", "Mary", "Atieno", "0711000002")
	a := admit(t, svc, "P001", 18, 1, 1, "GENERAL")
	admit(t, svc, "P002", 18, 2, 1, "GENERAL")

	// Target bed occupied.
	if _, err := svc.TransferPatient(context.Background(), a.ID, 2, 1); err == nil {
		t.Fatal("expected error transferring onto an occupied bed")
	}

	moved, err := svc.TransferPatient(context.Background(), a.ID, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.WardID != 2 || moved.BedID != 2 {
		t.Errorf("expected ward 2 bed 2, got %+v", moved)
	}

	// The vacated bed is admissible again.
	seedPatient(t, svc, "P003", "Amos", "Otieno", "0711000003")
	if err := svc.Admit(context.Background(), &Admission{
		PatientID: "P003", BranchID: 18, WardID: 1, BedID: 1, Category: "GENERAL",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransferPatient_Discharged(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	a := admit(t, svc, "P001", 18, 1, 1, "GENERAL")
	svc.Discharge(context.Background(), a.ID, "")

	if _, err := svc.TransferPatient(context.Background(), a.ID, 2, 2); err == nil {
		t.Error("expected error transferring a discharged admission")
	}
}

func TestDischarge(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	a := admit(t, svc, "P001", 18, 1, 1, "GENERAL")

	done, err := svc.Discharge(context.Background(), a.ID, "recovered")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.DischargeDate == nil || done.DischargeNotes == nil || *done.DischargeNotes != "recovered" {
		t.Errorf("expected discharge markers, got %+v", done)
	}
	if _, err := svc.Discharge(context.Background(), a.ID, ""); err == nil {
		t.Error("expected error discharging twice")
	}
	if _, err := svc.Discharge(context.Background(), uuid.New(), ""); err == nil {
		t.Error("expected error for unknown admission")
	}
}

func TestSearchPatients(t *testing.T) {
	svc := newTestService()
	seedPatient(t, svc, "P001", "Jane", "Njeri", "0711000001")
	mid := "Wanjiru"
	svc.patients.Create(context.Background(), &Patient{
		ID: "P002", FirstName: "Mary", MiddleName: &mid, LastName: "Atieno", Gender: "female", Phone: "0722000002",
	})

	byName, err := svc.SearchPatients(context.Background(), "njeri")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "P001" {
		t.Errorf("expected P001 by name, got %+v", byName)
	}

	byMiddle, _ := svc.SearchPatients(context.Background(), "wanjiru")
	if len(byMiddle) != 1 || byMiddle[0].ID != "P002" {
		t.Errorf("expected P002 by middle name, got %+v", byMiddle)
	}

	byPhone, _ := svc.SearchPatients(context.Background(), "0722")
	if len(byPhone) != 1 || byPhone[0].ID != "P002" {
		t.Errorf("expected P002 by phone, got %+v", byPhone)
	}

	if _, err := svc.SearchPatients(context.Background(), "  "); err == nil {
		t.Error("expected error for blank query")
	}
}

func TestLengthOfStay(t *testing.T) {
	now := time.Now()
	a := &Admission{AdmissionDate: now.AddDate(0, 0, -5)}
	if got := a.LengthOfStay(now); got != 5 {
		t.Errorf("expected 5 days, got %d", got)
	}
	discharge := now.AddDate(0, 0, -2)
	a.DischargeDate = &discharge
	if got := a.LengthOfStay(now); got != 3 {
		t.Errorf("expected 3 days to discharge, got %d", got)
	}
}

func TestMetadata(t *testing.T) {
	svc := newTestService()
	meta, err := svc.Metadata(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta.Branches) != 6 {
		t.Errorf("expected 6 branches, got %d", len(meta.Branches))
	}
	found := false
	for _, c := range meta.Categories {
		if c == "MATERNITY" {
			found = true
		}
	}
	if !found {
		t.Error("expected MATERNITY category")
	}
}
