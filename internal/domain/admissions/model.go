package admissions

import (
	"time"

	"github.com/google/uuid"
)

// Bed statuses.
const (
	BedOccupied  = "Occupied"
	BedAvailable = "Available"
)

// CategoryMaternity is the admission category feeding the maternity view.
const CategoryMaternity = "MATERNITY"

// Branch is one hospital site.
type Branch struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Patient maps to the patient_details table.
type Patient struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	MiddleName *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName   string    `db:"last_name" json:"last_name"`
	Gender     string    `db:"gender" json:"gender"`
	Phone      string    `db:"phone" json:"phone"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FullName joins the name parts, skipping a missing middle name.
func (p *Patient) FullName() string {
	if p.MiddleName != nil && *p.MiddleName != "" {
		return p.FirstName + " " + *p.MiddleName + " " + p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Admission maps to the admissions table. A nil DischargeDate means the
// patient is still in the bed.
type Admission struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       string     `db:"patient_id" json:"patient_id"`
	BranchID        int        `db:"branch_id" json:"branch_id"`
	WardID          int        `db:"ward_id" json:"ward_id"`
	BedID           int        `db:"bed_id" json:"bed_id"`
	Category        string     `db:"category" json:"category"`
	Diagnosis       string     `db:"diagnosis" json:"diagnosis"`
	AdmittingDoctor string     `db:"admitting_doctor" json:"admitting_doctor"`
	DailyBedRate    float64    `db:"daily_bed_rate" json:"daily_bed_rate"`
	AdmissionDate   time.Time  `db:"admission_date" json:"admission_date"`
	DischargeDate   *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	DischargeNotes  *string    `db:"discharge_notes" json:"discharge_notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the admission still occupies its bed.
func (a *Admission) Active() bool {
	return a.DischargeDate == nil
}

// LengthOfStay counts whole days from admission to discharge, or to now for
// active admissions.
func (a *Admission) LengthOfStay(now time.Time) int {
	end := now
	if a.DischargeDate != nil {
		end = *a.DischargeDate
	}
	days := int(end.Sub(a.AdmissionDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// AdmissionView is an admission joined with its patient for list responses.
type AdmissionView struct {
	Admission
	PatientName  string `json:"patient_name"`
	Gender       string `json:"gender"`
	Phone        string `json:"phone"`
	WardName     string `json:"ward_name"`
	BedNumber    string `json:"bed_number"`
	BranchName   string `json:"branch_name"`
	LengthOfStay int    `json:"length_of_stay"`
}

// WardStatistics aggregates bed state for one ward.
type WardStatistics struct {
	BranchID            int     `json:"branch_id"`
	WardID              int     `json:"ward_id"`
	WardName            string  `json:"ward_name"`
	WardType            string  `json:"ward_type"`
	TotalBeds           int     `json:"total_beds"`
	OccupiedBeds        int     `json:"occupied_beds"`
	AvailableBeds       int     `json:"available_beds"`
	OccupancyPercentage float64 `json:"occupancy_percentage"`
	CurrentPatients     int     `json:"current_patients"`
	AvgDailyRate        float64 `json:"avg_daily_rate"`
}

// BranchSummary aggregates bed state for one branch.
type BranchSummary struct {
	BranchID            int     `json:"branch_id"`
	BranchName          string  `json:"branch_name"`
	TotalWards          int     `json:"total_wards"`
	TotalBeds           int     `json:"total_beds"`
	OccupiedBeds        int     `json:"occupied_beds"`
	AvailableBeds       int     `json:"available_beds"`
	OccupancyPercentage float64 `json:"occupancy_percentage"`
}

// BedView is the per-bed occupancy row.
type BedView struct {
	BranchID      int        `json:"branch_id"`
	WardID        int        `json:"ward_id"`
	WardName      string     `json:"ward_name"`
	BedID         int        `json:"bed_id"`
	BedNumber     string     `json:"bed_number"`
	Status        string     `json:"status"`
	PatientID     string     `json:"patient_id,omitempty"`
	PatientName   string     `json:"patient_name,omitempty"`
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	LengthOfStay  int        `json:"length_of_stay"`
}

// Metadata is the static reference data the admission forms consume.
type Metadata struct {
	Branches   []Branch `json:"branches"`
	Categories []string `json:"categories"`
}
