package pharmacy

import (
	"context"
	"time"
)

// SeedDemo loads the demo data set used when the server runs without a
// database: two inventory rows, one pending prescription, and the receipt
// movement for the first batch. Calling it on a non-empty store is a no-op.
func (s *Service) SeedDemo(ctx context.Context) error {
	existing, err := s.inventory.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	amoxicillin := &InventoryItem{
		Name:         "Amoxicillin",
		GenericName:  "Amoxicillin Trihydrate",
		Category:     "Antibiotics",
		DosageForm:   "Capsule",
		Strength:     "500mg",
		Manufacturer: "PharmaCorp Kenya",
		BatchNumber:  "AMX2024001",
		ExpiryDate:   time.Now().AddDate(0, 18, 0),
		Quantity:     500,
		ReorderLevel: 100,
		UnitPrice:    15.50,
		Location:     "Shelf A1",
		Branch:       "Fedha",
	}
	if err := s.inventory.Create(ctx, amoxicillin); err != nil {
		return err
	}

	paracetamol := &InventoryItem{
		Name:         "Paracetamol",
		GenericName:  "Acetaminophen",
		Category:     "Analgesics",
		DosageForm:   "Tablet",
		Strength:     "500mg",
		Manufacturer: "MediPharm Ltd",
		BatchNumber:  "PCM2024002",
		ExpiryDate:   time.Now().AddDate(0, 24, 0),
		Quantity:     1000,
		ReorderLevel: 200,
		UnitPrice:    5.00,
		Location:     "Shelf B2",
		Branch:       "Fedha",
	}
	if err := s.inventory.Create(ctx, paracetamol); err != nil {
		return err
	}

	ref := "PO-2024-001"
	receipt := &StockMovement{
		MedicationID:   amoxicillin.ID,
		MedicationName: amoxicillin.Name,
		Type:           MovementIn,
		Quantity:       500,
		Reason:         "Initial stock receipt",
		PerformedBy:    "system",
		Reference:      &ref,
	}
	if err := s.movements.Append(ctx, receipt); err != nil {
		return err
	}

	prescription := &Prescription{
		PrescriptionNumber: "RX001",
		PatientID:          "P001",
		PatientName:        "John Mwangi",
		DoctorID:           "D001",
		DoctorName:         "Dr. Sarah Kimani",
		TokenNumber:        1,
		Status:             StatusPending,
		Medications: []PrescriptionLine{
			{
				Name:      "Amoxicillin",
				Dosage:    "500mg",
				Frequency: "3 times daily",
				Duration:  "7 days",
				Quantity:  21,
				Status:    StatusPending,
			},
		},
	}
	return s.prescriptions.Create(ctx, prescription)
}
