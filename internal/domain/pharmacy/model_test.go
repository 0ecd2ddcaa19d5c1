package pharmacy

import "testing"

func TestLineStatus(t *testing.T) {
	cases := []struct {
		dispensed, ordered int
		want               string
	}{
		{0, 10, StatusPending},
		{1, 10, StatusPartiallyDispensed},
		{9, 10, StatusPartiallyDispensed},
		{10, 10, StatusDispensed},
		{11, 10, StatusDispensed},
		{0, 0, StatusPending},
	}
	for _, c := range cases {
		if got := LineStatus(c.dispensed, c.ordered); got != c.want {
			t.Errorf("LineStatus(%d, %d) = %s, want %s", c.dispensed, c.ordered, got, c.want)
		}
	}
}

func TestAggregateStatus(t *testing.T) {
	cases := []struct {
		name  string
		lines []PrescriptionLine
		want  string
	}{
		{"empty", nil, StatusPending},
		{"all pending", []PrescriptionLine{{Status: StatusPending}, {Status: StatusPending}}, StatusPending},
		{"one partial", []PrescriptionLine{{Status: StatusPartiallyDispensed}, {Status: StatusPending}}, StatusPartiallyDispensed},
		{"mixed done and pending", []PrescriptionLine{{Status: StatusDispensed}, {Status: StatusPending}}, StatusPartiallyDispensed},
		{"all dispensed", []PrescriptionLine{{Status: StatusDispensed}, {Status: StatusDispensed}}, StatusDispensed},
		{"out of stock line blocks completion", []PrescriptionLine{{Status: StatusDispensed}, {Status: StatusOutOfStock}}, StatusPartiallyDispensed},
	}
	for _, c := range cases {
		if got := AggregateStatus(c.lines); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestAppendNote(t *testing.T) {
	var p Prescription
	p.AppendNote("")
	if p.Notes != nil {
		t.Error("empty note must be ignored")
	}
	p.AppendNote("first")
	if p.Notes == nil || *p.Notes != "first" {
		t.Fatalf("expected %q, got %v", "first", p.Notes)
	}
	p.AppendNote("second")
	if *p.Notes != "first\nsecond" {
		t.Errorf("expected joined notes, got %q", *p.Notes)
	}
}

func TestRemaining(t *testing.T) {
	l := PrescriptionLine{Quantity: 21, Dispensed: 6}
	if l.Remaining() != 15 {
		t.Errorf("expected 15, got %d", l.Remaining())
	}
}
