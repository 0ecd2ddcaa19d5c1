package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	stats := PoolStats{
		TotalConns: 8,
		IdleConns:  3,
		InUseConns: 5,
		MaxConns:   20,
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"total_conns", "idle_conns", "in_use_conns", "max_conns"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in JSON output", key)
		}
	}
	if decoded["total_conns"].(float64) != 8 {
		t.Errorf("expected total_conns 8, got %v", decoded["total_conns"])
	}
	if decoded["in_use_conns"].(float64) != 5 {
		t.Errorf("expected in_use_conns 5, got %v", decoded["in_use_conns"])
	}
}
