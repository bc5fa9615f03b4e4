package panel

import "testing"

func TestQuadrature(t *testing.T) {
	type ev struct {
		clk   bool
		level int
	}
	tests := []struct {
		name   string
		events []ev
		want   int
	}{
		{"clockwise", []ev{{true, 1}, {true, 0}, {true, 1}}, 2},
		{"counter clockwise", []ev{{false, 1}, {true, 1}, {true, 0}, {true, 1}}, -2},
		{"dt only", []ev{{false, 1}, {false, 0}}, 0},
		{"repeated rising level", []ev{{true, 1}, {true, 1}}, 1},
	}
	for _, tt := range tests {
		var q quadrature
		sum := 0
		for _, e := range tt.events {
			sum += q.edge(e.clk, e.level)
		}
		if sum != tt.want {
			t.Errorf("%s: sum = %d, want %d", tt.name, sum, tt.want)
		}
	}
}

func TestConfigured(t *testing.T) {
	if (Config{}).Configured() {
		t.Fatal("empty config reports configured")
	}
	if !(Config{Buttons: map[string]int{"flip": 17}}).Configured() {
		t.Fatal("button-only config not configured")
	}
	p, err := New(Config{}, Handlers{})
	if p != nil || err != nil {
		t.Fatalf("New(empty) = %v, %v", p, err)
	}
}
