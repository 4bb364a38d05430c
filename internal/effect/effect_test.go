package effect

import "testing"

func TestApply(t *testing.T) {
	vars := map[string]float64{"oxygen": 100}

	Apply(vars, []Effect{
		{Op: OpAdd, Var: "oxygen", Value: -15},
		{Op: OpAdd, Var: "alert", Value: 2},
		{Op: OpSet, Var: "power", Value: 1},
	})

	if vars["oxygen"] != 85 {
		t.Errorf("expected oxygen 85, got %v", vars["oxygen"])
	}
	if vars["alert"] != 2 {
		t.Errorf("expected missing var to start at 0, got %v", vars["alert"])
	}
	if vars["power"] != 1 {
		t.Errorf("expected power 1, got %v", vars["power"])
	}
}

func TestApplyDoesNotClamp(t *testing.T) {
	vars := map[string]float64{"oxygen": 3}
	Apply(vars, []Effect{{Op: OpAdd, Var: "oxygen", Value: -5}})
	if vars["oxygen"] != -2 {
		t.Errorf("expected -2, got %v", vars["oxygen"])
	}
}

func TestValidate(t *testing.T) {
	if err := (Effect{Op: OpAdd, Var: "x", Value: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Effect{Op: "mul", Var: "x"}).Validate(); err == nil {
		t.Error("expected error for unknown op")
	}
	if err := (Effect{Op: OpSet}).Validate(); err == nil {
		t.Error("expected error for missing var")
	}
}
