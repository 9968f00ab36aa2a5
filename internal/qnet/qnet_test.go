package qnet

import (
	"encoding/json"
	"errors"
	"testing"

	"trades-rl/internal/config"
)

func testSpec() Spec {
	return Spec{
		Inputs:       2,
		Outputs:      3,
		HiddenUnits:  16,
		LearningRate: 0.01,
		Rho:          0.9,
		Epsilon:      1e-7,
		Seed:         3,
	}
}

func TestDense_LearnsConstantTarget(t *testing.T) {
	model, err := NewDense(testSpec())
	if err != nil {
		t.Fatalf("NewDense returned error: %v", err)
	}

	states := [][]float64{{0.1, 0.2}, {-0.3, 0.5}, {0.7, -0.1}, {0, 0}}
	targets := make([][]float64, len(states))
	for i := range targets {
		targets[i] = []float64{1, -1, 0.5}
	}

	pred, err := model.Predict(states)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	initial := MSE(pred, targets)

	for i := 0; i < 600; i++ {
		if err := model.Fit(states, targets); err != nil {
			t.Fatalf("Fit returned error: %v", err)
		}
	}

	pred, _ = model.Predict(states)
	final := MSE(pred, targets)
	if final >= initial || final > 0.05 {
		t.Fatalf("expected loss to drop well below %f, got %f", initial, final)
	}
	if model.Steps != 600 {
		t.Errorf("expected 600 steps, got %d", model.Steps)
	}
}

func TestLinear_LearnsConstantTarget(t *testing.T) {
	model, err := NewLinear(testSpec())
	if err != nil {
		t.Fatalf("NewLinear returned error: %v", err)
	}
	states := [][]float64{{0.1, 0.2}, {-0.3, 0.5}}
	targets := [][]float64{{0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}}

	pred, _ := model.Predict(states)
	initial := MSE(pred, targets)
	for i := 0; i < 400; i++ {
		if err := model.Fit(states, targets); err != nil {
			t.Fatalf("Fit returned error: %v", err)
		}
	}
	pred, _ = model.Predict(states)
	if final := MSE(pred, targets); final >= initial {
		t.Fatalf("expected loss to decrease from %f, got %f", initial, final)
	}
}

func TestDense_SeededInitIsDeterministic(t *testing.T) {
	a, _ := NewDense(testSpec())
	b, _ := NewDense(testSpec())
	for i := range a.W1 {
		if a.W1[i] != b.W1[i] {
			t.Fatalf("weights differ at %d", i)
		}
	}

	spec := testSpec()
	spec.Seed = 4
	c, _ := NewDense(spec)
	same := true
	for i := range a.W1 {
		if a.W1[i] != c.W1[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical weights")
	}
}

func TestDense_RejectsWrongShapes(t *testing.T) {
	model, _ := NewDense(testSpec())

	if _, err := model.Predict([][]float64{{1, 2, 3}}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for wide input, got %v", err)
	}
	if err := model.Fit([][]float64{{1, 2}}, [][]float64{{1, 2}}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for short target, got %v", err)
	}
	if err := model.Fit([][]float64{{1, 2}}, nil); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for missing targets, got %v", err)
	}
}

func TestRestore_ReproducesPredictions(t *testing.T) {
	trained, _ := NewDense(testSpec())
	states := [][]float64{{0.3, -0.2}}
	for i := 0; i < 20; i++ {
		_ = trained.Fit(states, [][]float64{{1, 2, 3}})
	}
	payload, err := json.Marshal(trained)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	spec := testSpec()
	spec.Seed = 99
	fresh, _ := NewDense(spec)
	if err := Restore(fresh, payload); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}

	want, _ := trained.Predict(states)
	got, _ := fresh.Predict(states)
	for k := range want[0] {
		if want[0][k] != got[0][k] {
			t.Fatalf("prediction %d differs after restore: %f vs %f", k, got[0][k], want[0][k])
		}
	}
}

func TestRestore_RejectsMismatchedShape(t *testing.T) {
	spec := testSpec()
	spec.Inputs = 5
	other, _ := NewDense(spec)
	payload, _ := json.Marshal(other)

	model, _ := NewDense(testSpec())
	if err := Restore(model, payload); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	spec := SpecFrom(config.ModelConfig{HiddenUnits: 8, LearningRate: 0.001, Rho: 0.99, Epsilon: 0.1}, 4, 3, 1)

	for _, name := range []string{"dense", "LINEAR"} {
		model, err := reg.New(name, spec)
		if err != nil {
			t.Fatalf("%s: New returned error: %v", name, err)
		}
		out, err := model.Predict([][]float64{{1, 2, 3, 4}})
		if err != nil {
			t.Fatalf("%s: Predict returned error: %v", name, err)
		}
		if len(out) != 1 || len(out[0]) != 3 {
			t.Errorf("%s: unexpected output shape %v", name, out)
		}
	}

	if _, err := reg.New("wavenet", spec); err == nil {
		t.Errorf("expected error for unknown model")
	}
	if _, err := reg.New("dense", Spec{Inputs: 1, Outputs: 3}); err == nil {
		t.Errorf("expected error for zero learning rate")
	}
}
