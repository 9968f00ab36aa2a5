package feature

import (
	"errors"
	"math"
	"testing"
)

func TestEncode_RawWindows(t *testing.T) {
	enc, err := NewEncoder("raw", 2)
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}

	windows, err := enc.Encode([]float64{10, 11, 9, 12})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if windows.Len() != 2 {
		t.Fatalf("expected 2 windows, got %d", windows.Len())
	}
	assertState(t, windows.At(0), State{10, 11})
	assertState(t, windows.At(1), State{11, 9})
}

func TestEncode_DiffWindows(t *testing.T) {
	enc, err := NewEncoder("diff", 2)
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}

	windows, err := enc.Encode([]float64{10, 11, 9, 12})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if windows.Len() != 2 {
		t.Fatalf("expected 2 windows, got %d", windows.Len())
	}
	assertState(t, windows.At(0), State{1, -2})
	assertState(t, windows.At(1), State{-2, 3})
}

func TestEncode_ROCWindows(t *testing.T) {
	enc, err := NewEncoder("ROC", 1)
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}

	windows, err := enc.Encode([]float64{100, 110, 99})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if windows.Len() != 2 {
		t.Fatalf("expected 2 windows, got %d", windows.Len())
	}
	assertState(t, windows.At(0), State{10})
	assertState(t, windows.At(1), State{-10})
}

func TestEncode_WindowCountMatchesAllModes(t *testing.T) {
	series := make([]float64, 50)
	for i := range series {
		series[i] = 100 + float64(i%7)
	}
	for _, mode := range []string{"raw", "diff", "roc"} {
		for _, lookBack := range []int{1, 5, 49, 50, 60} {
			enc, err := NewEncoder(mode, lookBack)
			if err != nil {
				t.Fatalf("%s/%d: NewEncoder returned error: %v", mode, lookBack, err)
			}
			windows, err := enc.Encode(series)
			if err != nil {
				t.Fatalf("%s/%d: Encode returned error: %v", mode, lookBack, err)
			}
			want := len(series) - lookBack
			if want < 0 {
				want = 0
			}
			if windows.Len() != want {
				t.Errorf("%s/%d: expected %d windows, got %d", mode, lookBack, want, windows.Len())
			}
			for i, state := range windows.All() {
				if len(state) != lookBack {
					t.Fatalf("%s/%d: window %d has length %d", mode, lookBack, i, len(state))
				}
			}
		}
	}
}

func TestWindows_AllIsRestartableAndCopies(t *testing.T) {
	enc, _ := NewEncoder("raw", 3)
	windows, err := enc.Encode([]float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	first := collect(windows)
	first[0][0] = 999
	second := collect(windows)
	if len(first) != len(second) {
		t.Fatalf("expected same window count, got %d and %d", len(first), len(second))
	}
	if second[0][0] != 1 {
		t.Fatalf("mutating a yielded window leaked into the source: %v", second[0])
	}

	count := 0
	for range windows.All() {
		count++
		if count == 1 {
			break
		}
	}
	if count != 1 {
		t.Fatalf("expected early break to stop iteration")
	}
}

func TestEncode_ShortSeriesYieldsEmpty(t *testing.T) {
	enc, _ := NewEncoder("diff", 4)
	windows, err := enc.Encode([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if windows.Len() != 0 {
		t.Fatalf("expected no windows, got %d", windows.Len())
	}
}

func TestNewEncoder_RejectsBadInput(t *testing.T) {
	if _, err := NewEncoder("log", 3); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
	if _, err := NewEncoder("raw", 0); err == nil {
		t.Errorf("expected error for lookBack=0")
	}
}

func collect(w Windows) []State {
	out := make([]State, 0, w.Len())
	for _, s := range w.All() {
		out = append(out, s)
	}
	return out
}

func assertState(t *testing.T, got, want State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("state length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("state[%d]=%f, want %f (got %v)", i, got[i], want[i], got)
		}
	}
}
