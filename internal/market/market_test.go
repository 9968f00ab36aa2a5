package market

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trades-rl/internal/config"
)

func TestParseCSV_SortsAndPrefersAdjustedClose(t *testing.T) {
	raw := "timestamp,open,high,low,close,adjusted_close,volume\n" +
		"2024-01-03,1,1,1,12,11.5,100\n" +
		"2024-01-01,1,1,1,10,9.5,100\n" +
		"2024-01-02,1,1,1,11,10.5,100\n"

	series, err := ParseCSV(strings.NewReader(raw), "ABC", "1d")
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", series.Len())
	}
	want := []float64{9.5, 10.5, 11.5}
	for i, v := range series.Closes() {
		if v != want[i] {
			t.Errorf("close[%d]=%f, want %f", i, v, want[i])
		}
	}
	ts := series.Timestamps()
	if !ts[0].Before(ts[1]) || !ts[1].Before(ts[2]) {
		t.Errorf("timestamps not ascending: %v", ts)
	}
}

func TestParseCSV_RejectsMissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,open\n2024-01-01,1\n"), "ABC", "1d")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseCSV_RejectsBadPrice(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,close\n2024-01-01,abc\n"), "ABC", "1d")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSeriesValidate(t *testing.T) {
	if err := FromCloses("X", []float64{1, 2, 3}).Validate(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := map[string]Series{
		"too short": FromCloses("X", []float64{1, 2}),
		"nan":       FromCloses("X", []float64{1, math.NaN(), 3}),
		"negative":  FromCloses("X", []float64{1, -2, 3}),
	}
	for name, s := range cases {
		if err := s.Validate(3); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestCSVSupplier_PrefersIntervalFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("ABC.csv", "date,close\n2024-01-01,1\n")
	write("ABC_1h.csv", "date,close\n2024-01-01 10:00:00,5\n2024-01-01 11:00:00,6\n")

	supplier := NewCSVSupplier(dir)
	series, err := supplier.Series(context.Background(), "abc", "1h")
	if err != nil {
		t.Fatalf("Series returned error: %v", err)
	}
	if series.Len() != 2 || series.At(1) != 6 {
		t.Fatalf("expected hourly file, got %v", series.Closes())
	}

	daily, err := supplier.Series(context.Background(), "ABC", "1d")
	if err != nil {
		t.Fatalf("Series returned error: %v", err)
	}
	if daily.Len() != 1 {
		t.Fatalf("expected fallback file with 1 point, got %d", daily.Len())
	}

	if _, err := supplier.Series(context.Background(), "MISSING", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing file, got %v", err)
	}
}

func TestAlphaVantageSupplier_DailyRequest(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("timestamp,open,high,low,close,adjusted_close,volume\n2024-01-02,1,1,1,2,2,1\n2024-01-01,1,1,1,1,1,1\n"))
	}))
	defer srv.Close()

	supplier, err := NewAlphaVantageSupplier(AlphaVantageOptions{
		APIKey:   "demo",
		BaseURL:  srv.URL,
		Exchange: "nse",
		Timeout:  5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewAlphaVantageSupplier returned error: %v", err)
	}

	series, err := supplier.Series(context.Background(), "indusindbk", "1d")
	if err != nil {
		t.Fatalf("Series returned error: %v", err)
	}
	if series.Len() != 2 || series.At(0) != 1 {
		t.Fatalf("unexpected series: %v", series.Closes())
	}
	if gotQuery["function"] != "TIME_SERIES_DAILY_ADJUSTED" {
		t.Errorf("unexpected function %q", gotQuery["function"])
	}
	if gotQuery["symbol"] != "NSE:INDUSINDBK" {
		t.Errorf("unexpected symbol %q", gotQuery["symbol"])
	}
	if gotQuery["datatype"] != "csv" || gotQuery["apikey"] != "demo" {
		t.Errorf("unexpected query %v", gotQuery)
	}
}

func TestAlphaVantageSupplier_IntradayAndRateLimit(t *testing.T) {
	var interval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		interval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(`{"Note": "call frequency exceeded"}`))
	}))
	defer srv.Close()

	supplier, err := NewAlphaVantageSupplier(AlphaVantageOptions{APIKey: "demo", BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewAlphaVantageSupplier returned error: %v", err)
	}
	if _, err := supplier.Series(context.Background(), "IBM", "5m"); err == nil {
		t.Fatalf("expected error for JSON response")
	}
	if interval != "5min" {
		t.Errorf("expected interval 5min, got %q", interval)
	}
}

func TestAlphaVantageSupplier_RequiresKey(t *testing.T) {
	if _, err := NewAlphaVantageSupplier(AlphaVantageOptions{}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestRegistry_DefaultAndUnknown(t *testing.T) {
	reg := DefaultRegistry()
	names := strings.Join(reg.Names(), ",")
	if names != "alphavantage,csv,yahoo" {
		t.Fatalf("unexpected registered names %q", names)
	}

	supplier, err := reg.New("CSV", Deps{Source: config.DataSourceConfig{Dir: t.TempDir()}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if supplier.Name() != "csv" {
		t.Errorf("expected csv supplier, got %s", supplier.Name())
	}

	if _, err := reg.New("bogus", Deps{}); err == nil {
		t.Fatalf("expected error for unknown supplier")
	}
}
