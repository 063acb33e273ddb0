package models

import (
	"testing"
	"time"
)

func TestContractTypeValid(t *testing.T) {
	tests := []struct {
		ct    ContractType
		valid bool
	}{
		{Call, true},
		{Put, true},
		{ContractType("straddle"), false},
		{ContractType(""), false},
	}
	for _, tt := range tests {
		if got := tt.ct.Valid(); got != tt.valid {
			t.Errorf("ContractType(%q).Valid() = %v, want %v", tt.ct, got, tt.valid)
		}
	}
}

func TestParseContractType(t *testing.T) {
	tests := []struct {
		raw     string
		want    ContractType
		wantErr bool
	}{
		{"call", Call, false},
		{"C", Call, false},
		{"put", Put, false},
		{"P", Put, false},
		{"PUT", Put, false},
		{"vertical", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseContractType(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseContractType(%q) expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseContractType(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseContractType(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestRecordDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}
	rec := OptionRecord{Timestamp: time.Date(2024, 3, 15, 15, 45, 12, 0, loc)}
	got := rec.Date()
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Date() = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("Date() location = %v, want %v", got.Location(), loc)
	}
}

func TestMarketRegimeValid(t *testing.T) {
	for _, r := range []MarketRegime{
		RegimeUnknown, RegimeNeutral, RegimeBullish, RegimeBearish,
		RegimeVolatileBullish, RegimeVolatileBearish, RegimeHighVolatility,
	} {
		if !r.Valid() {
			t.Errorf("MarketRegime(%q).Valid() = false, want true", r)
		}
	}
	if MarketRegime("sideways").Valid() {
		t.Error("MarketRegime(\"sideways\").Valid() = true, want false")
	}
}
