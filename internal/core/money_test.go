package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"12,34", 1234},
		{"0.5", 50},
		{"12.345", 1235},
		{"12.344", 1234},
		{"  7 ", 700},
		{"-3", -300},
		{"-0.005", -1},
		{"1000000", 100000000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDecimalToCents_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1e3", "1.2.3", "12,34,56"} {
		if _, err := ParseDecimalToCents(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseDecimalToCents(%q) err = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("19.99")
	if err != nil || m.Cents != 1999 {
		t.Fatalf("ParseMoney = %v, %v", m, err)
	}
	if _, err := ParseMoney("0"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := ParseMoney("-5"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1230: "12.30", -250: "-2.50"}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}
