package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("got %s", d)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("String() = %q", d.String())
	}
	for _, bad := range []string{"", "2023-02-29", "29/02/2024", "2024-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) err = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestPeriod(t *testing.T) {
	p := PeriodOf(NewDate(2024, 12, 15))
	if p != (Period{Year: 2024, Month: 12}) {
		t.Fatalf("PeriodOf = %+v", p)
	}
	if got := p.Start().String(); got != "2024-12-01" {
		t.Errorf("Start = %s", got)
	}
	if got := p.End().String(); got != "2025-01-01" {
		t.Errorf("End = %s", got)
	}
	if p.String() != "2024-12" {
		t.Errorf("String = %s", p.String())
	}

	bads := []Period{{2024, 0}, {2024, 13}, {1999, 5}, {10000, 1}}
	for i, b := range bads {
		if err := b.Validate(); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("case %d expected ErrInvalidPeriod, got %v", i, err)
		}
	}
}

func TestFrequencyAdvance(t *testing.T) {
	tests := []struct {
		name       string
		freq       Frequency
		from       Date
		want       Date
		wantActive bool
	}{
		{"weekly", Weekly, NewDate(2024, 1, 1), NewDate(2024, 1, 8), true},
		{"weekly across year", Weekly, NewDate(2024, 12, 28), NewDate(2025, 1, 4), true},
		{"monthly same day", Monthly, NewDate(2024, 3, 15), NewDate(2024, 4, 15), true},
		{"monthly clamps to leap day", Monthly, NewDate(2024, 1, 31), NewDate(2024, 2, 29), true},
		{"monthly clamps to feb 28", Monthly, NewDate(2023, 1, 31), NewDate(2023, 2, 28), true},
		{"monthly clamps to 30", Monthly, NewDate(2024, 3, 31), NewDate(2024, 4, 30), true},
		{"monthly december", Monthly, NewDate(2024, 12, 10), NewDate(2025, 1, 10), true},
		{"yearly", Yearly, NewDate(2024, 6, 1), NewDate(2025, 6, 1), true},
		{"yearly leap day", Yearly, NewDate(2024, 2, 29), NewDate(2025, 2, 28), true},
		{"one-time deactivates", OneTime, NewDate(2024, 5, 5), NewDate(2024, 5, 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, active, err := tt.freq.Advance(tt.from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Advance(%s) = %s, want %s", tt.from, got, tt.want)
			}
			if active != tt.wantActive {
				t.Errorf("active = %v, want %v", active, tt.wantActive)
			}
		})
	}
}

func TestPaymentNextOccurrenceKeepsAnchorDay(t *testing.T) {
	p := Payment{Frequency: Monthly, NextDue: NewDate(2024, 1, 31), DueDay: 31}
	want := []string{"2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31"}
	for _, w := range want {
		next, active, err := p.NextOccurrence()
		if err != nil || !active {
			t.Fatalf("NextOccurrence(%s) = %s, %v, %v", p.NextDue, next, active, err)
		}
		if next.String() != w {
			t.Fatalf("NextOccurrence(%s) = %s, want %s", p.NextDue, next, w)
		}
		p.NextDue = next
	}

	leap := Payment{Frequency: Yearly, NextDue: NewDate(2025, 2, 28), DueDay: 29}
	for _, w := range []string{"2026-02-28", "2027-02-28", "2028-02-29"} {
		next, _, err := leap.NextOccurrence()
		if err != nil || next.String() != w {
			t.Fatalf("yearly NextOccurrence(%s) = %s, %v, want %s", leap.NextDue, next, err, w)
		}
		leap.NextDue = next
	}

	legacy := Payment{Frequency: Monthly, NextDue: NewDate(2024, 2, 29)}
	if next, _, _ := legacy.NextOccurrence(); next.String() != "2024-03-29" {
		t.Errorf("unanchored payment advanced to %s, want 2024-03-29", next)
	}
}

func TestFrequencyAdvanceErrors(t *testing.T) {
	if _, _, err := Monthly.Advance(NewDate(9999, 12, 15)); !errors.Is(err, ErrDateOverflow) {
		t.Errorf("monthly overflow err = %v", err)
	}
	if _, _, err := Yearly.Advance(NewDate(9999, 1, 1)); !errors.Is(err, ErrDateOverflow) {
		t.Errorf("yearly overflow err = %v", err)
	}
	if _, _, err := Weekly.Advance(NewDate(9999, 12, 30)); !errors.Is(err, ErrDateOverflow) {
		t.Errorf("weekly overflow err = %v", err)
	}
	if _, _, err := Frequency("daily").Advance(NewDate(2024, 1, 1)); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("unknown frequency err = %v", err)
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{
		OwnerID: 1, AccountID: 2, CategoryID: 3,
		Description: "Rent",
		Amount:      Money{Cents: 80000},
		Frequency:   Monthly,
		NextDue:     NewDate(2024, 1, 31),
		Active:      true,
		LeadDays:    DefaultLeadDays,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*Payment)) Payment {
		p := good
		f(&p)
		return p
	}
	bads := []Payment{
		mutate(func(p *Payment) { p.OwnerID = 0 }),
		mutate(func(p *Payment) { p.AccountID = 0 }),
		mutate(func(p *Payment) { p.Description = " x " }),
		mutate(func(p *Payment) { p.Amount = Money{} }),
		mutate(func(p *Payment) { p.Frequency = "daily" }),
		mutate(func(p *Payment) { p.NextDue = Date{} }),
		mutate(func(p *Payment) { p.LeadDays = 0 }),
		mutate(func(p *Payment) { p.LeadDays = 31 }),
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetUpdateApply(t *testing.T) {
	b := Budget{OwnerID: 1, CategoryID: 2, Period: Period{2024, 1}, Limit: Money{Cents: 100}, Alert80: true, Alert100: true}
	off := false
	limit := Money{Cents: 500}

	u := BudgetUpdate{Limit: &limit, Alert80: &off}
	if err := u.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u.Apply(&b)
	if b.Limit.Cents != 500 || b.Alert80 || !b.Alert100 {
		t.Fatalf("unexpected budget after apply: %+v", b)
	}

	zero := Money{}
	if err := (BudgetUpdate{Limit: &zero}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPaymentUpdateValidate(t *testing.T) {
	bad := Frequency("hourly")
	if err := (PaymentUpdate{Frequency: &bad}).Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("expected ErrInvalidFrequency, got %v", err)
	}
	lead := 40
	if err := (PaymentUpdate{LeadDays: &lead}).Validate(); !errors.Is(err, ErrInvalidLeadDays) {
		t.Errorf("expected ErrInvalidLeadDays, got %v", err)
	}

	p := Payment{Description: "old", Active: true}
	desc, active := "  new rent ", false
	PaymentUpdate{Description: &desc, Active: &active}.Apply(&p)
	if p.Description != "new rent" || p.Active {
		t.Errorf("unexpected payment after apply: %+v", p)
	}

	p.DueDay = 31
	due := NewDate(2024, 6, 15)
	PaymentUpdate{NextDue: &due}.Apply(&p)
	if p.DueDay != 15 {
		t.Errorf("rescheduling should re-anchor the due day, got %d", p.DueDay)
	}
}

func TestPreferredChannel(t *testing.T) {
	tests := []struct {
		name   string
		prefs  NotificationPreferences
		want   Channel
		wantOK bool
	}{
		{"defaults prefer push", DefaultPreferences(1), ChannelPush, true},
		{"email only", NotificationPreferences{ByEmail: true}, ChannelEmail, true},
		{"sms only", NotificationPreferences{BySMS: true}, ChannelSMS, true},
		{"all disabled", NotificationPreferences{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.prefs.PreferredChannel()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("PreferredChannel() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
