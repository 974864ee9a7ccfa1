package core

import (
	"errors"
	"fmt"
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

func TestDateJSON(t *testing.T) {
	v := NewDate(2024, 2, 29)
	b, err := v.MarshalJSON()
	if err != nil || string(b) != `"2024-02-29"` {
		t.Fatalf("MarshalJSON = %s, %v", b, err)
	}
	var back Date
	if err := back.UnmarshalJSON([]byte(`"2024-02-29T23:30:00Z"`)); err != nil {
		t.Fatal(err)
	}
	if back != v {
		t.Fatalf("UnmarshalJSON = %s, want %s", back, v)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		AccountID:  "acc",
		CategoryID: "cat",
		CurrencyID: "usd",
		TypeID:     TypeExpense,
		Date:       NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Date = Date{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("zero date: got %v", err)
	}
	bad = good
	bad.TypeID = 9
	if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad type: got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (TransactionCategory{Name: "Food", TypeID: TypeExpense}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (TransactionCategory{Name: "x", TypeID: TypeTransfer}).Validate(); err == nil {
		t.Fatalf("transfer categories are system reserved")
	}
	if err := (TransactionCategory{Name: "  ", TypeID: TypeIncome}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name: got %v", err)
	}
}

func TestParseDeleteType(t *testing.T) {
	cases := map[string]DeleteType{
		"":                   DeleteThis,
		"this":               DeleteThis,
		"this_and_following": DeleteThisAndFollowing,
		"all":                DeleteAll,
	}
	for in, want := range cases {
		got, err := ParseDeleteType(in)
		if err != nil || got != want {
			t.Fatalf("ParseDeleteType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDeleteType("some"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("load account: %w", ErrNotFound), CodeNotFound},
		{fmt.Errorf("post: %w", ErrForbidden), CodeForbidden},
		{ErrCategoryCannotBeEmpty, CodeCategoryCannotBeEmpty},
		{ErrCurrencyLocked, CodeCurrencyLocked},
		{ErrTooManyOccurrences, CodeInvalidRequest},
		{errors.New("disk on fire"), CodeInternalError},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTransferOther(t *testing.T) {
	tr := TransactionTransfer{ID: "t", OriginTransactionID: "a", DestinationTransactionID: "b"}
	if tr.Other("a") != "b" || tr.Other("b") != "a" || tr.Other("c") != "" {
		t.Fatalf("Other() mismatch")
	}
}

func TestComparisonPercentage(t *testing.T) {
	c := NewComparison(150, 100)
	if c.Percentage == nil || *c.Percentage != 50 {
		t.Fatalf("percentage = %v", c.Percentage)
	}
	if NewComparison(10, 0).Percentage != nil {
		t.Fatalf("zero previous must have nil percentage")
	}
}
