package ledger

import (
	"errors"
	"testing"
)

func TestParseAmount(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		input   string
		want    AmountCents
		wantErr error
	}{
		{input: "1000", want: 100000},
		{input: " 300.00 ", want: 30000},
		{input: "0.1", want: 10},
		{input: "12.345", want: 1235},
		{input: "0.004", wantErr: ErrInvalidAmountCents},
		{input: "-1", wantErr: ErrInvalidAmountCents},
		{input: "ten", wantErr: ErrInvalidAmountCents},
	}
	for _, testCase := range testCases {
		got, err := ParseAmount(testCase.input)
		if testCase.wantErr != nil {
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("%q: expected %v, got %v", testCase.input, testCase.wantErr, err)
			}
			continue
		}
		if err != nil || got != testCase.want {
			test.Fatalf("%q: expected %d, got %d (%v)", testCase.input, testCase.want, got, err)
		}
	}
}

func TestAmountFormatting(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		amount     AmountCents
		wantString string
		wantFormat string
	}{
		{amount: 0, wantString: "0.00", wantFormat: "0.00"},
		{amount: 5, wantString: "0.05", wantFormat: "0.05"},
		{amount: 123450, wantString: "1234.50", wantFormat: "1,234.50"},
		{amount: 100000000, wantString: "1000000.00", wantFormat: "1,000,000.00"},
		{amount: -123450, wantString: "-1234.50", wantFormat: "-1,234.50"},
	}
	for _, testCase := range testCases {
		if got := testCase.amount.String(); got != testCase.wantString {
			test.Fatalf("String(%d): expected %q, got %q", testCase.amount.Int64(), testCase.wantString, got)
		}
		if got := testCase.amount.Format(); got != testCase.wantFormat {
			test.Fatalf("Format(%d): expected %q, got %q", testCase.amount.Int64(), testCase.wantFormat, got)
		}
	}
}
