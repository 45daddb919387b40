package fees

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		contribution string
		wantErr      bool
		validateFunc func(t *testing.T, b Breakdown)
	}{
		{
			name:         "below flat-fee waiver uses percentage gross-up only",
			contribution: "2000",
			validateFunc: func(t *testing.T, b Breakdown) {
				// 2000/(1-0.015) + 0.01 - 2000 = 30.4669 -> 30.47
				if !b.PaystackTransactionFee.Equal(dec("30.47")) {
					t.Errorf("transaction fee = %s, want 30.47", b.PaystackTransactionFee)
				}
				if !b.PaystackTransferFee.Equal(dec("10")) {
					t.Errorf("transfer fee = %s, want 10", b.PaystackTransferFee)
				}
				if !b.HalverFee.Equal(dec("40.47")) {
					t.Errorf("halver fee = %s, want 40.47", b.HalverFee)
				}
				if !b.TotalFee.Equal(dec("80.94")) {
					t.Errorf("total fee = %s, want 80.94", b.TotalFee)
				}
				if !b.TotalPayable.Equal(dec("2080.94")) {
					t.Errorf("total payable = %s, want 2080.94", b.TotalPayable)
				}
			},
		},
		{
			name:         "above waiver threshold adds flat fee before gross-up",
			contribution: "3000",
			validateFunc: func(t *testing.T, b Breakdown) {
				// (3000+100)/(1-0.015) + 0.01 - 3000 = 147.2181 -> 147.22
				if !b.PaystackTransactionFee.Equal(dec("147.22")) {
					t.Errorf("transaction fee = %s, want 147.22", b.PaystackTransactionFee)
				}
				if !b.PaystackTransferFee.Equal(dec("10")) {
					t.Errorf("transfer fee = %s, want 10", b.PaystackTransferFee)
				}
				if !b.HalverFee.Equal(dec("157.22")) {
					t.Errorf("halver fee = %s, want 157.22", b.HalverFee)
				}
				if !b.TotalFee.Equal(dec("314.44")) {
					t.Errorf("total fee = %s, want 314.44", b.TotalFee)
				}
				if !b.TotalPayable.Equal(dec("3314.44")) {
					t.Errorf("total payable = %s, want 3314.44", b.TotalPayable)
				}
			},
		},
		{
			name:         "transfer fee stays in the low tier at exactly 5000",
			contribution: "5000",
			validateFunc: func(t *testing.T, b Breakdown) {
				if !b.PaystackTransferFee.Equal(dec("10")) {
					t.Errorf("transfer fee = %s, want 10", b.PaystackTransferFee)
				}
			},
		},
		{
			name:         "transfer fee moves to the middle tier just past 5000",
			contribution: "5000.01",
			validateFunc: func(t *testing.T, b Breakdown) {
				if !b.PaystackTransferFee.Equal(dec("25")) {
					t.Errorf("transfer fee = %s, want 25", b.PaystackTransferFee)
				}
			},
		},
		{
			name:         "large amount hits the transaction fee cap",
			contribution: "200000",
			validateFunc: func(t *testing.T, b Breakdown) {
				if !b.PaystackTransactionFee.Equal(dec("2000")) {
					t.Errorf("transaction fee = %s, want capped 2000", b.PaystackTransactionFee)
				}
				if !b.PaystackTransferFee.Equal(dec("50")) {
					t.Errorf("transfer fee = %s, want 50", b.PaystackTransferFee)
				}
				if !b.TotalFee.Equal(dec("4100")) {
					t.Errorf("total fee = %s, want 4100", b.TotalFee)
				}
				if !b.TotalPayable.Equal(dec("204100")) {
					t.Errorf("total payable = %s, want 204100", b.TotalPayable)
				}
			},
		},
		{
			name:         "zero contribution",
			contribution: "0",
			validateFunc: func(t *testing.T, b Breakdown) {
				// 0/(0.985) + 0.01 - 0 = 0.01
				if !b.PaystackTransactionFee.Equal(dec("0.01")) {
					t.Errorf("transaction fee = %s, want 0.01", b.PaystackTransactionFee)
				}
				if b.TotalFee.IsNegative() {
					t.Errorf("total fee = %s, want >= 0", b.TotalFee)
				}
			},
		},
		{
			name:         "negative contribution rejected",
			contribution: "-1",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Compute(dec(tt.contribution))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, b)
			}
		})
	}
}

// Halver fee must equal the gateway's share, and total fee must be exactly
// twice it, for any amount.
func TestComputeFeeDoubling(t *testing.T) {
	for _, amount := range []string{"1", "100", "2499.99", "2500", "10000", "123456.78"} {
		b, err := Compute(dec(amount))
		if err != nil {
			t.Fatalf("Compute(%s) failed: %v", amount, err)
		}
		gateway := b.PaystackTransactionFee.Add(b.PaystackTransferFee)
		if !b.HalverFee.Equal(gateway) {
			t.Errorf("amount %s: halver fee %s != gateway share %s", amount, b.HalverFee, gateway)
		}
		if !b.TotalFee.Equal(gateway.Mul(decimal.NewFromInt(2))) {
			t.Errorf("amount %s: total fee %s != 2x gateway share", amount, b.TotalFee)
		}
	}
}

func TestComputeMonotonic(t *testing.T) {
	prev := decimal.Zero
	step := dec("997.13")
	for amount := decimal.Zero; amount.LessThanOrEqual(dec("10000000")); amount = amount.Add(step) {
		b, err := Compute(amount)
		if err != nil {
			t.Fatalf("Compute(%s) failed: %v", amount, err)
		}
		if b.TotalFee.IsNegative() {
			t.Fatalf("amount %s: total fee %s is negative", amount, b.TotalFee)
		}
		if b.TotalFee.LessThan(prev) {
			t.Fatalf("amount %s: total fee %s decreased from %s", amount, b.TotalFee, prev)
		}
		prev = b.TotalFee
	}
}

func TestMinorUnitRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "1000", "2080.94", "99999.99", "123.45"} {
		want := dec(s)
		got := FromMinorUnits(ToMinorUnits(want))
		if !got.Equal(want) {
			t.Errorf("round trip of %s = %s", want, got)
		}
	}
}

func TestToMinorUnitsHalfEven(t *testing.T) {
	tests := []struct {
		major string
		want  int64
	}{
		{"10.005", 1000}, // .5 rounds to even
		{"10.015", 1002},
		{"10.004", 1000},
		{"10.006", 1001},
	}
	for _, tt := range tests {
		if got := ToMinorUnits(dec(tt.major)); got != tt.want {
			t.Errorf("ToMinorUnits(%s) = %d, want %d", tt.major, got, tt.want)
		}
	}
}
