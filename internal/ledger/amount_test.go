package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/commonsring/ledger/internal/ledger"
)

func TestRoundAmount(t *testing.T) {
	type testCase struct {
		in   string
		want string
	}

	tests := []testCase{
		{in: "2.25", want: "2.3"},
		{in: "2.24", want: "2.2"},
		{in: "-2.25", want: "-2.3"},
		{in: "0.04", want: "0.0"},
		{in: "10", want: "10.0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ledger.RoundAmount(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.StringFixed(1))
		})
	}
}
