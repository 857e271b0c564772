package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func d(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// June 2025: the 2nd is a Monday.
func TestCalculateDuration(t *testing.T) {
	holidays := generic.NewHolidaySet([]generic.Holiday{
		{ID: "h1", Date: d("2025-06-04"), Name: "Midweek holiday"},
		{ID: "h2", Date: d("2020-06-19"), Name: "Founders day", Recurring: true},
	})

	tests := []struct {
		name       string
		start, end string
		sh, eh     leave.HalfDayType
		want       string
	}{
		{"single full day", "2025-06-02", "2025-06-02", leave.FullDay, leave.FullDay, "1"},
		{"single day both halves", "2025-06-02", "2025-06-02", leave.FirstHalf, leave.SecondHalf, "1"},
		{"single morning", "2025-06-02", "2025-06-02", leave.FirstHalf, leave.FirstHalf, "0.5"},
		{"single afternoon", "2025-06-02", "2025-06-02", leave.SecondHalf, leave.SecondHalf, "0.5"},
		{"single inverted halves", "2025-06-02", "2025-06-02", leave.SecondHalf, leave.FirstHalf, "0"},
		{"single saturday", "2025-06-07", "2025-06-07", leave.FullDay, leave.FullDay, "0"},
		{"single holiday", "2025-06-04", "2025-06-04", leave.FullDay, leave.FullDay, "0"},
		{"recurring holiday", "2025-06-19", "2025-06-19", leave.FullDay, leave.FullDay, "0"},
		{"week with holiday", "2025-06-02", "2025-06-06", leave.FullDay, leave.FullDay, "4"},
		{"half boundaries", "2025-06-02", "2025-06-03", leave.SecondHalf, leave.FirstHalf, "1"},
		{"spanning weekend", "2025-06-05", "2025-06-09", leave.FullDay, leave.FullDay, "3"},
		{"friday pm to monday am", "2025-06-06", "2025-06-09", leave.SecondHalf, leave.FirstHalf, "1"},
		{"half flag on weekend boundary ignored", "2025-06-07", "2025-06-09", leave.SecondHalf, leave.FullDay, "1"},
		{"weekend only", "2025-06-07", "2025-06-08", leave.FullDay, leave.FullDay, "0"},
		{"end before start", "2025-06-06", "2025-06-02", leave.FullDay, leave.FullDay, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := leave.CalculateDuration(d(tt.start), d(tt.end), tt.sh, tt.eh, holidays)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCalculateDuration_ClearWeekMatchesDayCount(t *testing.T) {
	halves := []leave.HalfDayType{leave.FullDay, leave.FirstHalf, leave.SecondHalf}
	monday := d("2025-06-02")

	// Ranges of 2..5 days inside one Monday-Friday week, no holidays.
	for length := 2; length <= 5; length++ {
		for offset := 0; offset+length <= 5; offset++ {
			start := monday.AddDays(offset)
			end := start.AddDays(length - 1)
			for _, sh := range halves {
				for _, eh := range halves {
					want := decimal.NewFromInt(int64(length))
					if sh == leave.SecondHalf {
						want = want.Sub(dec("0.5"))
					}
					if eh == leave.FirstHalf {
						want = want.Sub(dec("0.5"))
					}
					got := leave.CalculateDuration(start, end, sh, eh, nil)
					assert.True(t, got.Equal(want), "%s..%s %s/%s: got %s want %s", start, end, sh, eh, got, want)

					again := leave.CalculateDuration(start, end, sh, eh, nil)
					assert.True(t, got.Equal(again))
					assert.False(t, got.IsNegative())
				}
			}
		}
	}
}

func TestCalculateDuration_IgnoresTimeOfDay(t *testing.T) {
	start := generic.TimePoint{Time: time.Date(2025, 6, 2, 18, 30, 0, 0, time.UTC)}
	end := generic.TimePoint{Time: time.Date(2025, 6, 3, 1, 0, 0, 0, time.UTC)}
	got := leave.CalculateDuration(start, end, leave.FullDay, leave.FullDay, nil)
	assert.True(t, got.Equal(decimal.NewFromInt(2)), "got %s", got)
}

func TestValidateHalfDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		sh, eh     leave.HalfDayType
		wantErr    bool
	}{
		{"full single", "2026-01-01", "2026-01-01", leave.FullDay, leave.FullDay, false},
		{"morning single", "2026-01-01", "2026-01-01", leave.FirstHalf, leave.FirstHalf, false},
		{"first to second single", "2026-01-01", "2026-01-01", leave.FirstHalf, leave.SecondHalf, false},
		{"second to first single", "2026-01-01", "2026-01-01", leave.SecondHalf, leave.FirstHalf, true},
		{"full mixed with half", "2026-01-01", "2026-01-01", leave.FullDay, leave.FirstHalf, true},
		{"second to first multi day", "2026-01-01", "2026-01-02", leave.SecondHalf, leave.FirstHalf, false},
		{"unknown type", "2026-01-01", "2026-01-02", leave.HalfDayType("Evening"), leave.FullDay, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := leave.ValidateHalfDays(d(tt.start), d(tt.end), tt.sh, tt.eh)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *leave.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, leave.CodeInvalidHalfDay, ve.Code)
		})
	}
}

func TestValidateHalfDays_ScenarioD(t *testing.T) {
	// GIVEN Jan 1 SecondHalf to Jan 1 FirstHalf
	err := leave.ValidateHalfDays(d("2026-01-01"), d("2026-01-01"), leave.SecondHalf, leave.FirstHalf)

	// THEN it is rejected as logically impossible
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logically impossible")
}
