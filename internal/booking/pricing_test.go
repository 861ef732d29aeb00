package booking

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}

	return &t
}

func price(id int64, amount int64, from, to *time.Time, isDefault bool) *SlotPrice {
	//nolint:exhaustruct
	return &SlotPrice{
		ID:        id,
		TimeSlot:  SlotEvening,
		DayOfWeek: time.Monday,
		Price:     decimal.NewFromInt(amount),
		ValidFrom: from,
		ValidTo:   to,
		IsDefault: isDefault,
	}
}

func TestSlotPrice_Covers(t *testing.T) {
	p := price(1, 100, day("2024-12-01"), day("2024-12-31"), false)

	assert.True(t, p.Covers(*day("2024-12-01")))
	assert.True(t, p.Covers(day("2024-12-31").Add(23*time.Hour)))
	assert.False(t, p.Covers(*day("2024-11-30")))
	assert.False(t, p.Covers(*day("2025-01-01")))

	openEnded := price(2, 100, day("2024-12-01"), nil, false)
	assert.True(t, openEnded.Covers(*day("2030-01-01")))
	assert.False(t, openEnded.Covers(*day("2024-11-01")))
}

func TestSelectSlotPrice(t *testing.T) {
	tests := []struct {
		name   string
		prices []*SlotPrice
		date   string
		wantID int64
		wantOK bool
	}{
		{
			name:   "no rows",
			date:   "2024-12-02",
			wantOK: false,
		},
		{
			name:   "default only",
			prices: []*SlotPrice{price(1, 1000, nil, nil, true)},
			date:   "2024-12-02",
			wantID: 1,
			wantOK: true,
		},
		{
			name: "override inside window",
			prices: []*SlotPrice{
				price(1, 1000, nil, nil, true),
				price(2, 1200, day("2024-12-01"), day("2024-12-31"), false),
			},
			date:   "2024-12-16",
			wantID: 2,
			wantOK: true,
		},
		{
			name: "override outside window falls back to default",
			prices: []*SlotPrice{
				price(1, 1000, nil, nil, true),
				price(2, 1200, day("2024-12-01"), day("2024-12-31"), false),
			},
			date:   "2025-01-06",
			wantID: 1,
			wantOK: true,
		},
		{
			name: "narrowest override wins",
			prices: []*SlotPrice{
				price(5, 1500, day("2024-12-01"), day("2024-12-31"), false),
				price(3, 1800, day("2024-12-20"), day("2024-12-27"), false),
			},
			date:   "2024-12-23",
			wantID: 3,
			wantOK: true,
		},
		{
			name: "bounded override beats open ended one",
			prices: []*SlotPrice{
				price(9, 1500, day("2024-01-01"), nil, false),
				price(4, 1800, day("2024-12-01"), day("2025-06-30"), false),
			},
			date:   "2024-12-23",
			wantID: 4,
			wantOK: true,
		},
		{
			name: "equal windows resolved by newest row",
			prices: []*SlotPrice{
				price(6, 1500, day("2024-12-01"), day("2024-12-31"), false),
				price(8, 1600, day("2024-12-01"), day("2024-12-31"), false),
				price(7, 1700, day("2024-12-01"), day("2024-12-31"), false),
			},
			date:   "2024-12-09",
			wantID: 8,
			wantOK: true,
		},
		{
			name: "centuries long windows still compared by length",
			prices: []*SlotPrice{
				price(1, 1500, day("1800-01-01"), day("2400-12-31"), false),
				price(2, 1800, day("1000-01-01"), day("3000-12-31"), false),
			},
			date:   "2024-12-09",
			wantID: 1,
			wantOK: true,
		},
		{
			name: "newest default wins",
			prices: []*SlotPrice{
				price(2, 1000, nil, nil, true),
				price(10, 1100, nil, nil, true),
			},
			date:   "2024-12-09",
			wantID: 10,
			wantOK: true,
		},
		{
			name: "default with expired window is skipped",
			prices: []*SlotPrice{
				price(2, 1000, nil, nil, true),
				price(10, 1100, nil, day("2024-06-30"), true),
			},
			date:   "2024-12-09",
			wantID: 2,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectSlotPrice(tt.prices, *day(tt.date))
			require.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestSlotPrice_WindowDays(t *testing.T) {
	assert.Equal(t, int64(1), price(1, 0, day("2024-12-01"), day("2024-12-01"), false).windowDays())
	assert.Equal(t, int64(31), price(1, 0, day("2024-12-01"), day("2024-12-31"), false).windowDays())
	assert.Equal(t, int64(219511), price(1, 0, day("1800-01-01"), day("2400-12-31"), false).windowDays())
	assert.Equal(t, int64(math.MaxInt64), price(1, 0, day("2024-12-01"), nil, false).windowDays())
}
