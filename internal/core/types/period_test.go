package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod_DaysInMonth(t *testing.T) {
	tests := []struct {
		month, year, want int
	}{
		{1, 2023, 31},
		{2, 2023, 28},
		{2, 2024, 29},
		{2, 1900, 28},
		{2, 2000, 29},
		{4, 2024, 30},
		{12, 2024, 31},
	}
	for _, tt := range tests {
		p := Period{Month: tt.month, Year: tt.year}
		assert.Equal(t, tt.want, p.DaysInMonth(), p.String())
	}
}

func TestPeriod_DueDate(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		want   time.Time
	}{
		{"march", Period{3, 2024}, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)},
		{"december rolls over", Period{12, 2024}, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"january", Period{1, 2025}, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.period.DueDate())
		})
	}
}

func TestPeriod_Valid(t *testing.T) {
	assert.True(t, Period{1, 2024}.Valid())
	assert.True(t, Period{1, 2000}.Valid())
	assert.False(t, Period{12, 1999}.Valid())
	assert.False(t, Period{0, 2024}.Valid())
	assert.False(t, Period{13, 2024}.Valid())
	assert.False(t, Period{5, 0}.Valid())
	assert.False(t, Period{5, 10000}.Valid())
}

func TestPeriod_NavigationAndContains(t *testing.T) {
	p := Period{1, 2024}

	assert.Equal(t, Period{12, 2023}, p.Previous())
	assert.Equal(t, Period{2, 2024}, p.Next())
	assert.True(t, p.Contains(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	require.NoError(t, err)
	assert.Equal(t, Period{3, 2024}, p)
	assert.Equal(t, "2024-03", p.String())

	_, err = ParsePeriod("2024-13")
	assert.Error(t, err)
	_, err = ParsePeriod("march")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	due := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(due, time.Date(2024, 4, 11, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysBetween(due, due.Add(5*time.Hour)))
	assert.Equal(t, 21, DaysBetween(due, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, DaysBetween(due, due.AddDate(0, 0, -1)))
}

func TestAmount_RoundsToMoneyScaleWithProjection(t *testing.T) {
	got := Amount(MustDecimal("93.5"), MustDecimal("1.333"))
	assert.Equal(t, "124.64", got.StringFixed(MoneyScale))

	proj := ProjectedQuantity(31, MustDecimal("2"))
	assert.True(t, proj.Equal(MustDecimal("62")))
}
