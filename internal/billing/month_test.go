package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestMonthOfIgnoresDayAndZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	early := time.Date(2024, time.March, 1, 0, 30, 0, 0, ist)
	late := time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, Month{Year: 2024, Index: 2}, MonthOf(late))
	// 00:30 IST on March 1st is still February in UTC.
	assert.Equal(t, Month{Year: 2024, Index: 1}, MonthOf(early))
}

func TestMonthNextRollsYear(t *testing.T) {
	assert.Equal(t, Month{Year: 2024, Index: 6}, Month{Year: 2024, Index: 5}.Next())
	assert.Equal(t, Month{Year: 2025, Index: 0}, Month{Year: 2024, Index: 11}.Next())
}

func TestMonthOrdering(t *testing.T) {
	jan := Month{Year: 2024, Index: 0}
	dec23 := Month{Year: 2023, Index: 11}

	assert.True(t, dec23.Before(jan))
	assert.True(t, jan.After(dec23))
	assert.False(t, jan.Before(jan))
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "January 2024", Month{Year: 2024, Index: 0}.Label())
	assert.Equal(t, "December 2025", Month{Year: 2025, Index: 11}.Label())
}

func TestMonthsSince(t *testing.T) {
	cases := []struct {
		name      string
		admission time.Time
		asOf      time.Time
		want      int
	}{
		{"same month", date(2024, time.June, 15), date(2024, time.June, 1), 1},
		{"six months inclusive", date(2024, time.January, 10), date(2024, time.June, 20), 6},
		{"across year boundary", date(2023, time.November, 1), date(2024, time.February, 28), 4},
		{"future admission", date(2024, time.September, 1), date(2024, time.June, 1), 0},
		{"day of month irrelevant", date(2024, time.January, 31), date(2024, time.February, 1), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MonthsSince(tc.admission, tc.asOf))
		})
	}
}
