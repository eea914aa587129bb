package feeyear

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func TestCompute(t *testing.T) {
	t.Run("anniversary anchored window", func(t *testing.T) {
		// 激活日 2024-03-10，2025 年度窗口是 [2024-03-10, 2025-03-09]
		activation := date(2024, time.March, 10)
		win := Compute(&activation, 2025)

		assert.Equal(t, date(2024, time.March, 10), win.Start)
		assert.Equal(t, date(2025, time.March, 9), win.End)
	})

	t.Run("calendar year fallback without activation", func(t *testing.T) {
		win := Compute(nil, 2025)

		assert.Equal(t, date(2025, time.January, 1), win.Start)
		assert.Equal(t, date(2025, time.December, 31), win.End)
	})

	t.Run("leap day activation rolls to march 1st off leap years", func(t *testing.T) {
		activation := date(2024, time.February, 29)
		win := Compute(&activation, 2025)

		assert.Equal(t, date(2024, time.March, 1), win.Start)
		assert.Equal(t, date(2025, time.February, 28), win.End)
	})

	t.Run("consecutive windows do not overlap", func(t *testing.T) {
		activation := date(2024, time.March, 10)
		win2025 := Compute(&activation, 2025)
		win2026 := Compute(&activation, 2026)

		assert.Equal(t, win2025.End.AddDate(0, 0, 1), win2026.Start)
	})
}

func TestWindowContains(t *testing.T) {
	activation := date(2024, time.March, 10)
	win := Compute(&activation, 2025)

	assert.True(t, win.Contains(date(2024, time.March, 10)), "窗口首日含在内")
	assert.True(t, win.Contains(date(2025, time.March, 9)), "窗口末日含在内")
	assert.True(t, win.Contains(time.Date(2025, time.March, 9, 23, 59, 59, 0, time.Local)), "末日任意时刻都算在内")
	assert.False(t, win.Contains(date(2024, time.March, 9)))
	assert.False(t, win.Contains(date(2025, time.March, 10)))
}

func TestDueDate(t *testing.T) {
	activation := date(2024, time.March, 10)
	assert.Equal(t, date(2025, time.March, 10), DueDate(&activation, 2025))
	assert.Equal(t, date(2026, time.March, 10), DueDate(&activation, 2026))
	assert.Equal(t, date(2025, time.December, 31), DueDate(nil, 2025))
}

func TestFirstFeeYear(t *testing.T) {
	activation := date(2024, time.March, 10)
	assert.Equal(t, 2025, FirstFeeYear(&activation))
}

func TestYearContaining(t *testing.T) {
	activation := date(2024, time.March, 10)

	tests := []struct {
		name       string
		occurredAt time.Time
		want       int
	}{
		{"周年日之后属于次年结束的窗口", date(2024, time.June, 1), 2025},
		{"周年日当天开启新窗口", date(2025, time.March, 10), 2026},
		{"周年日前一天属于当年结束的窗口", date(2025, time.March, 9), 2025},
		{"激活日当天属于第一个窗口", date(2024, time.March, 10), 2025},
		{"激活日之前的交易收敛到第一个年度", date(2024, time.February, 1), 2025},
		{"激活前一年的交易同样收敛", date(2023, time.June, 1), 2025},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearContaining(&activation, tt.occurredAt))
		})
	}

	t.Run("no activation falls back to calendar year", func(t *testing.T) {
		assert.Equal(t, 2025, YearContaining(nil, date(2025, time.June, 15)))
	})

	t.Run("consistent with Compute", func(t *testing.T) {
		// YearContaining 给出的年度，其窗口必须真的包含该时间点
		for _, occurredAt := range []time.Time{
			date(2024, time.March, 10),
			date(2024, time.December, 31),
			date(2025, time.March, 9),
			date(2025, time.March, 10),
		} {
			feeYear := YearContaining(&activation, occurredAt)
			win := Compute(&activation, feeYear)
			assert.True(t, win.Contains(occurredAt), "occurredAt=%s feeYear=%d", occurredAt, feeYear)
		}
	})
}
