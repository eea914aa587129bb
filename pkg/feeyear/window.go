package feeyear

import (
	"time"
)

// ============================================================================
// 年费窗口计算
// ============================================================================
//
// 年费年度以卡片激活日的周年日为锚点，而不是自然年：
//
//	激活日 2024-03-10 的卡片，2025 年度的评估窗口是
//	[2024-03-10, 2025-03-09]，到期日是 2025-03-10
//
// 即"fee_year 年度"的窗口，是在 fee_year 年内的那个周年日往前推 12 个月、
// 到周年日前一天为止的区间。卡片没有激活日期时退化为 fee_year 的自然年。
//
// ============================================================================

// Window 年费评估窗口，[Start, End] 闭区间，精确到日
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains 判断时间点是否落在窗口内（按日比较）
func (w Window) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return !day.Before(w.Start) && !day.After(w.End)
}

// anniversaryIn 计算激活日在指定年份内的周年日
// 使用 time.Date 的日期规范化处理 2 月 29 日：非闰年顺延到 3 月 1 日
func anniversaryIn(activation time.Time, year int) time.Time {
	return time.Date(year, activation.Month(), activation.Day(), 0, 0, 0, 0, activation.Location())
}

// Compute 计算 feeYear 年度的评估窗口
// activation 为空时按自然年 [1月1日, 12月31日] 计算
func Compute(activation *time.Time, feeYear int) Window {
	if activation == nil {
		return Window{
			Start: time.Date(feeYear, time.January, 1, 0, 0, 0, 0, time.Local),
			End:   time.Date(feeYear, time.December, 31, 0, 0, 0, 0, time.Local),
		}
	}
	anniv := anniversaryIn(*activation, feeYear)
	return Window{
		Start: anniv.AddDate(-1, 0, 0),
		End:   anniv.AddDate(0, 0, -1),
	}
}

// DueDate 计算 feeYear 年度的年费到期日
// 有激活日期时是 feeYear 年内的周年日，否则是自然年最后一天
func DueDate(activation *time.Time, feeYear int) time.Time {
	if activation == nil {
		return time.Date(feeYear, time.December, 31, 0, 0, 0, 0, time.Local)
	}
	return anniversaryIn(*activation, feeYear)
}

// FirstFeeYear 卡片的第一个年费年度
// 第一个完整窗口从激活日起算，对应的周年日在激活次年
func FirstFeeYear(activation *time.Time) int {
	if activation == nil {
		return time.Now().Year()
	}
	return activation.Year() + 1
}

// YearContaining 计算交易时间 occurredAt 落入的年费年度
// 窗口首尾相接不重叠，任一时间点恰好属于一个年度；
// 激活日之前的时间点不属于任何历史窗口，统一收敛到第一个年费年度
func YearContaining(activation *time.Time, occurredAt time.Time) int {
	if activation == nil {
		return occurredAt.Year()
	}
	// 先猜当年的周年日：交易在周年日之前，属于当年结束的窗口；
	// 在周年日当天或之后，属于次年结束的窗口
	anniv := anniversaryIn(*activation, occurredAt.Year())
	year := occurredAt.Year()
	if !occurredAt.Before(anniv) {
		year++
	}
	if first := FirstFeeYear(activation); year < first {
		return first
	}
	return year
}
