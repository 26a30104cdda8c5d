package repository

import "testing"

func TestQuotaStatus(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		s := QuotaStatus(0, 0, 40, 900)
		if s.DailyRemaining != -1 || s.MonthlyRemaining != -1 {
			t.Errorf("expected -1 remaining for unlimited, got %+v", s)
		}
		if s.DailyPercent != 0 || s.MonthlyPercent != 0 {
			t.Errorf("expected 0 percent for unlimited, got %+v", s)
		}
	})

	t.Run("partially used", func(t *testing.T) {
		s := QuotaStatus(100, 1000, 25, 500)
		if s.DailyRemaining != 75 || s.DailyPercent != 25 {
			t.Errorf("unexpected daily quota %+v", s)
		}
		if s.MonthlyRemaining != 500 || s.MonthlyPercent != 50 {
			t.Errorf("unexpected monthly quota %+v", s)
		}
	})

	t.Run("over limit clamps", func(t *testing.T) {
		s := QuotaStatus(10, 0, 15, 15)
		if s.DailyRemaining != 0 || s.DailyPercent != 100 {
			t.Errorf("expected clamped daily quota, got %+v", s)
		}
	})
}
