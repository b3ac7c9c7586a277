package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Colony/internal/domain"
)

func TestCalculateNextDue_CronExpression(t *testing.T) {
	// === Arrange ===
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *", // каждый день в 03:00
	}
	from := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// === Act ===
	next, err := CalculateNextDue(sched, from)

	// === Assert ===
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 16, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next due %v, got %v", want, next)
	}
}

func TestCalculateNextDue_CronEveryFiveMinutes(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "*/5 * * * *",
	}
	from := time.Date(2025, 6, 15, 12, 3, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 6, 15, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next due %v, got %v", want, next)
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 900, // 15 минут
	}
	from := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := from.Add(15 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected next due %v, got %v", want, next)
	}
}

func TestCalculateNextDue_CronTakesPrecedenceOverInterval(t *testing.T) {
	// Если заданы оба, cron выигрывает
	sched := &domain.Schedule{
		CronExpr:    "0 * * * *",
		IntervalSec: 60,
	}
	from := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected cron-based next due %v, got %v", want, next)
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{}

	_, err := CalculateNextDue(sched, time.Now())
	if err == nil {
		t.Fatal("expected error for schedule without cron_expr and interval_sec")
	}
}

func TestCalculateNextDue_InvalidCronExpression(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "not a cron",
	}

	_, err := CalculateNextDue(sched, time.Now())
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if !strings.Contains(err.Error(), "parse cron expression") {
		t.Errorf("expected parse error, got: %v", err)
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *", wantErr: false},
		{name: "daily at three", expr: "0 3 * * *", wantErr: false},
		{name: "every five minutes", expr: "*/5 * * * *", wantErr: false},
		{name: "weekdays at nine", expr: "0 9 * * 1-5", wantErr: false},
		{name: "too few fields", expr: "* * *", wantErr: true},
		{name: "seconds field not supported", expr: "0 0 3 * * *", wantErr: true},
		{name: "garbage", expr: "hello world", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.expr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.expr, err)
			}
		})
	}
}
