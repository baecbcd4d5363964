package uptrends

import (
	"errors"
	"testing"
	"time"
)

func TestScheduleConstructors(t *testing.T) {
	tests := []struct {
		name      string
		schedule  Schedule
		wantKind  string
		recurring bool
		wantErr   bool
	}{
		{"cron", Cron("*/15 * * * *"), "cron", true, false},
		{"cron descriptor", Cron("@hourly"), "cron", true, false},
		{"cron with zone", Cron("0 9 * * * Europe/Amsterdam"), "cron", true, false},
		{"cron invalid", Cron("61 * * * *"), "", false, true},
		{"every", Every(time.Minute), "every", true, false},
		{"every zero", Every(0), "", false, true},
		{"at", At(time.Now().Add(time.Hour)), "at", false, false},
		{"in", In(5 * time.Second), "in", false, false},
		{"in negative", In(-time.Second), "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.valid()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("valid() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("valid() error = %v", err)
			}
			if got := tt.schedule.Kind(); got != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", got, tt.wantKind)
			}
			if got := tt.schedule.Recurring(); got != tt.recurring {
				t.Errorf("Recurring() = %v, want %v", got, tt.recurring)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		want    string
		wantErr bool
	}{
		{"cron", map[string]string{"cron": "0 * * * *"}, "cron 0 * * * *", false},
		{"every with days", map[string]string{"every": "1d"}, "every 1d", false},
		{"in", map[string]string{"in": "30s"}, "in 30s", false},
		{"at", map[string]string{"at": "2030-01-02 03:04:05"}, "at 2030-01-02 03:04:05", false},
		{"empty", map[string]string{}, "", true},
		{"two keys", map[string]string{"every": "1m", "in": "1m"}, "", true},
		{"unknown key", map[string]string{"sometimes": "1m"}, "", true},
		{"bad duration", map[string]string{"every": "often"}, "", true},
		{"bad time", map[string]string{"at": "tomorrow"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("ParseSchedule() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule() error = %v", err)
			}
			if s.String() != tt.want {
				t.Errorf("String() = %q, want %q", s.String(), tt.want)
			}
		})
	}
}

func TestSchedule_ZeroValueIsInvalid(t *testing.T) {
	var s Schedule
	if err := s.valid(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("valid() error = %v, want ErrInvalidConfig", err)
	}
}
