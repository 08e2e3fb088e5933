package pin

import (
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeDropsOtherVariantFields(t *testing.T) {
	w := Window{Kind: KindTemporary, StartDate: "2026-01-01", EndDate: "2026-02-01", Date: "2026-03-01", StartTime: "09:00", EndTime: "17:00"}
	got := w.Normalize()
	if got.StartDate != "" || got.EndDate != "" {
		t.Fatalf("expected scheduled fields dropped, got %+v", got)
	}
	if got.Date != "2026-03-01" || got.StartTime != "09:00" {
		t.Fatalf("expected temporary fields kept, got %+v", got)
	}

	if p := (Window{Kind: KindPermanent, Date: "2026-03-01"}).Normalize(); p != Permanent() {
		t.Fatalf("expected bare permanent window, got %+v", p)
	}
}

func TestValidate_Window(t *testing.T) {
	tests := []struct {
		name    string
		window  Window
		wantErr bool
	}{
		{"permanent", Permanent(), false},
		{"scheduled ordered", Window{Kind: KindScheduled, StartDate: "2026-01-01", EndDate: "2026-01-31"}, false},
		{"scheduled same day", Window{Kind: KindScheduled, StartDate: "2026-01-01", EndDate: "2026-01-01"}, false},
		{"scheduled reversed", Window{Kind: KindScheduled, StartDate: "2026-02-01", EndDate: "2026-01-01"}, true},
		{"scheduled open ended", Window{Kind: KindScheduled, StartDate: "2026-02-01"}, false},
		{"scheduled overnight", Window{Kind: KindScheduled, StartTime: "22:00", EndTime: "06:00"}, false},
		{"temporary without date", Window{Kind: KindTemporary}, true},
		{"temporary bad date", Window{Kind: KindTemporary, Date: "01/02/2026"}, true},
		{"half time range", Window{Kind: KindTemporary, Date: "2026-01-02", StartTime: "09:00"}, true},
		{"bad clock", Window{Kind: KindTemporary, Date: "2026-01-02", StartTime: "9:00", EndTime: "10:00"}, true},
		{"unknown kind", Window{Kind: "weekly"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActiveAt(t *testing.T) {
	e := NewEvaluator(time.UTC)

	scheduled := Window{Kind: KindScheduled, StartDate: "2026-01-01", EndDate: "2026-01-31", StartTime: "09:00", EndTime: "17:00"}
	if !e.ActiveAt(scheduled, at("2026-01-15 12:00")) {
		t.Fatalf("expected scheduled window active mid-day")
	}
	if e.ActiveAt(scheduled, at("2026-01-15 18:00")) {
		t.Fatalf("expected scheduled window inactive after hours")
	}
	if e.ActiveAt(scheduled, at("2026-02-01 12:00")) {
		t.Fatalf("expected scheduled window inactive after end date")
	}

	overnight := Window{Kind: KindTemporary, Date: "2026-03-10", StartTime: "22:00", EndTime: "06:00"}
	if !e.ActiveAt(overnight, at("2026-03-10 23:30")) {
		t.Fatalf("expected overnight window active before midnight")
	}
	if !e.ActiveAt(overnight, at("2026-03-11 05:00")) {
		t.Fatalf("expected overnight window active after midnight")
	}
	if e.ActiveAt(overnight, at("2026-03-10 05:00")) {
		t.Fatalf("expected overnight window inactive the morning before")
	}

	if !e.ActiveAt(Permanent(), at("1999-01-01 00:00")) {
		t.Fatalf("expected permanent window always active")
	}
	if e.ActiveAt(Window{Kind: KindTemporary}, at("2026-03-10 12:00")) {
		t.Fatalf("expected invalid window inactive")
	}
}
