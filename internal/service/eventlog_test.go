package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/repository"
)

// fakeEventRepo is a minimal stub that satisfies the repository.EventRepo interface.
type fakeEventRepo struct {
	got repository.EventFilter

	events  []models.ArchivedEvent
	err     error
	appends []models.ArchivedEvent

	calls int
}

func (f *fakeEventRepo) List(_ context.Context, rf repository.EventFilter) ([]models.ArchivedEvent, error) {
	f.calls++
	f.got = rf
	return f.events, f.err
}

func (f *fakeEventRepo) Append(_ context.Context, e models.ArchivedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.appends = append(f.appends, e)
	return nil
}

type fakeRelayRepo struct {
	saved []models.ActuatorState
	err   error
}

func (f *fakeRelayRepo) Save(_ context.Context, s models.ActuatorState) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeRelayRepo) List(context.Context) ([]models.ActuatorState, error) {
	return f.saved, f.err
}

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want func(time.Time) bool
	}{
		{
			name: "zero time remains zero",
			in:   time.Time{},
			want: func(out time.Time) bool { return out.IsZero() },
		},
		{
			name: "non-UTC converted to UTC preserving instant",
			in:   mustTimeIn(time.FixedZone("UTC+3", 3*3600), 2025, time.August, 1, 12, 34, 56),
			want: func(out time.Time) bool {
				exp := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeToUTC(tc.in)
			if !tc.want(got) {
				t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
			}
		})
	}
}

func Test_normalizeEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		exp  string
	}{
		{name: "empty stays empty", in: "", exp: ""},
		{name: "trim spaces", in: "  sensor_update ", exp: "sensor_update"},
		{name: "lowercase", in: "DETECTION_FAILED", exp: "detection_failed"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeEventType(c.in); got != c.exp {
				t.Fatalf("normalizeEventType(%q) = %q; want %q", c.in, got, c.exp)
			}
		})
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	fromLocal := mustTimeIn(time.FixedZone("UTC+2", 2*3600), 2025, time.September, 10, 10, 0, 0)
	toUTC := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      LogFilter
		want    repository.EventFilter
		wantErr error
	}{
		{
			name: "zero filter gets default limit",
			in:   LogFilter{},
			want: repository.EventFilter{Limit: defaultLogLimit},
		},
		{
			name: "from after to",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name:    "negative limit",
			in:      LogFilter{Limit: -1},
			wantErr: errInvalidLimit,
		},
		{
			name: "limit is capped",
			in:   LogFilter{Limit: maxLogLimit * 2},
			want: repository.EventFilter{Limit: maxLogLimit},
		},
		{
			name: "normalize tz and type",
			in:   LogFilter{From: fromLocal, To: toUTC, Type: " Actuator_Changed ", Limit: 20},
			want: repository.EventFilter{
				From:  time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
				To:    toUTC,
				Type:  "actuator_changed",
				Limit: 20,
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeAndValidateFilter(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if !got.From.Equal(tc.want.From) || !got.To.Equal(tc.want.To) {
				t.Fatalf("range: got [%v, %v]; want [%v, %v]", got.From, got.To, tc.want.From, tc.want.To)
			}
			if got.Type != tc.want.Type || got.Limit != tc.want.Limit {
				t.Fatalf("got type=%q limit=%d; want type=%q limit=%d", got.Type, got.Limit, tc.want.Type, tc.want.Limit)
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{events: []models.ArchivedEvent{{EventID: "1"}}}
	svc := NewEventLogService(frepo, &fakeRelayRepo{})

	fromLocal := mustTimeIn(time.FixedZone("UTC+5", 5*3600), 2025, time.October, 1, 10, 0, 0)
	out, err := svc.List(context.Background(), LogFilter{From: fromLocal, Type: "SENSOR_UPDATE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if frepo.calls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.calls)
	}
	if want := time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC); !frepo.got.From.Equal(want) {
		t.Fatalf("repo got From=%v; want %v", frepo.got.From, want)
	}
	if frepo.got.Type != models.EventSensorUpdate {
		t.Fatalf("repo got Type=%q", frepo.got.Type)
	}
}

func TestEventLogService_List_ValidationErrorSkipsRepo(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo, &fakeRelayRepo{})

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo, &fakeRelayRepo{})

	_, err := svc.List(context.Background(), LogFilter{})
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
	if IsValidationError(err) {
		t.Fatalf("repo error must not look like a validation error")
	}
}

func TestEventLogService_RelayStates(t *testing.T) {
	t.Parallel()

	relays := &fakeRelayRepo{saved: []models.ActuatorState{{RelayID: "pump", Active: true}}}
	svc := NewEventLogService(&fakeEventRepo{}, relays)

	got, err := svc.RelayStates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].RelayID != "pump" || !got[0].Active {
		t.Fatalf("unexpected relay states: %+v", got)
	}
}
