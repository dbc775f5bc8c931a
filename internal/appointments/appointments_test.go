package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
)

var (
	testNow   = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

var columns = []string{"id", "session_id", "provider_id", "starts_at", "ends_at", "channel", "reason", "status", "meta", "created_at"}

func sampleAppointment(id string, created time.Time) Appointment {
	return Appointment{
		ID:         id,
		SessionID:  "sess-1",
		ProviderID: "dr-amara-hale",
		Start:      testStart,
		End:        testStart.Add(30 * time.Minute),
		Channel:    catalog.ChannelVirtual,
		Reason:     "palpitations",
		Status:     agent.StatusConfirmed,
		Meta:       map[string]string{"Held by": "Scheduling"},
		CreatedAt:  created,
	}
}

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)

	appt := sampleAppointment("a1", testNow)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("a1", "sess-1", "dr-amara-hale", appt.Start, appt.End, "Virtual", "palpitations", "Confirmed", []byte(`{"Held by":"Scheduling"}`), testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "appointment:a1", "appointment.confirmed.v1", pgxmock.AnyArg(), testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Create(context.Background(), appt))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()
	err = repo.Create(context.Background(), sampleAppointment("a1", testNow))
	assert.ErrorContains(t, err, "appointments: insert")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnError(errors.New("relation \"outbox\" does not exist"))
	mock.ExpectRollback()
	err = repo.Create(context.Background(), sampleAppointment("a2", testNow))
	assert.ErrorContains(t, err, "events: append")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()
	err = repo.Create(context.Background(), sampleAppointment("a1", testNow))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))
	err = repo.Create(context.Background(), sampleAppointment("a3", testNow))
	assert.ErrorContains(t, err, "appointments: begin")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)

	end := testStart.Add(30 * time.Minute)
	mock.ExpectQuery("FROM appointments WHERE id =").WithArgs("a1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			"a1", "sess-1", "dr-amara-hale", testStart, end, "Virtual", "palpitations", "Confirmed", []byte(`{"Held by":"Scheduling"}`), testNow,
		))
	got, err := repo.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, sampleAppointment("a1", testNow), got)

	mock.ExpectQuery("FROM appointments WHERE id =").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)

	end := testStart.Add(30 * time.Minute)
	mock.ExpectQuery("FROM appointments").WithArgs("sess-1", DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("a2", "sess-1", "dr-amara-hale", testStart, end, "Virtual", "palpitations", "Confirmed", []byte(`{}`), testNow.Add(time.Minute)).
			AddRow("a1", "sess-1", "dr-amara-hale", testStart, end, "Virtual", "palpitations", "Confirmed", []byte(`{}`), testNow))
	got, err := repo.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].ID)
	assert.Empty(t, got[1].Meta)

	mock.ExpectQuery("FROM appointments").WithArgs("", 5).WillReturnError(errors.New("connection reset"))
	_, err = repo.List(context.Background(), "", 5)
	assert.ErrorContains(t, err, "appointments: list")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryCountUpcoming(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithQuerier(mock)

	mock.ExpectQuery("SELECT count").WithArgs("sess-1", testNow).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(150))
	n, err := repo.CountUpcoming(context.Background(), "sess-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	mock.ExpectQuery("SELECT count").WithArgs("sess-1", testNow).WillReturnError(errors.New("connection reset"))
	_, err = repo.CountUpcoming(context.Background(), "sess-1", testNow)
	assert.ErrorContains(t, err, "appointments: count upcoming")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleAppointment("a1", testNow)))
	require.NoError(t, repo.Create(ctx, sampleAppointment("a2", testNow.Add(time.Minute))))
	other := sampleAppointment("b1", testNow.Add(2*time.Minute))
	other.SessionID = "sess-2"
	require.NoError(t, repo.Create(ctx, other))
	assert.ErrorIs(t, repo.Create(ctx, sampleAppointment("a1", testNow)), ErrAlreadyExists)

	n, err := repo.CountUpcoming(ctx, "sess-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = repo.CountUpcoming(ctx, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = repo.CountUpcoming(ctx, "sess-1", testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := repo.List(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "a1", list[1].ID)

	all, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b1", all[0].ID)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	got.Meta["Held by"] = "mutated"
	again, _ := repo.Get(ctx, "a1")
	assert.Equal(t, "Scheduling", again.Meta["Held by"])

	_, err = repo.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingRepo struct{ *MemoryRepository }

func (failingRepo) Create(context.Context, Appointment) error { return errors.New("disk full") }

func TestServiceConfirm(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return testNow }
	svc.newID = func(string, *agent.DraftAppointment) string { return "9b2f6c1e-0000-4000-8000-000000000001" }

	draft := &agent.DraftAppointment{
		ProviderID: "dr-amara-hale",
		Start:      testStart,
		End:        testStart.Add(30 * time.Minute),
		Channel:    catalog.ChannelVirtual,
		Reason:     "palpitations",
		Status:     agent.StatusPending,
		Meta:       map[string]string{"Held by": "Scheduling"},
	}
	appt, err := svc.Confirm(context.Background(), "sess-1", draft)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusConfirmed, appt.Status)
	assert.Equal(t, "9b2f6c1e-0000-4000-8000-000000000001", appt.ID)
	assert.Equal(t, agent.StatusPending, draft.Status)

	timeline, err := svc.Timeline(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	assert.Equal(t, []Appointment{appt}, timeline)

	n, err := svc.CountUpcoming(context.Background(), "sess-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.CountUpcoming(context.Background(), "sess-1", testStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Confirm(context.Background(), "sess-1", nil)
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestServiceConfirmIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return testNow }
	draft := &agent.DraftAppointment{
		ProviderID: "dr-amara-hale",
		Start:      testStart,
		End:        testStart.Add(30 * time.Minute),
		Channel:    catalog.ChannelVirtual,
	}

	first, err := svc.Confirm(context.Background(), "sess-1", draft)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow.Add(time.Minute) }
	again, err := svc.Confirm(context.Background(), "sess-1", draft)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	list, err := repo.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := svc.Confirm(context.Background(), "sess-2", draft)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestConfirmationID(t *testing.T) {
	draft := &agent.DraftAppointment{ProviderID: "dr-amara-hale", Start: testStart}
	id := ConfirmationID("sess-1", draft)
	assert.Equal(t, id, ConfirmationID("sess-1", &agent.DraftAppointment{ProviderID: "dr-amara-hale", Start: testStart.In(time.FixedZone("EST", -5*3600))}))
	assert.NotEqual(t, id, ConfirmationID("sess-1", &agent.DraftAppointment{ProviderID: "dr-felix-okoro", Start: testStart}))
	assert.NotEqual(t, id, ConfirmationID("sess-1", &agent.DraftAppointment{ProviderID: "dr-amara-hale", Start: testStart.Add(time.Hour)}))
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestServiceConfirmPersistFailure(t *testing.T) {
	svc := NewService(&failingRepo{MemoryRepository: NewMemoryRepository()}, nil)
	_, err := svc.Confirm(context.Background(), "sess-1", &agent.DraftAppointment{
		ProviderID: "dr-amara-hale",
		Start:      testStart,
		End:        testStart.Add(time.Minute),
	})
	assert.ErrorContains(t, err, "appointments: confirm: disk full")
	assert.Panics(t, func() { NewService(nil, nil) })
}
