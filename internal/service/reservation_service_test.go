package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/repository"
	"github.com/iliyamo/venue-reservation/internal/repository/memory"
)

var (
	testNow  = time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	bookedAt = time.Date(2030, 1, 10, 20, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	svc    *ReservationService
	events *recordingPublisher
}

func newFixture(t *testing.T, capacity int, opts ...Option) *fixture {
	t.Helper()
	store := memory.New()
	store.AddVenue(model.Venue{ID: "v1", Name: "La Terraza", Capacity: capacity, Active: true})
	store.AddVenue(model.Venue{ID: "v-off", Name: "Cerrado", Capacity: 50, Active: false})
	store.AddUser("alice", "Alice")
	store.AddUser("bob", "Bob")
	return newFixtureWithStore(t, store, opts...)
}

func newFixtureWithStore(t *testing.T, store *memory.Store, opts ...Option) *fixture {
	t.Helper()
	var seq int64
	events := &recordingPublisher{}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", atomic.AddInt64(&seq, 1)) }),
		WithPublisher(events),
	}
	svc := NewReservationService(store, NewAvailabilityEngine(store, time.UTC), append(base, opts...)...)
	return &fixture{store: store, svc: svc, events: events}
}

func (f *fixture) book(t *testing.T, owner string, party int) (*model.Reservation, error) {
	t.Helper()
	return f.svc.CreateReservation(context.Background(), CreateInput{
		OwnerUserID: owner, VenueID: "v1", DateTime: bookedAt, PartySize: party,
	})
}

func (f *fixture) usage(t *testing.T) int {
	t.Helper()
	n, err := f.store.SumConfirmed(context.Background(), "v1", "2030-01-10", "")
	require.NoError(t, err)
	return n
}

func ptr[T any](v T) *T { return &v }

func TestCreateReservation(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.book(t, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, "id-001", res.ID)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, "2030-01-10", res.Date)
	assert.Equal(t, "La Terraza", res.VenueName)
	assert.Equal(t, "Alice", res.OwnerName)
	assert.Equal(t, testNow, res.CreatedAt)
	assert.Equal(t, []string{queue.EventCreated}, f.events.types())
}

func TestCreateReservationRejectsBadInput(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	cases := map[string]CreateInput{
		"zero party":    {OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 0},
		"missing date":  {OwnerUserID: "alice", VenueID: "v1", PartySize: 2},
		"past date":     {OwnerUserID: "alice", VenueID: "v1", DateTime: testNow.Add(-time.Hour), PartySize: 2},
		"missing venue": {OwnerUserID: "alice", DateTime: bookedAt, PartySize: 2},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
	assert.Zero(t, f.usage(t))
}

func TestCreateReservationUnknownOrInactiveVenue(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	for _, venue := range []string{"missing", "v-off"} {
		_, err := f.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "alice", VenueID: venue, DateTime: bookedAt, PartySize: 1})
		assert.ErrorIs(t, err, ErrVenueNotFound, venue)
	}
}

func TestCreateReservationClosedDate(t *testing.T) {
	f := newFixture(t, 10)
	f.store.AddClosure("v1", "2030-01-10")

	_, err := f.book(t, "alice", 1)
	assert.ErrorIs(t, err, ErrVenueClosed)
	assert.Zero(t, f.usage(t))
}

func TestBucketUsesVenueTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	engine := NewAvailabilityEngine(memory.New(), loc)

	// 02:00 UTC on the 11th is still the 10th five hours west.
	assert.Equal(t, "2030-01-10", engine.Bucket(time.Date(2030, 1, 11, 2, 0, 0, 0, time.UTC)))
}

// Scenario: accept then reject.
func TestAcceptThenReject(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.book(t, "alice", 3)
	require.NoError(t, err)
	check, err := f.svc.Engine().Check(ctx, "v1", "2030-01-10", 1, "")
	require.NoError(t, err)
	assert.Equal(t, 2, check.CapacityRemaining)

	_, err = f.book(t, "bob", 3)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.False(t, ce.Result.Available)
	assert.Equal(t, 2, ce.Result.CapacityRemaining)
	assert.Equal(t, 3, ce.Result.CurrentUsage)
	assert.Equal(t, 5, ce.Result.CapacityTotal)
	assert.Equal(t, 3, ce.Result.PartySizeRequested)

	_, err = f.book(t, "bob", 2)
	require.NoError(t, err)
	check, err = f.svc.Engine().Check(ctx, "v1", "2030-01-10", 1, "")
	require.NoError(t, err)
	assert.Equal(t, 0, check.CapacityRemaining)
	assert.False(t, check.Available)
}

// Scenario: cancellation frees capacity.
func TestCancellationFreesCapacity(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	first, err := f.book(t, "alice", 2)
	require.NoError(t, err)
	_, err = f.book(t, "bob", 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	cancelled, err := f.svc.CancelReservation(ctx, "alice", first.ID, ptr("cambio de planes"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "cambio de planes", *cancelled.CancellationReason)

	_, err = f.book(t, "bob", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.usage(t))
}

func TestConcurrentCreatesNeverOversubscribe(t *testing.T) {
	f := newFixture(t, 10)

	const requests = 20
	var (
		wg       sync.WaitGroup
		accepted int64
		rejected int64
		other    int64
		start    = make(chan struct{})
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateReservation(context.Background(), CreateInput{
				OwnerUserID: fmt.Sprintf("user-%d", i), VenueID: "v1", DateTime: bookedAt, PartySize: 1,
			})
			switch {
			case err == nil:
				atomic.AddInt64(&accepted, 1)
			case errors.Is(err, ErrCapacityExceeded):
				atomic.AddInt64(&rejected, 1)
			default:
				atomic.AddInt64(&other, 1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 10, accepted)
	assert.EqualValues(t, 10, rejected)
	assert.Zero(t, other)
	assert.Equal(t, 10, f.usage(t))
}

func TestCapacityInvariantAcrossMixedOperations(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()

	a, err := f.book(t, "alice", 4)
	require.NoError(t, err)
	b, err := f.book(t, "bob", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, f.usage(t), 6)

	_, err = f.svc.UpdateReservation(ctx, "bob", b.ID, Changes{PartySize: ptr(3)})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.LessOrEqual(t, f.usage(t), 6)

	_, err = f.svc.CancelReservation(ctx, "alice", a.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateReservation(ctx, "bob", b.ID, Changes{PartySize: ptr(6)})
	require.NoError(t, err)
	assert.Equal(t, 6, f.usage(t))

	_, err = f.book(t, "alice", 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 6, f.usage(t))
}

func TestUpdateExcludesOwnSeats(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	res, err := f.book(t, "alice", 4)
	require.NoError(t, err)

	updated, err := f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{Notes: ptr("mesa junto a la ventana")})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "mesa junto a la ventana", *updated.Notes)

	updated, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{PartySize: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.PartySize)

	// Moving to another hour of the same full day still fits because the
	// reservation's own seats are excluded.
	updated, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{DateTime: ptr(bookedAt.Add(-2 * time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, "2030-01-10", updated.Date)
	assert.Equal(t, 4, f.usage(t))
}

func TestUpdateMovesBucket(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	res, err := f.book(t, "alice", 4)
	require.NoError(t, err)
	updated, err := f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{DateTime: ptr(bookedAt.AddDate(0, 0, 1))})
	require.NoError(t, err)
	assert.Equal(t, "2030-01-11", updated.Date)
	assert.Zero(t, f.usage(t))

	_, err = f.book(t, "bob", 4)
	assert.NoError(t, err)
}

func TestUpdateNotesOnlySkipsCheckOnClosedDay(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	res, err := f.book(t, "alice", 2)
	require.NoError(t, err)
	f.store.AddClosure("v1", "2030-01-10")

	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{Notes: ptr("ok")})
	assert.NoError(t, err)
	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{PartySize: ptr(3)})
	assert.ErrorIs(t, err, ErrVenueClosed)
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	res, err := f.book(t, "alice", 2)
	require.NoError(t, err)

	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{PartySize: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.UpdateReservation(ctx, "alice", "nope", Changes{Notes: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDoubleCancelIsReported(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	res, err := f.book(t, "alice", 2)
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, "alice", res.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, "alice", res.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{Notes: ptr("x")})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	assert.Equal(t, []string{queue.EventCreated, queue.EventCancelled}, f.events.types())
}

func TestOwnershipEnforced(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	res, err := f.book(t, "alice", 2)
	require.NoError(t, err)

	_, err = f.svc.UpdateReservation(ctx, "bob", res.ID, Changes{Notes: ptr("mine now")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CancelReservation(ctx, "bob", res.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetReservation(ctx, "bob", res.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.GetReservation(ctx, "alice", res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Nil(t, got.Notes)
}

func TestCompletedReservationIsFrozen(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	res, err := f.book(t, "alice", 2)
	require.NoError(t, err)

	n, err := f.svc.CompleteElapsed(ctx, bookedAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.svc.CancelReservation(ctx, "alice", res.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	_, err = f.svc.UpdateReservation(ctx, "alice", res.ID, Changes{Notes: ptr("x")})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Zero(t, f.usage(t), "completed reservations stop counting")
}

func TestCompleteElapsedKeepsSameDaySeats(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	day := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	clock := day.Add(8 * time.Hour)
	svc := newFixtureWithStore(t, f.store, WithClock(func() time.Time { return clock })).svc

	lunch, err := svc.CreateReservation(ctx, CreateInput{
		OwnerUserID: "alice", VenueID: "v1", DateTime: day.Add(12 * time.Hour), PartySize: 2,
	})
	require.NoError(t, err)

	// Lunch is over but the day is not.
	clock = day.Add(13 * time.Hour)
	n, err := svc.CompleteElapsed(ctx, clock)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.CreateReservation(ctx, CreateInput{
		OwnerUserID: "bob", VenueID: "v1", DateTime: day.Add(20 * time.Hour), PartySize: 2,
	})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, f.usage(t))

	clock = day.AddDate(0, 0, 1).Add(time.Minute)
	n, err = svc.CompleteElapsed(ctx, clock)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := f.store.GetReservation(ctx, lunch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestCompleteElapsedUsesVenueDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	store := memory.New()
	store.AddVenue(model.Venue{ID: "v1", Name: "Patio", Capacity: 4, Active: true})
	clock := time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := NewReservationService(store, NewAvailabilityEngine(store, loc), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	// 22:00 local on the 10th is 03:00 UTC on the 11th.
	_, err := svc.CreateReservation(ctx, CreateInput{
		OwnerUserID: "alice", VenueID: "v1", DateTime: time.Date(2030, 1, 11, 3, 0, 0, 0, time.UTC), PartySize: 1,
	})
	require.NoError(t, err)

	// 04:00 UTC on the 11th is still the 10th locally.
	n, err := svc.CompleteElapsed(ctx, time.Date(2030, 1, 11, 4, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.CompleteElapsed(ctx, time.Date(2030, 1, 11, 5, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// Scenario: group booking.
func TestGroupReservationConsumesPrincipalOnly(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	out, err := f.svc.CreateGroupReservation(ctx, GroupInput{
		CreateInput: CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 4},
		Invitees:    []InviteeInput{{UserID: "bob"}, {UserID: "carol"}, {UserID: "dave"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.InviteesRequested)
	assert.Equal(t, 3, out.InviteesRecorded)
	assert.Empty(t, out.Failures)
	assert.Equal(t, 4, f.usage(t))

	ledger, err := f.store.ListInvitees(ctx, out.Reservation.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	for _, inv := range ledger {
		assert.False(t, inv.Confirmed)
		assert.Equal(t, out.Reservation.ID, inv.ReservationID)
	}

	got, err := f.svc.GetReservation(ctx, "alice", out.Reservation.ID)
	require.NoError(t, err)
	assert.Len(t, got.Invitees, 3)
}

func TestGroupReservationSkipsBadInvitees(t *testing.T) {
	f := newFixture(t, 10)

	out, err := f.svc.CreateGroupReservation(context.Background(), GroupInput{
		CreateInput: CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 2},
		Invitees:    []InviteeInput{{UserID: "bob", Confirmed: true}, {UserID: "bob"}, {UserID: "alice"}, {UserID: " "}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.InviteesRequested)
	assert.Equal(t, 1, out.InviteesRecorded)
	require.Len(t, out.Failures, 3)
	assert.Equal(t, "duplicate invitee", out.Failures[0].Reason)
	assert.Equal(t, "owner cannot be invited", out.Failures[1].Reason)
	assert.Equal(t, "empty user id", out.Failures[2].Reason)
	require.Len(t, out.Reservation.Invitees, 1)
	assert.True(t, out.Reservation.Invitees[0].Confirmed)
}

// flakyLedger fails every invitee write for one user id.
type flakyLedger struct {
	*memory.Store
	failFor string
}

func (s flakyLedger) InsertInvitee(ctx context.Context, inv *model.GroupInvitee) error {
	if inv.UserID == s.failFor {
		return errors.New("connection reset")
	}
	return s.Store.InsertInvitee(ctx, inv)
}

func TestGroupReservationPartialFailureKeepsBooking(t *testing.T) {
	base := memory.New()
	base.AddVenue(model.Venue{ID: "v1", Name: "La Terraza", Capacity: 4, Active: true})
	store := flakyLedger{Store: base, failFor: "carol"}
	svc := NewReservationService(store, NewAvailabilityEngine(store, time.UTC), WithClock(func() time.Time { return testNow }))

	out, err := svc.CreateGroupReservation(context.Background(), GroupInput{
		CreateInput: CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 4},
		Invitees:    []InviteeInput{{UserID: "bob"}, {UserID: "carol"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.InviteesRecorded)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, InviteeFailure{UserID: "carol", Reason: "could not be recorded"}, out.Failures[0])

	got, err := base.GetReservation(context.Background(), out.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestGroupReservationCapacityGate(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.svc.CreateGroupReservation(context.Background(), GroupInput{
		CreateInput: CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 4},
		Invitees:    []InviteeInput{{UserID: "bob"}},
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Zero(t, f.usage(t))
}

func TestPublisherFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t, 4)
	f.events.fail = true

	_, err := f.book(t, "alice", 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.usage(t))
}

func TestCancelledContextLeavesNoBooking(t *testing.T) {
	f := newFixture(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.usage(t))
}

func TestListings(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()

	early, err := f.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: testNow.Add(2 * time.Hour), PartySize: 2})
	require.NoError(t, err)
	late, err := f.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: bookedAt, PartySize: 2})
	require.NoError(t, err)
	other, err := f.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "bob", VenueID: "v1", DateTime: testNow.Add(5 * time.Hour), PartySize: 1})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, "bob", other.ID, nil)
	require.NoError(t, err)

	mine, err := f.svc.ListByOwner(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, late.ID, mine[0].ID, "owner history is newest first")
	assert.Equal(t, "La Terraza", mine[0].VenueName)

	cancelled, err := f.svc.ListByOwner(ctx, "bob", model.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	_, err = f.svc.ListByOwner(ctx, "bob", "pendiente")
	assert.ErrorIs(t, err, ErrInvalidInput)

	day, err := f.svc.ListByVenue(ctx, "v1", "2030-01-01", "")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, early.ID, day[0].ID, "venue listing is chronological")

	_, err = f.svc.ListByVenue(ctx, "missing", "", "")
	assert.ErrorIs(t, err, ErrVenueNotFound)
	_, err = f.svc.ListByVenue(ctx, "v-off", "", "")
	assert.NoError(t, err, "inactive venues can still be listed")

	next, err := f.svc.Upcoming(ctx, "v1", 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, early.ID, next[0].ID)

	week, err := f.svc.Upcoming(ctx, "v1", MaxUpcomingHours)
	require.NoError(t, err)
	assert.Len(t, week, 1, "bookedAt is nine days out")

	_, err = f.svc.Upcoming(ctx, "v1", MaxUpcomingHours+1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVenueStats(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()
	past := testNow.AddDate(0, 0, -3)

	// Bookings are made "in the past" by moving the clock backwards.
	early := newFixtureWithStore(t, f.store, WithClock(func() time.Time { return past.Add(-time.Hour) }))
	_, err := early.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "alice", VenueID: "v1", DateTime: past, PartySize: 3})
	require.NoError(t, err)
	_, err = early.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "bob", VenueID: "v1", DateTime: past.Add(time.Hour), PartySize: 2})
	require.NoError(t, err)
	c, err := early.svc.CreateReservation(ctx, CreateInput{OwnerUserID: "bob", VenueID: "v1", DateTime: past.AddDate(0, 0, 1), PartySize: 4})
	require.NoError(t, err)
	_, err = early.svc.CancelReservation(ctx, "bob", c.ID, nil)
	require.NoError(t, err)

	stats, err := f.svc.VenueStats(ctx, "v1", "")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, stats.Period)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusConfirmed])
	assert.Equal(t, 1, stats.ByStatus[model.StatusCancelled])
	assert.Equal(t, 0, stats.ByStatus[model.StatusCompleted])
	assert.Equal(t, 5, stats.ConfirmedGuests)
	assert.Equal(t, past.Format(model.DateLayout), stats.BusiestDate)
	assert.Equal(t, 5, stats.BusiestGuests)

	day, err := f.svc.VenueStats(ctx, "v1", PeriodDay)
	require.NoError(t, err)
	assert.Zero(t, day.Total)

	_, err = f.svc.VenueStats(ctx, "v1", "anio")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.VenueStats(ctx, "missing", PeriodWeek)
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestCheckValidation(t *testing.T) {
	engine := NewAvailabilityEngine(memory.New(), nil)
	ctx := context.Background()

	_, err := engine.Check(ctx, "v1", "2030-01-10", 0, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = engine.Check(ctx, "v1", "10/01/2030", 1, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = engine.Check(ctx, "v1", "2030-01-10", 1, "")
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

var _ repository.Store = flakyLedger{}
