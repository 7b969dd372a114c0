package webhook

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
	"github.com/aceriverson/titlesv2/pkg/strava"
	"github.com/aceriverson/titlesv2/pkg/titler"
)

const (
	testSubscription = int64(12345)
	testVerifyToken  = "verify-me"
	// Google's polyline reference vector: three coordinates.
	testPolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
)

type fakeCreds struct {
	cred   *model.Credential
	err    error
	called bool
}

func (f *fakeCreds) EnsureValid(ctx context.Context, owner int64) (*model.Credential, error) {
	f.called = true
	return f.cred, f.err
}

type fakeAPI struct {
	activity     *strava.Activity
	activityErr  error
	updateErr    error
	fetchCalls   int
	updateCalls  int
	updatedName  string
	updatedID    int64
}

func (f *fakeAPI) Activity(ctx context.Context, accessToken string, id int64) (*strava.Activity, error) {
	f.fetchCalls++
	return f.activity, f.activityErr
}

func (f *fakeAPI) UpdateActivity(ctx context.Context, accessToken string, id int64, name, description string) error {
	f.updateCalls++
	f.updatedID = id
	f.updatedName = name
	return f.updateErr
}

type fakeMatcher struct {
	result *model.MatchResult
	err    error
}

func (f *fakeMatcher) FindBestMatch(ctx context.Context, owner int64, path []geometry.Point) (*model.MatchResult, error) {
	return f.result, f.err
}

type fakeComposer struct {
	update *titler.TitleUpdate
	err    error
}

func (f *fakeComposer) Compose(ctx context.Context, matched *model.MatchResult, path []geometry.Point, sportType string, aiEnabled bool) (*titler.TitleUpdate, error) {
	return f.update, f.err
}

type fakeDeleter struct {
	deleted []int64
	err     error
}

func (f *fakeDeleter) Delete(ctx context.Context, owner int64) error {
	f.deleted = append(f.deleted, owner)
	return f.err
}

type fixture struct {
	creds    *fakeCreds
	api      *fakeAPI
	matcher  *fakeMatcher
	composer *fakeComposer
	users    *fakeDeleter
	d        *Dispatcher
}

func newFixture() *fixture {
	activity := &strava.Activity{ID: 42, SportType: "Run"}
	activity.Map.Polyline = testPolyline

	f := &fixture{
		creds:    &fakeCreds{cred: &model.Credential{Owner: 7, AccessToken: "bearer"}},
		api:      &fakeAPI{activity: activity},
		matcher:  &fakeMatcher{result: &model.MatchResult{PolygonID: 1, Name: "Blue Hills"}},
		composer: &fakeComposer{update: &titler.TitleUpdate{Name: "Ridge Run"}},
		users:    &fakeDeleter{},
	}
	f.d = NewDispatcher(f.creds, f.api, f.matcher, f.composer, f.users,
		testSubscription, testVerifyToken, slog.New(slog.DiscardHandler))
	return f
}

func createEvent() *model.WebhookEvent {
	return &model.WebhookEvent{
		SubscriptionID: testSubscription,
		OwnerID:        7,
		ObjectType:     "activity",
		AspectType:     "create",
		ObjectID:       42,
	}
}

func TestHandleEventSuccess(t *testing.T) {
	f := newFixture()

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateUpdated, state)
	assert.Equal(t, 1, f.api.updateCalls, "exactly one upstream update")
	assert.Equal(t, "Ridge Run", f.api.updatedName)
	assert.Equal(t, int64(42), f.api.updatedID)
}

func TestHandleEventWrongSubscription(t *testing.T) {
	f := newFixture()
	event := createEvent()
	event.SubscriptionID = 999

	state := f.d.HandleEvent(context.Background(), event)

	assert.Equal(t, StateRejected, state)
	assert.False(t, f.creds.called, "rejected events produce no side effects")
	assert.Zero(t, f.api.fetchCalls)
}

func TestHandleEventDeauthorization(t *testing.T) {
	f := newFixture()
	event := createEvent()
	event.ObjectType = "athlete"
	event.AspectType = "update"
	event.Updates = map[string]string{"authorized": "false"}

	state := f.d.HandleEvent(context.Background(), event)

	assert.Equal(t, StateDeauthorized, state)
	assert.Equal(t, []int64{7}, f.users.deleted)
	assert.Zero(t, f.api.fetchCalls)
}

func TestHandleEventIgnoresOtherAspects(t *testing.T) {
	f := newFixture()
	event := createEvent()
	event.AspectType = "update"

	state := f.d.HandleEvent(context.Background(), event)

	assert.Equal(t, StateRejected, state)
	assert.Zero(t, f.api.fetchCalls)
}

func TestHandleEventRefreshFailureAbortsBeforeFetch(t *testing.T) {
	f := newFixture()
	f.creds.cred = nil
	f.creds.err = errs.ErrRefresh

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateAborted, state)
	assert.Zero(t, f.api.fetchCalls, "activity fetch must not happen after a refresh failure")
	assert.Zero(t, f.api.updateCalls)
}

func TestHandleEventNoCredential(t *testing.T) {
	f := newFixture()
	f.creds.cred = nil
	f.creds.err = errs.ErrNoCredential

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateAborted, state)
	assert.Zero(t, f.api.fetchCalls)
}

func TestHandleEventActivityWithoutPath(t *testing.T) {
	f := newFixture()
	f.api.activity = &strava.Activity{ID: 42, SportType: "WeightTraining"}

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateRejected, state)
	assert.Zero(t, f.api.updateCalls)
}

func TestHandleEventMalformedPath(t *testing.T) {
	f := newFixture()
	f.api.activity = &strava.Activity{ID: 42}
	f.api.activity.Map.Polyline = "_p~iF~ps|U_" // unterminated sequence

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateAborted, state)
	assert.Zero(t, f.api.updateCalls)
}

func TestHandleEventNoTitleUpdate(t *testing.T) {
	f := newFixture()
	f.matcher.result = nil
	f.composer.update = nil

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateRejected, state)
	assert.Zero(t, f.api.updateCalls, "no-op events must not call upstream")
}

func TestHandleEventCaptioningFailure(t *testing.T) {
	f := newFixture()
	f.composer.update = nil
	f.composer.err = errs.ErrCaptioning

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateAborted, state)
	assert.Zero(t, f.api.updateCalls)
}

func TestHandleEventUpdateFailure(t *testing.T) {
	f := newFixture()
	f.api.updateErr = errors.New("status 500")

	state := f.d.HandleEvent(context.Background(), createEvent())

	assert.Equal(t, StateAborted, state)
}

func TestVerifyChallenge(t *testing.T) {
	f := newFixture()

	echo, ok := f.d.VerifyChallenge(testVerifyToken, "challenge-123")
	require.True(t, ok)
	assert.Equal(t, "challenge-123", echo)

	_, ok = f.d.VerifyChallenge("wrong-token", "challenge-123")
	assert.False(t, ok)

	_, ok = f.d.VerifyChallenge(testVerifyToken, "")
	assert.False(t, ok)
}
