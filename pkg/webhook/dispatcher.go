// Package webhook drives Strava push events through the matching pipeline:
// credential check, activity fetch, path decode, region match, title
// composition and the final upstream update.
package webhook

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
	"github.com/aceriverson/titlesv2/pkg/observability"
	"github.com/aceriverson/titlesv2/pkg/strava"
	"github.com/aceriverson/titlesv2/pkg/titler"
)

// State is a step of the event pipeline. Updated, Rejected, Deauthorized
// and Aborted are terminal; Aborted is reachable from every step.
type State string

const (
	StateReceived          State = "received"
	StateVerified          State = "verified"
	StateRejected          State = "rejected"
	StateDeauthorized      State = "deauthorized"
	StateCredentialChecked State = "credential_checked"
	StateActivityFetched   State = "activity_fetched"
	StatePathDecoded       State = "path_decoded"
	StateMatched           State = "matched"
	StateTitled            State = "titled"
	StateUpdated           State = "updated"
	StateAborted           State = "aborted"
)

// Credentials ensures a valid bearer for an owner.
type Credentials interface {
	EnsureValid(ctx context.Context, owner int64) (*model.Credential, error)
}

// ActivityAPI is the slice of the Strava client the pipeline calls.
type ActivityAPI interface {
	Activity(ctx context.Context, accessToken string, id int64) (*strava.Activity, error)
	UpdateActivity(ctx context.Context, accessToken string, id int64, name, description string) error
}

// Matcher finds the best-matching region for a path.
type Matcher interface {
	FindBestMatch(ctx context.Context, owner int64, path []geometry.Point) (*model.MatchResult, error)
}

// Composer builds the title update to apply.
type Composer interface {
	Compose(ctx context.Context, matched *model.MatchResult, path []geometry.Point, sportType string, aiEnabled bool) (*titler.TitleUpdate, error)
}

// CredentialDeleter removes an owner's credential on de-authorization.
type CredentialDeleter interface {
	Delete(ctx context.Context, owner int64) error
}

// Dispatcher processes one webhook event at a time to a terminal state.
// It never panics the process: every failure becomes Aborted plus a log
// entry, and a 200 to upstream on Rejected keeps retry storms away.
type Dispatcher struct {
	creds    Credentials
	api      ActivityAPI
	matcher  Matcher
	composer Composer
	users    CredentialDeleter

	subscriptionID int64
	verifyToken    string
	logger         *slog.Logger
}

// NewDispatcher constructs the event dispatcher.
func NewDispatcher(
	creds Credentials,
	api ActivityAPI,
	matcher Matcher,
	composer Composer,
	users CredentialDeleter,
	subscriptionID int64,
	verifyToken string,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		creds:          creds,
		api:            api,
		matcher:        matcher,
		composer:       composer,
		users:          users,
		subscriptionID: subscriptionID,
		verifyToken:    verifyToken,
		logger:         logger,
	}
}

// VerifyChallenge handles the subscription-verification handshake. It
// returns the challenge to echo when the verify token matches; a mismatch
// is Rejected with no side effects.
func (d *Dispatcher) VerifyChallenge(verifyToken, challenge string) (string, bool) {
	if verifyToken != d.verifyToken || challenge == "" {
		d.logger.Warn("webhook verification rejected")
		observability.RecordEventOutcome(string(StateRejected))
		return "", false
	}
	d.logger.Info("webhook verification accepted")
	observability.RecordEventOutcome(string(StateVerified))
	return challenge, true
}

// HandleEvent runs a single event to a terminal state.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *model.WebhookEvent) State {
	logger := d.logger.With(
		"execution_id", uuid.NewString(),
		"owner", event.OwnerID,
		"object_id", event.ObjectID,
	)

	state := d.process(ctx, logger, event)
	observability.RecordEventOutcome(string(state))
	return state
}

func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, event *model.WebhookEvent) State {
	if event.SubscriptionID != d.subscriptionID {
		logger.Warn("event for unknown subscription", "subscription_id", event.SubscriptionID)
		return StateRejected
	}

	if event.Deauthorized() {
		if err := d.users.Delete(ctx, event.OwnerID); err != nil {
			return d.abort(logger, "delete credential", err)
		}
		logger.Info("athlete de-authorized, credential deleted")
		return StateDeauthorized
	}

	if event.ObjectType != "activity" || event.AspectType != "create" {
		logger.Debug("event not of interest", "object_type", event.ObjectType, "aspect_type", event.AspectType)
		return StateRejected
	}

	cred, err := d.creds.EnsureValid(ctx, event.OwnerID)
	if err != nil {
		return d.abort(logger, "ensure credential", err)
	}

	activity, err := d.api.Activity(ctx, cred.AccessToken, event.ObjectID)
	if err != nil {
		return d.abort(logger, "fetch activity", err)
	}

	blob := activity.Path()
	if blob == "" {
		logger.Info("activity has no GPS path, nothing to do")
		return StateRejected
	}

	path, err := geometry.DecodePolyline(blob)
	if err != nil {
		return d.abort(logger, "decode path", err)
	}

	matched, err := d.matcher.FindBestMatch(ctx, event.OwnerID, path)
	if err != nil {
		return d.abort(logger, "match regions", err)
	}

	update, err := d.composer.Compose(ctx, matched, path, activity.SportType, cred.AIEnabled)
	if err != nil {
		return d.abort(logger, "compose title", err)
	}
	if update == nil {
		logger.Info("no region hit and captioning disabled, leaving activity untouched")
		return StateRejected
	}

	if err := d.api.UpdateActivity(ctx, cred.AccessToken, event.ObjectID, update.Name, update.Description); err != nil {
		return d.abort(logger, "update activity", err)
	}

	observability.RecordRename()
	logger.Info("activity renamed", "name", update.Name)
	return StateUpdated
}

// abort converts any pipeline failure into the terminal Aborted state.
func (d *Dispatcher) abort(logger *slog.Logger, step string, err error) State {
	logger.Error("event aborted", "step", step, "error", err)
	sentry.CaptureException(err)
	return StateAborted
}
