package fraud

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/logger"
)

type fakeFraudRepo struct {
	scores        map[uuid.UUID]*entities.FraudScore
	events        []*entities.FraudEvent
	located       *entities.FraudEvent
	scoreErr      error
	appendErr     error
	appendCalls   int
	lastThreshold int
}

func newFakeFraudRepo() *fakeFraudRepo {
	return &fakeFraudRepo{scores: make(map[uuid.UUID]*entities.FraudScore)}
}

func (f *fakeFraudRepo) GetScore(_ context.Context, userID uuid.UUID) (*entities.FraudScore, error) {
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	return f.scores[userID], nil
}

// AppendEvent mirrors the upsert the SQL repository performs: score rows
// are created lazily, additions cap at 100, and crossing the threshold or
// an auto-restrict flag restricts the user.
func (f *fakeFraudRepo) AppendEvent(_ context.Context, event *entities.FraudEvent, threshold int) (*entities.FraudScore, error) {
	f.appendCalls++
	f.lastThreshold = threshold
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.events = append(f.events, event)
	if event.ScoreImpact <= 0 && !event.AutoRestrictApplied {
		return nil, nil
	}

	score := f.scores[event.UserID]
	if score == nil {
		score = &entities.FraudScore{UserID: event.UserID}
		f.scores[event.UserID] = score
	}
	score.PreviousScore = score.CurrentScore
	score.CurrentScore += event.ScoreImpact
	if score.CurrentScore > 100 {
		score.CurrentScore = 100
	}
	if score.CurrentScore > score.PeakScore {
		score.PeakScore = score.CurrentScore
	}
	if !score.IsRestricted && (score.CurrentScore >= threshold || event.AutoRestrictApplied) {
		score.IsRestricted = true
		restrictedAt := event.CreatedAt
		score.RestrictedAt = &restrictedAt
		reason := fmt.Sprintf("%s: %s", event.EventType, event.Description)
		score.RestrictionReason = &reason
	}
	score.RequiresManualClearance = score.IsRestricted
	score.LastCalculatedAt = event.CreatedAt
	return score, nil
}

func (f *fakeFraudRepo) LatestLocatedEvent(_ context.Context, _ uuid.UUID) (*entities.FraudEvent, error) {
	return f.located, nil
}

type fakeSettingsRepo struct {
	threshold int
	err       error
}

func (f *fakeSettingsRepo) GetInt(_ context.Context, _ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.threshold, nil
}

func newTestService(repo *fakeFraudRepo, settings *fakeSettingsRepo) *Service {
	return NewService(repo, settings, 70, logger.New("error", "development"))
}

func TestUnknownUserIsAllowed(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})

	status := svc.CheckFraudStatus(context.Background(), uuid.New())
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.FraudScore)
	assert.False(t, status.IsRestricted)

	// the check must never create score rows
	assert.Empty(t, repo.scores)
	assert.Zero(t, repo.appendCalls)
}

func TestRestrictionAtThreshold(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	repo.scores[userID] = &entities.FraudScore{UserID: userID, CurrentScore: 69, PeakScore: 69}
	status := svc.CheckFraudStatus(context.Background(), userID)
	assert.True(t, status.Allowed)

	repo.scores[userID].CurrentScore = 70
	status = svc.CheckFraudStatus(context.Background(), userID)
	assert.False(t, status.Allowed)
	assert.True(t, status.IsRestricted)
	assert.NotEmpty(t, status.Reason)
}

func TestExplicitRestrictionWinsBelowThreshold(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	reason := "Impossible movement detected"
	repo.scores[userID] = &entities.FraudScore{
		UserID:            userID,
		CurrentScore:      35,
		IsRestricted:      true,
		RestrictionReason: &reason,
	}

	status := svc.CheckFraudStatus(context.Background(), userID)
	assert.False(t, status.Allowed)
	assert.Equal(t, reason, status.Reason)
	assert.Equal(t, 35, status.FraudScore)
}

func TestScoreLookupFailsOpen(t *testing.T) {
	repo := newFakeFraudRepo()
	repo.scoreErr = errors.New("connection refused")
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})

	status := svc.CheckFraudStatus(context.Background(), uuid.New())
	assert.True(t, status.Allowed)
	assert.False(t, status.IsRestricted)
}

func TestThresholdFallsBackOnSettingsFailure(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{err: errors.New("settings store down")})

	assert.Equal(t, 70, svc.Threshold(context.Background()))
}

func TestConfiguredThresholdOverridesDefault(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 85})

	assert.Equal(t, 85, svc.Threshold(context.Background()))

	userID := uuid.New()
	repo.scores[userID] = &entities.FraudScore{UserID: userID, CurrentScore: 75}
	status := svc.CheckFraudStatus(context.Background(), userID)
	assert.True(t, status.Allowed)
}

func TestScoreAccumulatesAndCapsAtHundred(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	var updated *entities.FraudScore
	for i := 0; i < 5; i++ {
		updated = svc.LogFraudEvent(context.Background(), userID, "rider",
			entities.EventImpossibleMovement, "Moved 12.0 km in 3.0 seconds",
			entities.FraudEventOptions{Severity: entities.SeverityHigh, ScoreImpact: 25})
	}

	require.NotNil(t, updated)
	assert.Equal(t, 100, updated.CurrentScore)
	assert.Equal(t, 100, updated.PeakScore)
	assert.True(t, updated.IsRestricted)
	assert.Len(t, repo.events, 5)
	assert.Equal(t, 70, repo.lastThreshold)
}

func TestZeroImpactEventLeavesScoreUntouched(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	updated := svc.LogFraudEvent(context.Background(), userID, "driver",
		entities.EventBlockedDeviceLogin, "Login attempt from blocked device",
		entities.FraudEventOptions{Severity: entities.SeverityHigh})

	assert.Nil(t, updated)
	assert.Len(t, repo.events, 1)
	assert.Empty(t, repo.scores)
}

func TestAutoRestrictBelowThreshold(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	updated := svc.LogFraudEvent(context.Background(), userID, "rider",
		entities.EventImpossibleMovement, "Moved 8.2 km in 2.0 seconds",
		entities.FraudEventOptions{
			Severity:     entities.SeverityHigh,
			ScoreImpact:  25,
			AutoRestrict: true,
		})

	require.NotNil(t, updated)
	assert.Equal(t, 25, updated.CurrentScore)
	assert.True(t, updated.IsRestricted)
	assert.True(t, updated.RequiresManualClearance)
	require.NotNil(t, updated.RestrictedAt)
	require.NotNil(t, updated.RestrictionReason)
	assert.Contains(t, *updated.RestrictionReason, string(entities.EventImpossibleMovement))
}

func TestRestrictionTransitionIsRecordedOnce(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})
	userID := uuid.New()

	first := svc.LogFraudEvent(context.Background(), userID, "rider",
		entities.EventMultiDeviceLogin, "Login from 3rd device",
		entities.FraudEventOptions{Severity: entities.SeverityMedium, ScoreImpact: 10})
	require.NotNil(t, first)
	assert.Equal(t, 10, first.CurrentScore)
	assert.False(t, first.IsRestricted)
	assert.False(t, first.RequiresManualClearance)
	assert.Nil(t, first.RestrictedAt)

	second := svc.LogFraudEvent(context.Background(), userID, "rider",
		entities.EventImpossibleMovement, "Moved 8.2 km in 2.0 seconds",
		entities.FraudEventOptions{
			Severity:     entities.SeverityHigh,
			ScoreImpact:  25,
			AutoRestrict: true,
		})
	require.NotNil(t, second)
	assert.Equal(t, 35, second.CurrentScore)
	assert.True(t, second.IsRestricted)
	assert.True(t, second.RequiresManualClearance)
	require.NotNil(t, second.RestrictedAt)
	transitionAt := *second.RestrictedAt
	transitionReason := *second.RestrictionReason

	// a later restricting event must not move the transition timestamp
	// or rewrite the original reason
	third := svc.LogFraudEvent(context.Background(), userID, "rider",
		entities.EventOTPAbuse, "OTP quota exhausted across devices",
		entities.FraudEventOptions{Severity: entities.SeverityHigh, ScoreImpact: 50})
	require.NotNil(t, third)
	assert.Equal(t, 85, third.CurrentScore)
	assert.True(t, third.IsRestricted)
	assert.True(t, third.RequiresManualClearance)
	require.NotNil(t, third.RestrictedAt)
	assert.Equal(t, transitionAt, *third.RestrictedAt)
	assert.Equal(t, transitionReason, *third.RestrictionReason)
}

func TestLogFraudEventSwallowsPersistenceErrors(t *testing.T) {
	repo := newFakeFraudRepo()
	repo.appendErr = errors.New("deadlock detected")
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})

	updated := svc.LogFraudEvent(context.Background(), uuid.New(), "rider",
		entities.EventOTPAbuse, "OTP quota exhausted",
		entities.FraudEventOptions{ScoreImpact: 10})

	assert.Nil(t, updated)
}

func TestNegativeImpactClampedToZero(t *testing.T) {
	repo := newFakeFraudRepo()
	svc := newTestService(repo, &fakeSettingsRepo{threshold: 70})

	svc.LogFraudEvent(context.Background(), uuid.New(), "rider",
		entities.EventMultiDeviceLogin, "Login from device 3 exceeding cap of 2",
		entities.FraudEventOptions{ScoreImpact: -5})

	require.Len(t, repo.events, 1)
	assert.Zero(t, repo.events[0].ScoreImpact)
	assert.Equal(t, entities.SeverityLow, repo.events[0].Severity)
}
