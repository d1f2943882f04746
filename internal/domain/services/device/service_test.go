package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/logger"
)

type fakeDeviceRepo struct {
	fingerprints map[string]*entities.DeviceFingerprint
	activeCount  int
	whitelisted  bool
	touched      []string
	created      []*entities.DeviceFingerprint
	lookupErr    error
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{fingerprints: make(map[string]*entities.DeviceFingerprint)}
}

func (f *fakeDeviceRepo) GetByUserAndDevice(_ context.Context, _ uuid.UUID, deviceID string) (*entities.DeviceFingerprint, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.fingerprints[deviceID], nil
}

func (f *fakeDeviceRepo) Create(_ context.Context, fp *entities.DeviceFingerprint) error {
	f.created = append(f.created, fp)
	f.fingerprints[fp.DeviceID] = fp
	return nil
}

func (f *fakeDeviceRepo) Touch(_ context.Context, _ uuid.UUID, deviceID, _, _ string, _ time.Time) error {
	f.touched = append(f.touched, deviceID)
	return nil
}

func (f *fakeDeviceRepo) CountActiveDevices(_ context.Context, _ uuid.UUID, _ string) (int, error) {
	return f.activeCount, nil
}

func (f *fakeDeviceRepo) IsWhitelisted(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (bool, error) {
	return f.whitelisted, nil
}

func (f *fakeDeviceRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]*entities.DeviceFingerprint, error) {
	out := make([]*entities.DeviceFingerprint, 0, len(f.fingerprints))
	for _, fp := range f.fingerprints {
		out = append(out, fp)
	}
	return out, nil
}

type locatedEventRepo struct {
	located   *entities.FraudEvent
	lookupErr error
}

func (f *locatedEventRepo) GetScore(_ context.Context, _ uuid.UUID) (*entities.FraudScore, error) {
	return nil, nil
}

func (f *locatedEventRepo) AppendEvent(_ context.Context, _ *entities.FraudEvent, _ int) (*entities.FraudScore, error) {
	return nil, nil
}

func (f *locatedEventRepo) LatestLocatedEvent(_ context.Context, _ uuid.UUID) (*entities.FraudEvent, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.located, nil
}

type capturedEvent struct {
	eventType entities.FraudEventType
	opts      entities.FraudEventOptions
}

type fakeReporter struct {
	events []capturedEvent
}

func (f *fakeReporter) LogFraudEvent(_ context.Context, _ uuid.UUID, _ string, eventType entities.FraudEventType, _ string, opts entities.FraudEventOptions) *entities.FraudScore {
	f.events = append(f.events, capturedEvent{eventType: eventType, opts: opts})
	return nil
}

func newTestChecker(devices *fakeDeviceRepo, fraudRepo *locatedEventRepo, reporter *fakeReporter) (*Service, *time.Time) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(devices, fraudRepo, reporter, 2, 5.0, 5*time.Second, logger.New("error", "development")).
		WithClock(func() time.Time { return current })
	return svc, &current
}

func TestKnownDeviceIsRefreshed(t *testing.T) {
	devices := newFakeDeviceRepo()
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)
	userID := uuid.New()

	devices.fingerprints["device-a"] = &entities.DeviceFingerprint{UserID: userID, DeviceID: "device-a"}

	result := svc.ValidateDeviceFingerprint(context.Background(), userID, "rider", "device-a", entities.DeviceInfo{IPAddress: "41.58.0.9"})
	assert.True(t, result.Valid)
	assert.False(t, result.IsNewDevice)
	assert.Equal(t, []string{"device-a"}, devices.touched)
	assert.Empty(t, reporter.events)
}

func TestBlockedDeviceIsDenied(t *testing.T) {
	devices := newFakeDeviceRepo()
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)
	userID := uuid.New()

	devices.fingerprints["device-a"] = &entities.DeviceFingerprint{UserID: userID, DeviceID: "device-a", IsBlocked: true}

	result := svc.ValidateDeviceFingerprint(context.Background(), userID, "rider", "device-a", entities.DeviceInfo{})
	assert.False(t, result.Valid)
	require.Len(t, reporter.events, 1)
	assert.Equal(t, entities.EventBlockedDeviceLogin, reporter.events[0].eventType)
	assert.Empty(t, devices.touched)
}

func TestNewDeviceUnderCapIsSilent(t *testing.T) {
	devices := newFakeDeviceRepo()
	devices.activeCount = 1
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)

	result := svc.ValidateDeviceFingerprint(context.Background(), uuid.New(), "rider", "device-b", entities.DeviceInfo{OS: "android"})
	assert.True(t, result.Valid)
	assert.True(t, result.IsNewDevice)
	assert.Empty(t, result.Warning)
	assert.Empty(t, reporter.events)
	require.Len(t, devices.created, 1)
	assert.Equal(t, 1, devices.created[0].LoginCount)
}

func TestDeviceOverCapWarnsWithoutDenying(t *testing.T) {
	devices := newFakeDeviceRepo()
	devices.activeCount = 2
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)

	result := svc.ValidateDeviceFingerprint(context.Background(), uuid.New(), "rider", "device-c", entities.DeviceInfo{IPAddress: "41.58.0.9"})

	// still a warning, never a hard block
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warning)

	require.Len(t, reporter.events, 1)
	assert.Equal(t, entities.EventMultiDeviceLogin, reporter.events[0].eventType)
	assert.Equal(t, MultiDeviceScoreImpact, reporter.events[0].opts.ScoreImpact)

	// the fingerprint row is created regardless
	assert.Len(t, devices.created, 1)
}

func TestWhitelistedDeviceBypassesCap(t *testing.T) {
	devices := newFakeDeviceRepo()
	devices.activeCount = 2
	devices.whitelisted = true
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)

	result := svc.ValidateDeviceFingerprint(context.Background(), uuid.New(), "rider", "device-d", entities.DeviceInfo{})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warning)
	assert.Empty(t, reporter.events)
}

func TestDeviceLookupFailsOpen(t *testing.T) {
	devices := newFakeDeviceRepo()
	devices.lookupErr = errors.New("connection refused")
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(devices, &locatedEventRepo{}, reporter)

	result := svc.ValidateDeviceFingerprint(context.Background(), uuid.New(), "rider", "device-e", entities.DeviceInfo{})
	assert.True(t, result.Valid)
	assert.Empty(t, reporter.events)
}

func TestImpossibleMovementRejected(t *testing.T) {
	lat, lng := 6.5244, 3.3792 // Lagos
	fraudRepo := &locatedEventRepo{}
	reporter := &fakeReporter{}
	svc, clock := newTestChecker(newFakeDeviceRepo(), fraudRepo, reporter)

	fraudRepo.located = &entities.FraudEvent{
		Latitude:  &lat,
		Longitude: &lng,
		CreatedAt: clock.Add(-2 * time.Second),
	}

	// ~11 km north two seconds later
	result := svc.ValidateGPSLocation(context.Background(), uuid.New(), "rider", 6.6244, 3.3792, entities.FraudEventOptions{})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Reason)

	require.Len(t, reporter.events, 1)
	ev := reporter.events[0]
	assert.Equal(t, entities.EventImpossibleMovement, ev.eventType)
	assert.Equal(t, entities.SeverityHigh, ev.opts.Severity)
	assert.Equal(t, ImpossibleMoveImpact, ev.opts.ScoreImpact)
	assert.True(t, ev.opts.AutoRestrict)
}

func TestFastButShortMovementAllowed(t *testing.T) {
	lat, lng := 6.5244, 3.3792
	fraudRepo := &locatedEventRepo{}
	reporter := &fakeReporter{}
	svc, clock := newTestChecker(newFakeDeviceRepo(), fraudRepo, reporter)

	fraudRepo.located = &entities.FraudEvent{
		Latitude:  &lat,
		Longitude: &lng,
		CreatedAt: clock.Add(-2 * time.Second),
	}

	// ~1 km in two seconds stays under the jump bound
	result := svc.ValidateGPSLocation(context.Background(), uuid.New(), "rider", 6.5334, 3.3792, entities.FraudEventOptions{})
	assert.True(t, result.Valid)
	assert.Empty(t, reporter.events)
}

func TestLargeJumpOverLongerIntervalAllowed(t *testing.T) {
	lat, lng := 6.5244, 3.3792
	fraudRepo := &locatedEventRepo{}
	reporter := &fakeReporter{}
	svc, clock := newTestChecker(newFakeDeviceRepo(), fraudRepo, reporter)

	fraudRepo.located = &entities.FraudEvent{
		Latitude:  &lat,
		Longitude: &lng,
		CreatedAt: clock.Add(-10 * time.Minute),
	}

	result := svc.ValidateGPSLocation(context.Background(), uuid.New(), "rider", 6.6244, 3.3792, entities.FraudEventOptions{})
	assert.True(t, result.Valid)
	assert.Empty(t, reporter.events)
}

func TestFirstLocationSampleAllowed(t *testing.T) {
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(newFakeDeviceRepo(), &locatedEventRepo{}, reporter)

	result := svc.ValidateGPSLocation(context.Background(), uuid.New(), "rider", 6.5244, 3.3792, entities.FraudEventOptions{})
	assert.True(t, result.Valid)
	assert.Empty(t, reporter.events)
}

func TestLocatedEventLookupFailsOpen(t *testing.T) {
	fraudRepo := &locatedEventRepo{lookupErr: errors.New("connection refused")}
	reporter := &fakeReporter{}
	svc, _ := newTestChecker(newFakeDeviceRepo(), fraudRepo, reporter)

	result := svc.ValidateGPSLocation(context.Background(), uuid.New(), "rider", 6.5244, 3.3792, entities.FraudEventOptions{})
	assert.True(t, result.Valid)
}
