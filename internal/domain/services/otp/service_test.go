package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepulse/risk_service/internal/domain/entities"
	"github.com/ridepulse/risk_service/pkg/logger"
)

type fakeAttemptRepo struct {
	records   []*entities.AttemptRecord
	lookupErr error
	createErr error
}

func (f *fakeAttemptRepo) Create(_ context.Context, record *entities.AttemptRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAttemptRepo) CountSentSince(_ context.Context, identifier string, identifierType entities.IdentifierType, since time.Time) (int, error) {
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	count := 0
	for _, r := range f.records {
		if r.Identifier == identifier && r.IdentifierType == identifierType &&
			r.OTPSent != nil && *r.OTPSent && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) FindActiveBlock(_ context.Context, identifier string, identifierType entities.IdentifierType, attemptType entities.AttemptType, now time.Time) (*entities.AttemptRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var latest *entities.AttemptRecord
	for _, r := range f.records {
		if r.Identifier == identifier && r.IdentifierType == identifierType &&
			r.AttemptType == attemptType && r.IsBlocked &&
			r.BlockedUntil != nil && r.BlockedUntil.After(now) {
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
			}
		}
	}
	return latest, nil
}

func (f *fakeAttemptRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	kept := f.records[:0]
	var deleted int64
	for _, r := range f.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

type fakeSender struct {
	targets []string
	codes   []string
	err     error
}

func (f *fakeSender) SendOTP(_ context.Context, target, code string) error {
	if f.err != nil {
		return f.err
	}
	f.targets = append(f.targets, target)
	f.codes = append(f.codes, code)
	return nil
}

func newTestService(repo *fakeAttemptRepo, sms, email *fakeSender) (*Service, *time.Time) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := logger.New("error", "development")
	svc := NewService(repo, NewCodeIssuer("test-issuer-seed"), sms, email, 3, 8, 15, log).
		WithClock(func() time.Time { return current })
	return svc, &current
}

func recordSend(t *testing.T, svc *Service, identifier string) {
	t.Helper()
	recordSendAs(t, svc, identifier, entities.IdentifierPhone)
}

func recordSendEmail(t *testing.T, svc *Service, identifier string) {
	t.Helper()
	recordSendAs(t, svc, identifier, entities.IdentifierEmail)
}

func recordSendAs(t *testing.T, svc *Service, identifier string, identifierType entities.IdentifierType) {
	t.Helper()
	result := svc.CheckRateLimit(context.Background(), identifier, identifierType, entities.DeviceInfo{})
	require.True(t, result.Allowed)
	svc.RecordOTPRequest(context.Background(), identifier, identifierType, true, "", entities.DeviceInfo{})
}

func TestFourthRequestInMinuteBlocked(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, clock := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		recordSend(t, svc, "+2348012345678")
		*clock = clock.Add(10 * time.Second)
	}

	result := svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.False(t, result.Allowed)
	assert.Equal(t, 900, result.RetryAfter)
	require.NotNil(t, result.BlockedUntil)
	assert.Equal(t, clock.Add(15*time.Minute), *result.BlockedUntil)

	// exactly one blocked ledger row was written
	blocks := 0
	for _, r := range repo.records {
		if r.IsBlocked {
			blocks++
			assert.NotNil(t, r.BlockReason)
		}
	}
	assert.Equal(t, 1, blocks)
}

func TestActiveBlockShortCircuitsCounting(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, clock := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	blockedUntil := clock.Add(10 * time.Minute)
	reason := "Exceeded 3 OTP requests per minute"
	sent := false
	repo.records = append(repo.records, &entities.AttemptRecord{
		Identifier:     "+2348012345678",
		IdentifierType: entities.IdentifierPhone,
		AttemptType:    entities.AttemptOTPRequest,
		OTPSent:        &sent,
		IsBlocked:      true,
		BlockedUntil:   &blockedUntil,
		BlockReason:    &reason,
		CreatedAt:      clock.Add(-5 * time.Minute),
	})

	result := svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.False(t, result.Allowed)
	assert.Equal(t, 600, result.RetryAfter)
	assert.Equal(t, reason, result.Reason)
}

func TestBlockExpiresAndCountingResumes(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, clock := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		recordSend(t, svc, "+2348012345678")
	}
	denied := svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	require.False(t, denied.Allowed)

	// past the block and outside the hour window
	*clock = clock.Add(61 * time.Minute)
	result := svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.True(t, result.Allowed)
	assert.Equal(t, 3, result.RemainingMinute)
	assert.Equal(t, 8, result.RemainingHour)
}

func TestHourQuotaBlocksSpacedRequests(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, clock := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	// 8 sends spaced so the minute window never trips
	for i := 0; i < 8; i++ {
		recordSendEmail(t, svc, "user@ridepulse.africa")
		*clock = clock.Add(5 * time.Minute)
	}

	result := svc.CheckRateLimit(ctx, "user@ridepulse.africa", entities.IdentifierEmail, entities.DeviceInfo{})
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "per hour")
}

func TestRemainingCountsDecrease(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, clock := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	recordSend(t, svc, "+2348012345678")
	*clock = clock.Add(time.Second)

	result := svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.RemainingMinute)
	assert.Equal(t, 7, result.RemainingHour)
}

func TestLedgerFailureFailsOpen(t *testing.T) {
	repo := &fakeAttemptRepo{lookupErr: errors.New("connection refused")}
	svc, _ := newTestService(repo, &fakeSender{}, &fakeSender{})

	result := svc.CheckRateLimit(context.Background(), "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.True(t, result.Allowed)
}

func TestEmptyIdentifierSkipsEnforcement(t *testing.T) {
	repo := &fakeAttemptRepo{lookupErr: errors.New("should not be called")}
	svc, _ := newTestService(repo, &fakeSender{}, &fakeSender{})

	result := svc.CheckRateLimit(context.Background(), "", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.True(t, result.Allowed)
}

func TestIdentifiersAreIsolated(t *testing.T) {
	repo := &fakeAttemptRepo{}
	svc, _ := newTestService(repo, &fakeSender{}, &fakeSender{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		recordSend(t, svc, "+2348012345678")
	}
	require.False(t, svc.CheckRateLimit(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{}).Allowed)

	other := svc.CheckRateLimit(ctx, "+2348098765432", entities.IdentifierPhone, entities.DeviceInfo{})
	assert.True(t, other.Allowed)
}

func TestIssueAndDeliverRoutesByChannel(t *testing.T) {
	repo := &fakeAttemptRepo{}
	sms := &fakeSender{}
	email := &fakeSender{}
	svc, _ := newTestService(repo, sms, email)
	ctx := context.Background()

	require.NoError(t, svc.IssueAndDeliver(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{}))
	require.NoError(t, svc.IssueAndDeliver(ctx, "rider@ridepulse.africa", entities.IdentifierEmail, entities.DeviceInfo{}))

	require.Len(t, sms.targets, 1)
	assert.Equal(t, "+2348012345678", sms.targets[0])
	require.Len(t, email.targets, 1)
	assert.Equal(t, "rider@ridepulse.africa", email.targets[0])
	assert.Len(t, sms.codes[0], 6)

	// both sends landed in the ledger as successful
	sent := 0
	for _, r := range repo.records {
		if r.OTPSent != nil && *r.OTPSent {
			sent++
		}
	}
	assert.Equal(t, 2, sent)
}

func TestIssueAndDeliverRecordsFailure(t *testing.T) {
	repo := &fakeAttemptRepo{}
	sms := &fakeSender{err: errors.New("provider rejected message")}
	svc, _ := newTestService(repo, sms, &fakeSender{})

	err := svc.IssueAndDeliver(context.Background(), "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{})
	require.Error(t, err)

	require.Len(t, repo.records, 1)
	assert.False(t, repo.records[0].Success)
	require.NotNil(t, repo.records[0].FailureReason)
}

func TestVerifyAcceptsIssuedCode(t *testing.T) {
	repo := &fakeAttemptRepo{}
	sms := &fakeSender{}
	svc, _ := newTestService(repo, sms, &fakeSender{})
	ctx := context.Background()

	require.NoError(t, svc.IssueAndDeliver(ctx, "+2348012345678", entities.IdentifierPhone, entities.DeviceInfo{}))
	code := sms.codes[0]

	assert.True(t, svc.Verify(ctx, "+2348012345678", entities.IdentifierPhone, code, entities.DeviceInfo{}))
	assert.False(t, svc.Verify(ctx, "+2348012345678", entities.IdentifierPhone, "000000", entities.DeviceInfo{}))

	// a code issued for one identifier is useless for another
	assert.False(t, svc.Verify(ctx, "+2348098765432", entities.IdentifierPhone, code, entities.DeviceInfo{}))
}
