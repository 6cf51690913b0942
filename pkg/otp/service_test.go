package otp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verifid/verifid/pkg/notification"
)

func newTestManager(t *testing.T) (*notification.NotificationManager, *notification.MockNotifier) {
	t.Helper()
	mock := &notification.MockNotifier{}
	manager := notification.NewNotificationManager()
	manager.RegisterNotifier(notification.EmailSystem, mock)
	for _, noticeType := range []notification.NoticeType{
		notification.SignupCodeNotice,
		notification.DeviceCodeNotice,
		notification.LocationCodeNotice,
	} {
		err := manager.RegisterNotification(noticeType, notification.EmailSystem, notification.NoticeTemplate{
			Subject: "Your code",
			Text:    "Code: {{.Code}}",
		})
		require.NoError(t, err)
	}
	return manager, mock
}

func TestIssueDeliversCode(t *testing.T) {
	manager, mock := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)

	code, err := service.Issue(context.Background(), PurposeDevice, "User@Example.com")
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)

	sent, ok := mock.Last()
	require.True(t, ok)
	assert.Equal(t, "user@example.com", sent.To)
	assert.Equal(t, code, sent.Data["Code"])
}

func TestValidateSingleUse(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	valid, err := service.Validate(ctx, PurposeDevice, "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, valid)

	// Replaying the consumed code must fail.
	valid, err = service.Validate(ctx, PurposeDevice, "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateConcurrentExactlyOneWinner(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	const callers = 32
	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			valid, err := service.Validate(ctx, PurposeDevice, "user@example.com", code)
			if err == nil && valid {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)
}

func TestValidateExpiredCode(t *testing.T) {
	manager, _ := newTestManager(t)
	now := time.Now().UTC()
	clock := now
	service := NewService(NewInMemChallengeRepository(), manager,
		WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeEmail, "user@example.com")
	require.NoError(t, err)

	clock = now.Add(DefaultExpiry + time.Second)
	valid, err := service.Validate(ctx, PurposeEmail, "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, valid, "code past expiry must never validate")
}

func TestIssueSupersedesPriorChallenge(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	first, err := service.Issue(ctx, PurposeLocation, "user@example.com")
	require.NoError(t, err)
	second, err := service.Issue(ctx, PurposeLocation, "user@example.com")
	require.NoError(t, err)

	valid, err := service.Validate(ctx, PurposeLocation, "user@example.com", first)
	require.NoError(t, err)
	assert.False(t, valid, "superseded code must never validate")

	valid, err = service.Validate(ctx, PurposeLocation, "user@example.com", second)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestPurposesDoNotSatisfyEachOther(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	valid, err := service.Validate(ctx, PurposeLocation, "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateTrimsCode(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	valid, err := service.Validate(ctx, PurposeDevice, "user@example.com", "  "+code+" ")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestIssueDeliveryFailureKeepsChallenge(t *testing.T) {
	manager, mock := newTestManager(t)
	mock.FailWith = errors.New("smtp down")
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.ErrorIs(t, err, ErrDeliveryFailed)
	require.NotEmpty(t, code)

	// The persisted challenge still validates; the user can be told to
	// request a resend.
	valid, err := service.Validate(ctx, PurposeDevice, "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestIssueResendLimit(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager,
		WithResendLimit(2, 0.0001))
	ctx := context.Background()

	_, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)
	_, err = service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	_, err = service.Issue(ctx, PurposeDevice, "user@example.com")
	assert.ErrorIs(t, err, ErrResendLimitExceeded)

	// A different subject has its own budget.
	_, err = service.Issue(ctx, PurposeDevice, "other@example.com")
	assert.NoError(t, err)
}

func TestHasActiveChallenge(t *testing.T) {
	manager, _ := newTestManager(t)
	service := NewService(NewInMemChallengeRepository(), manager)
	ctx := context.Background()

	active, err := service.HasActiveChallenge(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)
	assert.False(t, active)

	code, err := service.Issue(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)

	active, err = service.HasActiveChallenge(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = service.Validate(ctx, PurposeDevice, "user@example.com", code)
	require.NoError(t, err)

	active, err = service.HasActiveChallenge(ctx, PurposeDevice, "user@example.com")
	require.NoError(t, err)
	assert.False(t, active)
}
