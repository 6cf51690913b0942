package verifyflow

import (
	"context"
	"net/url"
	"testing"
	"time"

	pqtotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verifid/verifid/pkg/deviceid"
	"github.com/verifid/verifid/pkg/directory"
	"github.com/verifid/verifid/pkg/geoip"
	"github.com/verifid/verifid/pkg/ledger"
	"github.com/verifid/verifid/pkg/notification"
	"github.com/verifid/verifid/pkg/otp"
	"github.com/verifid/verifid/pkg/secscore"
	"github.com/verifid/verifid/pkg/token"
	"github.com/verifid/verifid/pkg/totp"
	"github.com/verifid/verifid/pkg/verrors"
)

const (
	testEmail    = "user@example.com"
	testPassword = "s3cret-pass"
	lisbonIP     = "203.0.113.10"
	lisbonIP2    = "203.0.113.11"
	madridIP     = "198.51.100.20"
	riskyIP      = "198.51.100.66"
)

type flowFixture struct {
	service *Service
	mock    *notification.MockNotifier
	devices *deviceid.Service
	geoRepo *geoip.InMemSampleRepository
	events  *ledger.InMemEventRepository
}

func newFlowFixture(t *testing.T) *flowFixture {
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

	dir := directory.NewInMemDirectory()
	require.NoError(t, dir.AddAccount(directory.Profile{
		UserID: "user-1",
		Email:  testEmail,
	}, testPassword))

	resolver := &geoip.StaticResolver{Samples: map[string]geoip.Sample{
		lisbonIP:  {City: "Lisbon", Country: "Portugal"},
		lisbonIP2: {City: "Lisbon", Country: "Portugal"},
		madridIP:  {City: "Madrid", Country: "Spain"},
		riskyIP:   {City: "Pyongyang", Country: "North Korea"},
	}}
	geoRepo := geoip.NewInMemSampleRepository()
	events := ledger.NewInMemEventRepository()
	devices := deviceid.NewService(deviceid.NewInMemTrustedDeviceRepository(), deviceid.NewMatcher())

	service := NewService(&Dependencies{
		Directory:       dir,
		OtpService:      otp.NewService(otp.NewInMemChallengeRepository(), manager),
		DeviceService:   devices,
		LocationService: geoip.NewService(resolver, geoRepo),
		Events:          events,
		FlowTokens:      token.NewFlowTokenGenerator("test-flow-secret", "verifid", "verifid"),
		CompletionToken: token.NewJwtGenerator("test-completion-secret", "verifid", "verifid"),
		TotpService:     totp.NewService(totp.NewInMemSecretRepository()),
	})

	return &flowFixture{
		service: service,
		mock:    mock,
		devices: devices,
		geoRepo: geoRepo,
		events:  events,
	}
}

func (f *flowFixture) lastCode(t *testing.T) string {
	t.Helper()
	sent, ok := f.mock.Last()
	require.True(t, ok, "expected a code to have been delivered")
	code := sent.Data["Code"]
	require.NotEmpty(t, code)
	return code
}

func signupRequest(ip string) Request {
	return Request{
		Kind:            KindSignup,
		Email:           testEmail,
		Password:        testPassword,
		ClientIP:        ip,
		PersistentToken: "persist-abc",
	}
}

// completeSignup walks a fresh account through both challenges and returns
// the final outcome.
func (f *flowFixture) completeSignup(t *testing.T, ip string) *Outcome {
	t.Helper()
	ctx := context.Background()

	outcome, err := f.service.BeginCredentialCheck(ctx, signupRequest(ip))
	require.NoError(t, err)
	require.Equal(t, StatusChallengeRequired, outcome.Status)
	require.Equal(t, StateOtpChallenge, outcome.NextState)

	req := signupRequest(ip)
	req.FlowToken = outcome.FlowToken
	req.Code = f.lastCode(t)
	outcome, err = f.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StatusChallengeRequired, outcome.Status)
	require.Equal(t, StateLocationOtpChallenge, outcome.NextState)

	req.FlowToken = outcome.FlowToken
	req.Code = f.lastCode(t)
	outcome, err = f.service.VerifyLocationOtp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StatusAdvance, outcome.Status)
	require.Equal(t, StateComplete, outcome.NextState)
	return outcome
}

func TestSignupFirstTimeRequiresBothChallenges(t *testing.T) {
	fixture := newFlowFixture(t)

	outcome := fixture.completeSignup(t, lisbonIP)

	require.NotNil(t, outcome.Security)
	assert.Equal(t, secscore.MaxScore, outcome.Security.Score)
	assert.Equal(t, secscore.TierLow, outcome.Security.Tier)
	assert.True(t, outcome.Security.Factors.ValidCredentials)
	assert.True(t, outcome.Security.Factors.TrustedDevice)
	assert.True(t, outcome.Security.Factors.RecognizedLocation)
	assert.True(t, outcome.Security.Factors.AdditionalVerification)
	assert.Empty(t, outcome.Security.Recommendations)
	assert.NotEmpty(t, outcome.CompletionToken)
	assert.Empty(t, outcome.FlowToken)
}

func TestReturningUserOnKnownDeviceAndLocationSkipsChallenges(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	fixture.completeSignup(t, lisbonIP)
	delivered := len(fixture.mock.SentNotifications)

	// Same persistent token, same city, different network.
	req := signupRequest(lisbonIP2)
	req.Kind = KindLogin
	outcome, err := fixture.service.BeginCredentialCheck(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusAdvance, outcome.Status)
	assert.Equal(t, StateComplete, outcome.NextState)
	require.NotNil(t, outcome.Security)
	assert.Equal(t, 75, outcome.Security.Score)
	assert.Equal(t, secscore.TierLow, outcome.Security.Tier)
	assert.False(t, outcome.Security.Factors.AdditionalVerification)
	// No codes were sent for the second attempt.
	assert.Len(t, fixture.mock.SentNotifications, delivered)
}

func TestNewCountryBelowThresholdSkipsChallenge(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	fixture.completeSignup(t, lisbonIP)

	req := signupRequest(madridIP)
	req.Kind = KindLogin
	outcome, err := fixture.service.BeginCredentialCheck(ctx, req)
	require.NoError(t, err)

	// A new country scores below the verification threshold, so the flow
	// completes without a location code.
	assert.Equal(t, StatusAdvance, outcome.Status)
	assert.Equal(t, StateComplete, outcome.NextState)
	require.NotNil(t, outcome.Security)
	assert.True(t, outcome.Security.Factors.RecognizedLocation)
	assert.Equal(t, 75, outcome.Security.Score)
	assert.Equal(t, secscore.TierLow, outcome.Security.Tier)
}

func TestDenylistedCountryAlwaysChallenged(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	fixture.completeSignup(t, riskyIP)

	// Even with history in the same country, a denylisted origin demands
	// a location code.
	req := signupRequest(riskyIP)
	req.Kind = KindLogin
	outcome, err := fixture.service.BeginCredentialCheck(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusChallengeRequired, outcome.Status)
	assert.Equal(t, StateLocationOtpChallenge, outcome.NextState)
}

func TestWrongCodeRejectedWithoutConsumingChallenge(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)
	require.Equal(t, StateOtpChallenge, outcome.NextState)
	code := fixture.lastCode(t)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	req.Code = "000000"
	rejected, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rejected.Status)
	assert.Equal(t, StateOtpChallenge, rejected.NextState)
	assert.Equal(t, verrors.CodeChallengeExpiredOrWrong, rejected.ErrorCode)
	assert.NotEmpty(t, rejected.FlowToken, "the flow must remain resumable after a wrong code")

	// The original code still works.
	req.FlowToken = rejected.FlowToken
	req.Code = code
	accepted, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, accepted.Status)
	assert.Equal(t, StateLocationOtpChallenge, accepted.NextState)
}

func TestResendSupersedesPriorCode(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)
	staleCode := fixture.lastCode(t)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	resent, err := fixture.service.ChallengeOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, resent.Status)
	assert.Equal(t, StateOtpChallenge, resent.NextState)
	freshCode := fixture.lastCode(t)
	require.NotEqual(t, staleCode, freshCode)

	req.FlowToken = resent.FlowToken
	req.Code = staleCode
	rejected, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rejected.Status)
	assert.Equal(t, verrors.CodeChallengeExpiredOrWrong, rejected.ErrorCode)

	req.FlowToken = rejected.FlowToken
	req.Code = freshCode
	accepted, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, accepted.Status)
}

func TestCredentialFailureAbortsFlow(t *testing.T) {
	fixture := newFlowFixture(t)

	req := signupRequest(lisbonIP)
	req.Password = "wrong-password"
	outcome, err := fixture.service.BeginCredentialCheck(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, StateAborted, outcome.NextState)
	assert.Equal(t, verrors.CodeCredentialFailure, outcome.ErrorCode)
	assert.Empty(t, outcome.FlowToken)
}

func TestUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	fixture := newFlowFixture(t)

	wrongPassword := signupRequest(lisbonIP)
	wrongPassword.Password = "wrong-password"
	first, err := fixture.service.BeginCredentialCheck(context.Background(), wrongPassword)
	require.NoError(t, err)

	unknownEmail := signupRequest(lisbonIP)
	unknownEmail.Email = "nobody@example.com"
	second, err := fixture.service.BeginCredentialCheck(context.Background(), unknownEmail)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Detail, second.Detail)
	assert.Equal(t, first.ErrorCode, second.ErrorCode)
}

func TestMissingCredentialsRejected(t *testing.T) {
	fixture := newFlowFixture(t)

	req := signupRequest(lisbonIP)
	req.Password = ""
	_, err := fixture.service.BeginCredentialCheck(context.Background(), req)

	var verr *verrors.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.CodeInputInvalid, verr.Code)
}

func TestResumeRequiresValidFlowToken(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	missing := signupRequest(lisbonIP)
	_, err := fixture.service.CheckDevice(ctx, missing)
	var verr *verrors.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.CodeInputInvalid, verr.Code)

	garbage := signupRequest(lisbonIP)
	garbage.FlowToken = "not-a-token"
	_, err = fixture.service.CheckDevice(ctx, garbage)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.CodeInputInvalid, verr.Code)
}

func TestRepeatedCheckDeviceDoesNotReissueCode(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)
	require.Equal(t, StatusChallengeRequired, outcome.Status)
	delivered := len(fixture.mock.SentNotifications)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	again, err := fixture.service.CheckDevice(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusChallengeRequired, again.Status)
	assert.Equal(t, StateOtpChallenge, again.NextState)
	assert.Len(t, fixture.mock.SentNotifications, delivered, "an outstanding challenge must not be reissued")
}

func TestStateDerivedFromEvents(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	state, err := fixture.service.State(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateOtpChallenge, state)

	req.Code = fixture.lastCode(t)
	outcome, err = fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)

	req.FlowToken = outcome.FlowToken
	req.Code = ""
	state, err = fixture.service.State(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateLocationOtpChallenge, state)
}

func TestCompletedFlowIsTerminal(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	req.Code = fixture.lastCode(t)
	outcome, err = fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)

	// Keep the pre-completion token around; it stays valid after COMPLETE.
	resumeToken := outcome.FlowToken
	req.FlowToken = resumeToken
	req.Code = fixture.lastCode(t)
	outcome, err = fixture.service.VerifyLocationOtp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.NextState)

	req.FlowToken = resumeToken
	req.Code = ""
	again, err := fixture.service.CheckDevice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusAdvance, again.Status)
	assert.Equal(t, StateComplete, again.NextState)
}

func TestVerifyOtpRequiresCode(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	_, err = fixture.service.VerifyOtp(ctx, req)

	var verr *verrors.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.CodeInputInvalid, verr.Code)
}

func TestInvalidKindRejected(t *testing.T) {
	fixture := newFlowFixture(t)

	req := signupRequest(lisbonIP)
	req.Kind = Kind("reset")
	_, err := fixture.service.BeginCredentialCheck(context.Background(), req)

	var verr *verrors.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.CodeInputInvalid, verr.Code)
}

func TestAuthenticatorPasscodeSatisfiesChallenge(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)
	require.Equal(t, StateOtpChallenge, outcome.NextState)

	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	otpauthURL, err := fixture.service.EnrollTotp(ctx, req)
	require.NoError(t, err)

	provisioning, err := url.Parse(otpauthURL)
	require.NoError(t, err)
	secret := provisioning.Query().Get("secret")
	require.NotEmpty(t, secret)

	passcode, err := pqtotp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)

	req.Code = passcode
	verified, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, verified.Status)
	assert.Equal(t, StateLocationOtpChallenge, verified.NextState)
}

func TestDeliveryFailureKeepsFlowResumable(t *testing.T) {
	fixture := newFlowFixture(t)
	ctx := context.Background()

	fixture.mock.FailWith = assert.AnError
	outcome, err := fixture.service.BeginCredentialCheck(ctx, signupRequest(lisbonIP))
	require.NoError(t, err)

	assert.Equal(t, StatusChallengeRequired, outcome.Status)
	assert.Equal(t, StateOtpChallenge, outcome.NextState)
	assert.NotEmpty(t, outcome.FlowToken)

	// A resend succeeds once delivery recovers.
	fixture.mock.FailWith = nil
	req := signupRequest(lisbonIP)
	req.FlowToken = outcome.FlowToken
	resent, err := fixture.service.ChallengeOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, resent.Status)

	req.FlowToken = resent.FlowToken
	req.Code = fixture.lastCode(t)
	accepted, err := fixture.service.VerifyOtp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusChallengeRequired, accepted.Status)
	assert.Equal(t, StateLocationOtpChallenge, accepted.NextState)
}
