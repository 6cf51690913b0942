package deviceid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustAndIsTrusted(t *testing.T) {
	repo := NewInMemTrustedDeviceRepository()
	service := NewService(repo, NewMatcher())
	ctx := context.Background()

	identity := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-1")
	_, err := service.Trust(ctx, "user-1", identity, "Lisbon", "Portugal")
	require.NoError(t, err)

	trusted, err := service.IsTrusted(ctx, "user-1", identity)
	require.NoError(t, err)
	assert.True(t, trusted)

	// Same persistent token from a new network still matches.
	roaming := DeriveHybrid("198.51.100.9", HardwareProfile{Platform: "Other"}, "persist-1")
	trusted, err = service.IsTrusted(ctx, "user-1", roaming)
	require.NoError(t, err)
	assert.True(t, trusted)

	// Another user has no grants.
	trusted, err = service.IsTrusted(ctx, "user-2", identity)
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestIsTrustedExpiredGrant(t *testing.T) {
	repo := NewInMemTrustedDeviceRepository()
	service := NewService(repo, NewMatcher(), WithTrustDays(-1))
	ctx := context.Background()

	identity := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-1")
	_, err := service.Trust(ctx, "user-1", identity, "Lisbon", "Portugal")
	require.NoError(t, err)

	trusted, err := service.IsTrusted(ctx, "user-1", identity)
	require.NoError(t, err)
	assert.False(t, trusted, "expired grants must not confer trust")
}

func TestIsTrustedMigratesLegacyRecordInPlace(t *testing.T) {
	repo := NewInMemTrustedDeviceRepository()
	service := NewService(repo, NewMatcher())
	ctx := context.Background()

	legacyRaw := uuid.New().String()
	_, err := service.Trust(ctx, "user-1", Parse(legacyRaw), "Lisbon", "Portugal")
	require.NoError(t, err)

	observed := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-1")
	trusted, err := service.IsTrusted(ctx, "user-1", observed)
	require.NoError(t, err)
	require.True(t, trusted)

	// The stored record now carries the hybrid identifier; the one-time
	// continuity allowance is spent for this record.
	records, err := repo.FindTrustedDevicesByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, observed.RawID, records[0].DeviceRawID)
}
