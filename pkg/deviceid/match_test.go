package deviceid

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func hybridIdentity(ipHash, hwFingerprint, persistentID string) Identity {
	return Identity{
		Scheme:              SchemeHybrid,
		IPHash:              ipHash,
		HardwareFingerprint: hwFingerprint,
		PersistentID:        persistentID,
		RawID:               hybridPrefix + ipHash + "-" + hwFingerprint + "-" + persistentID,
	}
}

func TestSameDeviceAnyComponentMatches(t *testing.T) {
	matcher := NewMatcher()
	base := hybridIdentity("aaa", "bbb", "ccc")

	tests := []struct {
		name  string
		other Identity
		want  bool
	}{
		{"persistent id only", hybridIdentity("xxx", "yyy", "ccc"), true},
		{"hardware fingerprint only", hybridIdentity("xxx", "bbb", "zzz"), true},
		{"ip hash only", hybridIdentity("aaa", "yyy", "zzz"), true},
		{"nothing matches", hybridIdentity("xxx", "yyy", "zzz"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.SameDevice(base, tt.other))
		})
	}
}

func TestSameDeviceSymmetry(t *testing.T) {
	matchers := []*Matcher{
		NewMatcher(),
		NewMatcher(WithMatchPolicy(MatchTwo)),
		NewMatcher(WithMigrationDeadline(time.Now().Add(-time.Hour))),
	}

	legacy := Parse(uuid.New().String())
	unknown := Parse("garbage")
	identities := []Identity{
		hybridIdentity("aaa", "bbb", "ccc"),
		hybridIdentity("aaa", "yyy", "zzz"),
		hybridIdentity("xxx", "yyy", "zzz"),
		legacy,
		unknown,
	}

	for _, matcher := range matchers {
		for _, a := range identities {
			for _, b := range identities {
				assert.Equal(t, matcher.SameDevice(a, b), matcher.SameDevice(b, a),
					"symmetry violated for %q vs %q", a.RawID, b.RawID)
			}
		}
	}
}

func TestSameDeviceMatchTwoPolicy(t *testing.T) {
	matcher := NewMatcher(WithMatchPolicy(MatchTwo))
	base := hybridIdentity("aaa", "bbb", "ccc")

	assert.False(t, matcher.SameDevice(base, hybridIdentity("aaa", "yyy", "zzz")),
		"one matching component must not satisfy the two-match policy")
	assert.True(t, matcher.SameDevice(base, hybridIdentity("aaa", "bbb", "zzz")))
	assert.True(t, matcher.SameDevice(base, hybridIdentity("aaa", "bbb", "ccc")))
}

func TestSameDeviceUnknownComponentsNeverMatch(t *testing.T) {
	matcher := NewMatcher()
	a := Parse("garbage-one")
	b := Parse("garbage-two")

	// Both degrade to unknown identities with sentinel components; the
	// sentinels must not count as agreement.
	assert.False(t, matcher.SameDevice(a, b))
}

func TestSameDeviceLegacyHybridInsideWindow(t *testing.T) {
	matcher := NewMatcher()
	legacy := Parse(uuid.New().String())
	hybrid := hybridIdentity("aaa", "bbb", "ccc")

	assert.True(t, matcher.SameDevice(legacy, hybrid))
	assert.True(t, matcher.SameDevice(hybrid, legacy))
}

func TestSameDeviceLegacyHybridAfterDeadline(t *testing.T) {
	matcher := NewMatcher(WithMigrationDeadline(time.Now().Add(-time.Minute)))
	legacy := Parse(uuid.New().String())
	hybrid := hybridIdentity("aaa", "bbb", "ccc")

	assert.False(t, matcher.SameDevice(legacy, hybrid))
}

func TestSameDeviceLegacyExactEquality(t *testing.T) {
	matcher := NewMatcher()
	raw := uuid.New().String()

	assert.True(t, matcher.SameDevice(Parse(raw), Parse(raw)))
	assert.False(t, matcher.SameDevice(Parse(raw), Parse(uuid.New().String())))
}

func TestMigrateUpgradesLegacyToHybrid(t *testing.T) {
	matcher := NewMatcher()
	legacyRaw := uuid.New().String()
	hybridRaw := hybridIdentity("aaa", "bbb", "ccc").RawID

	assert.Equal(t, hybridRaw, matcher.Migrate(legacyRaw, hybridRaw))
}

func TestMigrateIdempotent(t *testing.T) {
	matcher := NewMatcher()
	legacyRaw := uuid.New().String()
	hybridRaw := hybridIdentity("aaa", "bbb", "ccc").RawID

	once := matcher.Migrate(legacyRaw, hybridRaw)
	twice := matcher.Migrate(once, hybridRaw)
	assert.Equal(t, once, twice)
}

func TestMigratePassesThroughNonLegacy(t *testing.T) {
	matcher := NewMatcher()
	hybridRaw := hybridIdentity("aaa", "bbb", "ccc").RawID
	otherHybrid := hybridIdentity("xxx", "yyy", "zzz").RawID

	assert.Equal(t, hybridRaw, matcher.Migrate(hybridRaw, otherHybrid))
	assert.Equal(t, "garbage", matcher.Migrate("garbage", otherHybrid))
}

func TestMigrateClosedWindow(t *testing.T) {
	matcher := NewMatcher(WithMigrationDeadline(time.Now().Add(-time.Minute)))
	legacyRaw := uuid.New().String()
	hybridRaw := hybridIdentity("aaa", "bbb", "ccc").RawID

	assert.Equal(t, legacyRaw, matcher.Migrate(legacyRaw, hybridRaw))
}
