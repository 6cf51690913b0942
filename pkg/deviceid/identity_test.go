package deviceid

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHardware() HardwareProfile {
	return HardwareProfile{
		Platform:            "MacIntel",
		ScreenResolution:    "2560x1440",
		HardwareConcurrency: 8,
		TouchPoints:         0,
		ColorDepth:          30,
		PixelRatio:          "2",
	}
}

func TestDeriveHybrid(t *testing.T) {
	identity := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-token-1")

	assert.Equal(t, SchemeHybrid, identity.Scheme)
	assert.Len(t, identity.IPHash, 12)
	assert.Len(t, identity.HardwareFingerprint, 12)
	assert.Equal(t, "persist-token-1", identity.PersistentID)
	assert.Equal(t, "hybrid-"+identity.IPHash+"-"+identity.HardwareFingerprint+"-persist-token-1", identity.RawID)
}

func TestDeriveHybridIsStable(t *testing.T) {
	a := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-token-1")
	b := DeriveHybrid("203.0.113.7", sampleHardware(), "persist-token-1")
	assert.Equal(t, a.RawID, b.RawID)
}

func TestDeriveHybridGeneratesPersistentTokenWhenMissing(t *testing.T) {
	identity := DeriveHybrid("203.0.113.7", sampleHardware(), "")
	require.NotEmpty(t, identity.PersistentID)
	_, err := uuid.Parse(identity.PersistentID)
	assert.NoError(t, err)
}

func TestParseHybrid(t *testing.T) {
	derived := DeriveHybrid("203.0.113.7", sampleHardware(), uuid.New().String())

	parsed := Parse(derived.RawID)
	assert.Equal(t, SchemeHybrid, parsed.Scheme)
	assert.Equal(t, derived.IPHash, parsed.IPHash)
	assert.Equal(t, derived.HardwareFingerprint, parsed.HardwareFingerprint)
	// The persistent token contains dashes; parsing must not split it.
	assert.Equal(t, derived.PersistentID, parsed.PersistentID)
}

func TestParseLegacyUUID(t *testing.T) {
	raw := uuid.New().String()
	parsed := Parse(raw)
	assert.Equal(t, SchemeLegacyRandom, parsed.Scheme)
	assert.Equal(t, raw, parsed.RawID)
}

func TestParseMalformedFallsBackToUnknown(t *testing.T) {
	for _, raw := range []string{"", "garbage", "hybrid-", "hybrid-a-b", "hybrid--x-y"} {
		parsed := Parse(raw)
		assert.Equal(t, SchemeUnknown, parsed.Scheme, "input %q", raw)
		assert.Equal(t, UnknownComponent, parsed.PersistentID, "input %q", raw)
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	raw := uuid.New().String()
	parsed := Parse("  " + raw + "\n")
	assert.Equal(t, SchemeLegacyRandom, parsed.Scheme)
	assert.Equal(t, raw, parsed.RawID)
}

func TestExtractHardwareProfile(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	r.Header.Set("X-Device-Platform", "Linux x86_64")
	r.Header.Set("X-Screen-Resolution", "1920x1080")
	r.Header.Set("X-Hardware-Concurrency", "16")
	r.Header.Set("X-Touch-Points", "0")
	r.Header.Set("X-Color-Depth", "24")
	r.Header.Set("X-Pixel-Ratio", "1")

	hw := ExtractHardwareProfile(r)
	assert.Equal(t, "Linux x86_64", hw.Platform)
	assert.Equal(t, 16, hw.HardwareConcurrency)
	assert.Equal(t, 24, hw.ColorDepth)
}

func TestExtractHardwareProfileMalformedHeadersDefaultToZero(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	r.Header.Set("X-Hardware-Concurrency", "not-a-number")

	hw := ExtractHardwareProfile(r)
	assert.Equal(t, 0, hw.HardwareConcurrency)
}
