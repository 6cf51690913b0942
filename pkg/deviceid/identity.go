package deviceid

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/verifid/verifid/pkg/utils"
)

// Scheme identifies the format of a device identifier.
type Scheme string

const (
	// SchemeLegacyRandom is the pre-hybrid format: an opaque random UUID
	// handed to the client on first visit.
	SchemeLegacyRandom Scheme = "legacy-random"

	// SchemeHardware is a bare hardware fingerprint with no IP or
	// persistent-token component.
	SchemeHardware Scheme = "hardware"

	// SchemeHybrid is the current format combining an IP hash, a hardware
	// fingerprint, and a client-persisted random token.
	SchemeHybrid Scheme = "hybrid"

	// SchemeUnknown is the fallback for malformed input. Parsing never
	// fails; unparseable identifiers degrade to unknown.
	SchemeUnknown Scheme = "unknown"
)

const (
	hybridPrefix = "hybrid-"

	// UnknownComponent is the sentinel filled into every component of an
	// unknown identity. Sentinel components never count as matches.
	UnknownComponent = "unknown"

	// componentHashLength is the truncated hex length of the IP and
	// hardware hashes inside a hybrid identifier.
	componentHashLength = 12
)

// HardwareProfile is the stable characteristic tuple a client reports.
// Individually weak signals; hashed together they survive IP churn.
type HardwareProfile struct {
	Platform            string
	ScreenResolution    string
	HardwareConcurrency int
	TouchPoints         int
	ColorDepth          int
	PixelRatio          string
}

// Identity is a parsed device identifier.
type Identity struct {
	Scheme              Scheme `json:"scheme"`
	IPHash              string `json:"ip_hash,omitempty"`
	HardwareFingerprint string `json:"hardware_fingerprint,omitempty"`
	PersistentID        string `json:"persistent_id,omitempty"`
	RawID               string `json:"raw_id"`
}

// HashHardwareProfile derives the truncated hardware fingerprint from the
// characteristic tuple.
func HashHardwareProfile(hw HardwareProfile) string {
	combined := fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		hw.Platform,
		hw.ScreenResolution,
		hw.HardwareConcurrency,
		hw.TouchPoints,
		hw.ColorDepth,
		hw.PixelRatio,
	)
	return utils.TruncatedHash(combined, componentHashLength)
}

// DeriveHybrid combines the client IP, the hardware tuple, and the
// client-persisted token into a hybrid identity. The IP and hardware
// components are truncated hashes; the persistent token is carried as-is.
func DeriveHybrid(clientIP string, hw HardwareProfile, persistentToken string) Identity {
	ipHash := utils.TruncatedHash(strings.TrimSpace(clientIP), componentHashLength)
	hwFingerprint := HashHardwareProfile(hw)

	persistentToken = strings.TrimSpace(persistentToken)
	if persistentToken == "" {
		persistentToken = uuid.New().String()
	}

	return Identity{
		Scheme:              SchemeHybrid,
		IPHash:              ipHash,
		HardwareFingerprint: hwFingerprint,
		PersistentID:        persistentToken,
		RawID:               hybridPrefix + ipHash + "-" + hwFingerprint + "-" + persistentToken,
	}
}

// Parse decodes a raw identifier into an Identity. It handles hybrid
// strings, legacy random UUIDs, and malformed input; the last degrades to an
// unknown identity rather than returning an error.
func Parse(rawID string) Identity {
	rawID = strings.TrimSpace(rawID)

	if strings.HasPrefix(rawID, hybridPrefix) {
		rest := strings.TrimPrefix(rawID, hybridPrefix)
		// The persistent token may itself contain dashes (UUIDs do), so
		// only the first two separators delimit components.
		parts := strings.SplitN(rest, "-", 3)
		if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
			return Identity{
				Scheme:              SchemeHybrid,
				IPHash:              parts[0],
				HardwareFingerprint: parts[1],
				PersistentID:        parts[2],
				RawID:               rawID,
			}
		}
		return unknownIdentity(rawID)
	}

	if _, err := uuid.Parse(rawID); err == nil {
		return Identity{
			Scheme: SchemeLegacyRandom,
			RawID:  rawID,
		}
	}

	return unknownIdentity(rawID)
}

func unknownIdentity(rawID string) Identity {
	return Identity{
		Scheme:              SchemeUnknown,
		IPHash:              UnknownComponent,
		HardwareFingerprint: UnknownComponent,
		PersistentID:        UnknownComponent,
		RawID:               rawID,
	}
}

// ExtractHardwareProfile reads the client-reported hardware characteristics
// from request headers. Missing or malformed values default to zero; the
// resulting fingerprint is still stable for that client.
func ExtractHardwareProfile(r *http.Request) HardwareProfile {
	return HardwareProfile{
		Platform:            r.Header.Get("X-Device-Platform"),
		ScreenResolution:    r.Header.Get("X-Screen-Resolution"),
		HardwareConcurrency: headerInt(r, "X-Hardware-Concurrency"),
		TouchPoints:         headerInt(r, "X-Touch-Points"),
		ColorDepth:          headerInt(r, "X-Color-Depth"),
		PixelRatio:          r.Header.Get("X-Pixel-Ratio"),
	}
}

func headerInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.Header.Get(name))
	if err != nil {
		return 0
	}
	return v
}
