package deviceid

import "time"

// MatchPolicy sets how many hybrid components must agree before two
// identities count as the same device.
type MatchPolicy int

const (
	// MatchAny accepts a single agreeing component. This favors low OTP
	// friction and accepts a higher impersonation false-negative rate;
	// tightening it is a product decision, not a code default.
	MatchAny MatchPolicy = iota + 1

	// MatchTwo requires two of the three components to agree.
	MatchTwo
)

func (p MatchPolicy) requiredMatches() int {
	if p == MatchTwo {
		return 2
	}
	return 1
}

// Matcher compares device identities under a policy.
type Matcher struct {
	policy MatchPolicy

	// migrationDeadline bounds the legacy-to-hybrid continuity allowance.
	// Until the deadline, any legacy identity is treated as the same device
	// as any hybrid one so stored records can be upgraded in place. A zero
	// deadline leaves the window open.
	migrationDeadline time.Time

	now func() time.Time
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMatchPolicy sets the component-agreement policy.
func WithMatchPolicy(policy MatchPolicy) MatcherOption {
	return func(m *Matcher) {
		m.policy = policy
	}
}

// WithMigrationDeadline closes the legacy continuity window at the given
// time. After the deadline legacy identifiers only match by exact string
// equality.
func WithMigrationDeadline(deadline time.Time) MatcherOption {
	return func(m *Matcher) {
		m.migrationDeadline = deadline
	}
}

// WithMatcherClock overrides the time source for tests.
func WithMatcherClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		m.now = now
	}
}

// NewMatcher creates a matcher with the MatchAny policy and an open
// migration window.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		policy: MatchAny,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SameDevice reports whether a and b identify the same device. The relation
// is symmetric:
//
//   - two hybrids match when enough components agree under the policy,
//   - a legacy identity matches any hybrid while the migration window is
//     open,
//   - everything else falls back to exact string equality.
func (m *Matcher) SameDevice(a, b Identity) bool {
	if a.Scheme == SchemeHybrid && b.Scheme == SchemeHybrid {
		return m.countComponentMatches(a, b) >= m.policy.requiredMatches()
	}

	if (a.Scheme == SchemeLegacyRandom && b.Scheme == SchemeHybrid) ||
		(a.Scheme == SchemeHybrid && b.Scheme == SchemeLegacyRandom) {
		return m.migrationOpen()
	}

	return a.RawID != "" && a.RawID == b.RawID
}

// Migrate returns the identifier to persist after observing observedRawID
// against the stored storedRawID. A legacy-to-hybrid transition inside the
// migration window upgrades the stored value; everything else passes
// through unchanged. Applying Migrate to its own output is a no-op.
func (m *Matcher) Migrate(storedRawID, observedRawID string) string {
	stored := Parse(storedRawID)
	observed := Parse(observedRawID)

	if stored.Scheme == SchemeLegacyRandom && observed.Scheme == SchemeHybrid && m.migrationOpen() {
		return observed.RawID
	}
	return storedRawID
}

func (m *Matcher) migrationOpen() bool {
	return m.migrationDeadline.IsZero() || m.now().Before(m.migrationDeadline)
}

func (m *Matcher) countComponentMatches(a, b Identity) int {
	matches := 0
	if componentsMatch(a.PersistentID, b.PersistentID) {
		matches++
	}
	if componentsMatch(a.HardwareFingerprint, b.HardwareFingerprint) {
		matches++
	}
	if componentsMatch(a.IPHash, b.IPHash) {
		matches++
	}
	return matches
}

// componentsMatch ignores empty and sentinel components so an unknown
// identity never matches anything through its placeholders.
func componentsMatch(a, b string) bool {
	if a == "" || b == "" || a == UnknownComponent || b == UnknownComponent {
		return false
	}
	return a == b
}
