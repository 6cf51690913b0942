// Package deviceid provides device identity resolution, matching, and trust
// for the verification engine.
//
// # Overview
//
// The deviceid package provides:
//   - Hybrid device identifiers built from network, hardware, and
//     persistent-token components
//   - Legacy random-UUID identifiers, supported through a time-boxed
//     migration window
//   - Component-wise matching with a configurable policy (any component,
//     or two of three)
//   - Standing trust grants with expiry, so a verified device skips the
//     code challenge on later attempts
//
// # Identity Formats
//
// A hybrid identifier is the composite
//
//	hybrid-{ipHash}-{hwFingerprint}-{persistentId}
//
// where the first two components are truncated SHA-256 digests of the
// client network address and hardware characteristics, and persistentId is
// a client-held token. Anything that fails to parse degrades to an unknown
// identity that matches nothing.
//
// # Basic Usage
//
//	service := deviceid.NewService(
//		repo,
//		deviceid.NewMatcher(),
//		deviceid.WithTrustDays(90),
//	)
//
//	observed := deviceid.DeriveHybrid(clientIP, hardware, persistentToken)
//	trusted, err := service.IsTrusted(ctx, subjectUserID, observed)
package deviceid
