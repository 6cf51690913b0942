// Package geoip resolves attempt locations and scores them against the
// subject's history.
//
// # Overview
//
// The geoip package provides:
//   - IP geolocation through an ip-api style HTTP provider, degrading to
//     an unknown location on any provider failure
//   - Risk scoring against per-user location history, with a configurable
//     country denylist that dominates every other signal
//   - A proximity check against the signup coordinates when both sides
//     carry precise positions
//
// A score above the verification threshold demands a location code; the
// flow never blocks outright on a location signal.
package geoip
