// Package ledger is the append-only event trail behind the verification
// engine. Flow state is reconstructed from the latest events for a subject
// rather than held in server memory.
package ledger
