// The [collabwire] package implements a client-side synchronization engine
// for real-time collaborative code editing.
//
// # Sessions
//
// A [Coordinator] owns one logical editing session. Construct one with
// [NewCoordinator] and a [Config] from [NewConfig], then call
// [Coordinator.CreateSession] or [Coordinator.JoinSession]. Session
// registration happens over HTTP against the session-management endpoint;
// the live event stream runs on a persistent WebSocket channel that the
// coordinator opens right after registration.
//
// # Change Flow
//
// Local edits enter through [Coordinator.SendCodeChange]. They are
// coalesced by a debounce buffer, recorded as pending, and transmitted as
// an ordered batch. A pending change is cleared only by a server
// acknowledgment or by an explicit accept-remote resolution via
// [Coordinator.ResolveConflict].
//
// Remote changes are transformed against the pending local set before
// being emitted, so both sides converge on the same document without a
// central lock. Overlapping edits that cannot be transformed cleanly
// surface as [EventConflict] with a [ConflictError] payload.
//
// # Events
//
// The coordinator pushes everything through [Coordinator.Subscribe]:
// remote cursors, transformed changes, membership, conflicts and
// lifecycle transitions. Handlers run synchronously on the
// message-handling path, so they must not block.
//
// # Reliability
//
// The channel heartbeats on an interval and reconnects with capped
// exponential backoff after an unexpected drop. Pending changes survive a
// reconnect and are retransmitted in submission order once the channel is
// back; [EventReconnectFailed] fires once the attempt budget is spent,
// after which the session must be recreated.
//
// The wire format is CBOR via [github.com/collabwire/collabwire.go/pkg/codec];
// the envelope lives in [github.com/collabwire/collabwire.go/pkg/types].
package collabwire
