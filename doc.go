// Package authvault is the local persistence and push-processing core of a
// multi-factor authentication client. It stores accounts, mechanisms, push
// notifications, and migration backups in an encrypted key-value store behind
// a write-through cache, turns inbound push messages into stored notifications
// exactly once, and drives the approve/deny decision state machine for each
// notification.
//
// The package is designed for concurrent workloads: Client methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authvault is the public surface. It exposes [Client], [Builder], [Config],
// the entity types ([Account], [Mechanism], [PushNotification]), and the
// collaborator contracts ([Enroller], [Responder], [MessageParser],
// [PushTransport]). Outcome dispatch lives under internal/ and is reached only
// through [Client.Outcomes].
//
// # What this package must NOT do
//
//   - Implement the OTP algorithm, network transport, or UI rendering; those
//     are collaborator concerns injected through the Builder.
//   - Mutate the in-memory cache before the backing store has confirmed the
//     corresponding write. The store is the source of truth; the cache is
//     derived state.
//   - Reprocess a message ID that already produced a notification, or move a
//     notification out of a terminal state.
package authvault
