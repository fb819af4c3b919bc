// Package conversation keeps the local view of a one-to-one chat in sync
// with the remote message store.
//
// # Overview
//
// The Store is the only type a presentation layer touches. It combines
// request/response calls (user roster, history, send, mark read) with push
// events delivered on a shared realtime.Channel, all keyed off the currently
// selected counterpart.
//
//	store := conversation.NewStore(apiClient, socket, conversation.Options{
//		Logger:   logger,
//		Notifier: notifier,
//		Self:     &me,
//	})
//	defer store.Close()
//
//	err := store.Open(ctx, bob) // select, subscribe, load history
//
// # Selection and Subscriptions
//
// At most one counterpart is selected. SelectUser releases the current
// subscription and clears messages and typing users before switching, so
// handlers registered for the previous counterpart never touch the new
// conversation. Subscribe registers four listeners (newMessage,
// typing:start, typing:stop, message:read) and keeps their release funcs in
// a subscription that is released exactly once.
//
// # Event Handling
//
//   - newMessage: appended only when sent by the selected counterpart
//   - typing:start: adds the counterpart to the typing set, no duplicates
//   - typing:stop: removes the sender whether or not it was typing
//   - message:read: flags the matching loaded message, drops unknown IDs
//
// # Observing State
//
// Snapshot returns a deep copy of the current State. Watch streams a
// snapshot after every mutation; slow watchers miss snapshots rather than
// blocking the store.
//
// # Known Limitations
//
// In-flight history fetches are not cancelled when the selection changes, so
// a slow response for a previous counterpart can replace the current
// history. Incoming messages are not de-duplicated unless a dedupe.Window is
// supplied in Options.
package conversation
