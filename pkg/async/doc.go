// Package async provides safe concurrent execution primitives for background tasks.
//
// # Tracker
//
// Side effects that must not fail or slow a membership change run on a
// Tracker. Each task gets its own timeout and survives cancellation of the
// request that started it; failures and panics are logged.
//
//	tracker := async.NewTracker(logger)
//	tracker.Go(ctx, 5*time.Second, "audit member.add", fn)
//	_ = tracker.Wait(10 * time.Second) // on shutdown
//
// # Batch
//
// Bounded fan-out over a slice, built on errgroup. Failures come back in item
// order and never cancel the remaining items.
//
//	errs := async.Batch(ctx, logger, members, 4, "detach business", 10*time.Second, func(ctx context.Context, m business.Member) error {
//		return users.RemoveBusiness(ctx, m.UserID, businessID)
//	})
//
// # Related Packages
//
//   - pkg/membership: Uses Tracker for audit and notification sinks, Batch for user detachment
package async
