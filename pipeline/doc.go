// Package pipeline is the caller-facing surface: fetch-or-cache, evaluate,
// freeze and replay.
//
// A Pipeline owns one live cache namespace and an active namespace that
// FetchOrCache reads from. Replay switches the active namespace to a frozen
// scenario; Live switches back. The switch is per Pipeline, so a live and a
// replaying caller can run side by side in one process.
//
// A typical cycle:
//
//	snaps, err := p.FetchOrCache(ctx, pipeline.Request{Identities: ids, Category: "income"})
//	if err != nil {
//	    return err
//	}
//	snaps, _ = p.RetryFailed(ctx, req, snaps)
//	cycle := p.Evaluate(ctx, snaps)
//	exhausted := queue.Update(cycle)
//
// Records left AWAIT_CONFIRMATION are tracked by a WaitQueue, which builds
// the next cycle's request and reports identities that ran out of cycles.
package pipeline
