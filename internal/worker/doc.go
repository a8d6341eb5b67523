// Package worker runs virtual users (VUs) for a load test.
//
// A VUPool owns one goroutine per VU. Each VU calls the same Iteration
// function in a loop until it is retired or the pool stops. The number of
// VUs is changed at any time with Scale, which is how the scenario engine
// follows a staged ramp.
//
// # Basic Usage
//
//	pool := worker.NewVUPool(func(ctx context.Context, vu int) error {
//	    return exec.RunIteration(ctx, rc)
//	}, worker.DefaultPoolConfig())
//	pool.Start(ctx)
//
//	pool.Scale(10) // ramp up
//	time.Sleep(time.Minute)
//	pool.Scale(2)  // retire 8 VUs after their current iteration
//
//	aborted := pool.Stop()
//
// # Graceful Stop
//
// Stop retires every VU and waits up to PoolConfig.GracefulStop for
// in-flight iterations. Iterations still running after that are interrupted
// by cancelling their context and are counted as aborted.
//
// # Errors
//
// An iteration error is passed to the handler set with OnError and counted
// as an aborted iteration. A fatal error (errs.IsFatal) stops only the VU
// that hit it.
package worker
