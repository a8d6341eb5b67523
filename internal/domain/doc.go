// Package domain implements the seven SecHub scenario domains and the
// executor that picks one of them per iteration.
//
// Two weighted tables drive every iteration: the executor's table picks a
// domain (admin, security, parametric, notification, log, integration,
// planning) and the domain's own table picks one operation. An operation is
// a fixed chain of HTTP calls; each call records its duration into the
// domain trend and its check outcome into the domain and global error rates.
// Steps that need an identifier from an earlier failed step are skipped.
//
// # Basic Usage
//
//	exec, err := domain.NewExecutor(domain.Env{
//		Client:  c,
//		Metrics: reg,
//	}, domain.DefaultExecutorConfig())
//	if err != nil {
//		return err
//	}
//
//	rc := runstate.New(runID, token, baseURL, nil)
//	if err := exec.RunIteration(ctx, rc); err != nil {
//		// errs.ErrMissingToken or ctx.Err()
//	}
package domain
