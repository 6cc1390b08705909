// Package resilience retries transient failures of cache persistence.
//
// Writes to a shared cache directory can fail transiently (NFS hiccups,
// a concurrent rename, a full quota that a cleaner frees). A Retry runs an
// operation a bounded number of times with backoff and reports the last
// error wrapped in ErrRetriesExhausted. Errors marked with Permanent are
// returned immediately.
//
//	r := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 10 * time.Millisecond,
//	})
//	err := r.Execute(ctx, func(ctx context.Context) error {
//	    return disk.WriteIndex(ctx, table)
//	})
package resilience
