package dispatch

import "context"

// Result is the outcome of a submitted job.
type Result struct {
	done chan struct{}
	err  error
}

func newResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Resolved returns a Result that is already complete with err.
func Resolved(err error) *Result {
	r := newResult()
	r.resolve(err)
	return r
}

func (r *Result) resolve(err error) {
	r.err = err
	close(r.done)
}

// Done is closed once the job has finished.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err returns the job's error, or nil while it is still running.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is done.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
