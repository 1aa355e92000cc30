package chainnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/tomb.v2"
)

// DefaultWorkers is the fan-out pool size used when no positive limit is given
const DefaultWorkers = 100

type (
	// Operation is a unit of work run against a single node
	Operation func(context.Context, *Node) error

	// Result is the outcome of an Operation on one node
	Result struct {
		NodeID     string
		Err        error
		StartedAt  time.Time
		FinishedAt time.Time
	}

	// Results holds one Result per dispatched node, in dispatch order
	Results []Result

	// task pairs a node with its slot in the Results
	task struct {
		index int
		node  *Node
	}
)

// Duration is how long the operation ran
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OK reports whether the operation succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Failed returns the results with an error
func (rs Results) Failed() Results {
	failed := Results{}
	for _, r := range rs {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Succeeded returns the results without an error
func (rs Results) Succeeded() Results {
	ok := Results{}
	for _, r := range rs {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	return ok
}

// Err aggregates the per-node errors. It is nil when every node succeeded.
func (rs Results) Err() error {
	var errs *multierror.Error
	for _, r := range rs.Failed() {
		errs = multierror.Append(errs, fmt.Errorf("instance %s: %w", r.NodeID, r.Err))
	}
	return errs.ErrorOrNil()
}

// Dispatch runs op once for every node using at most limit concurrent workers
// and returns after all of them have finished. A failing or panicking op does
// not affect the others; its error is recorded in that node's Result. The
// returned Results are in the same order as nodes.
func Dispatch(ctx context.Context, nodes Nodes, limit int, op Operation) Results {
	results := make(Results, len(nodes))
	if len(nodes) == 0 {
		return results
	}

	if limit < 1 {
		limit = DefaultWorkers
	}
	if limit > len(nodes) {
		limit = len(nodes)
	}

	// Workers block on the queue until it is closed, so every t.Go call
	// happens before any worker can return.
	queue := make(chan task)
	var t tomb.Tomb
	for i := 0; i < limit; i++ {
		t.Go(func() error {
			for tk := range queue {
				results[tk.index] = invoke(ctx, tk.node, op)
			}
			return nil
		})
	}

	for i, n := range nodes {
		queue <- task{index: i, node: n}
	}
	close(queue)

	_ = t.Wait()
	return results
}

// invoke runs op for a single node, turning a panic into an error
func invoke(ctx context.Context, n *Node, op Operation) (r Result) {
	r = Result{StartedAt: time.Now()}
	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("panic: %v", p)
		}
		r.FinishedAt = time.Now()
	}()

	if n == nil {
		r.Err = errors.New("nil node")
		return r
	}
	r.NodeID = n.ID
	r.Err = op(ctx, n)
	return r
}
