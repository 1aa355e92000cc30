package chainnet_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mistifyio/chainnet"
	"github.com/stretchr/testify/suite"
)

type DispatchTestSuite struct {
	suite.Suite
}

func TestDispatchTestSuite(t *testing.T) {
	suite.Run(t, new(DispatchTestSuite))
}

func makeNodes(count int) chainnet.Nodes {
	nodes := make(chainnet.Nodes, count)
	for i := range nodes {
		nodes[i] = &chainnet.Node{ID: fmt.Sprintf("i-%02d", i)}
	}
	return nodes
}

func (s *DispatchTestSuite) TestRunsEveryNode() {
	nodes := makeNodes(12)
	for limit := 1; limit <= len(nodes); limit++ {
		var calls int32
		results := chainnet.Dispatch(context.Background(), nodes, limit, func(context.Context, *chainnet.Node) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		s.Equal(int32(len(nodes)), atomic.LoadInt32(&calls), "limit %d", limit)
		s.Len(results, len(nodes))
		s.NoError(results.Err())
	}
}

func (s *DispatchTestSuite) TestResultsInNodeOrder() {
	nodes := makeNodes(8)
	results := chainnet.Dispatch(context.Background(), nodes, 3, func(_ context.Context, n *chainnet.Node) error {
		return nil
	})
	s.Equal(nodes.IDs(), sortedIDs(results))
	for i, r := range results {
		s.Equal(nodes[i].ID, r.NodeID)
		s.False(r.FinishedAt.Before(r.StartedAt))
	}
}

func (s *DispatchTestSuite) TestConcurrencyBound() {
	nodes := makeNodes(20)
	for _, limit := range []int{1, 3, 7} {
		var active, peak int32
		chainnet.Dispatch(context.Background(), nodes, limit, func(context.Context, *chainnet.Node) error {
			now := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
		s.True(atomic.LoadInt32(&peak) <= int32(limit), "limit %d peak %d", limit, peak)
		s.True(atomic.LoadInt32(&peak) >= 1)
	}
}

func (s *DispatchTestSuite) TestEmpty() {
	called := false
	results := chainnet.Dispatch(context.Background(), nil, 4, func(context.Context, *chainnet.Node) error {
		called = true
		return nil
	})
	s.False(called)
	s.Empty(results)
	s.NoError(results.Err())
}

func (s *DispatchTestSuite) TestFailuresDoNotStopSiblings() {
	nodes := makeNodes(6)
	var calls int32
	results := chainnet.Dispatch(context.Background(), nodes, 2, func(_ context.Context, n *chainnet.Node) error {
		atomic.AddInt32(&calls, 1)
		switch n.ID {
		case "i-01":
			return errBoom
		case "i-03":
			panic("kaboom")
		}
		return nil
	})

	s.Equal(int32(6), atomic.LoadInt32(&calls))
	s.Len(results.Succeeded(), 4)

	failed := results.Failed()
	s.Require().Len(failed, 2)
	s.Equal("i-01", failed[0].NodeID)
	s.Equal(errBoom, failed[0].Err)
	s.Equal("i-03", failed[1].NodeID)
	s.Contains(failed[1].Err.Error(), "kaboom")

	err := results.Err()
	s.Require().Error(err)
	s.Contains(err.Error(), "instance i-01: boom")
	s.Contains(err.Error(), "instance i-03")
}

func (s *DispatchTestSuite) TestAlwaysFailing() {
	results := chainnet.Dispatch(context.Background(), chainnet.Nodes{{ID: "A"}}, 1, func(context.Context, *chainnet.Node) error {
		return errBoom
	})
	s.Require().Len(results, 1)
	s.Equal(errBoom, results[0].Err)
}

func (s *DispatchTestSuite) TestCollectsIntoSet() {
	nodes := chainnet.Nodes{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	var mu sync.Mutex
	seen := map[string]struct{}{}
	chainnet.Dispatch(context.Background(), nodes, 2, func(_ context.Context, n *chainnet.Node) error {
		mu.Lock()
		defer mu.Unlock()
		seen[n.ID] = struct{}{}
		return nil
	})
	s.Equal(map[string]struct{}{"A": {}, "B": {}, "C": {}}, seen)
}

func (s *DispatchTestSuite) TestNonPositiveLimit() {
	nodes := makeNodes(5)
	var calls int32
	results := chainnet.Dispatch(context.Background(), nodes, 0, func(context.Context, *chainnet.Node) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	s.Equal(int32(5), atomic.LoadInt32(&calls))
	s.Len(results, 5)
}

func (s *DispatchTestSuite) TestAlwaysPanicking() {
	results := chainnet.Dispatch(context.Background(), chainnet.Nodes{{ID: "A"}}, 1, func(context.Context, *chainnet.Node) error {
		panic("always")
	})
	s.Require().Len(results, 1)
	s.Equal("A", results[0].NodeID)
	s.EqualError(results[0].Err, "panic: always")
	s.False(results[0].FinishedAt.IsZero())
}

func (s *DispatchTestSuite) TestNilNode() {
	var calls int32
	results := chainnet.Dispatch(context.Background(), chainnet.Nodes{{ID: "A"}, nil, {ID: "C"}}, 2, func(context.Context, *chainnet.Node) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	s.Equal(int32(2), atomic.LoadInt32(&calls))
	s.Require().Len(results, 3)
	s.NoError(results[0].Err)
	s.Error(results[1].Err)
	s.NoError(results[2].Err)
	s.Equal("C", results[2].NodeID)
}
