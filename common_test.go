package chainnet_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mistifyio/chainnet"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

type fakeInventory struct {
	mu         sync.Mutex
	nodes      chainnet.Nodes
	listErr    error
	launched   []chainnet.LaunchSpec
	terminated []chainnet.Selector
	started    []chainnet.Selector
	stopped    []chainnet.Selector
}

func (f *fakeInventory) List(_ context.Context, sel chainnet.Selector) (chainnet.Nodes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	nodes := chainnet.Nodes{}
	for _, n := range f.nodes {
		if sel.Matches(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (f *fakeInventory) Create(_ context.Context, spec chainnet.LaunchSpec) (chainnet.Nodes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.launched = append(f.launched, spec)
	nodes := make(chainnet.Nodes, spec.Count)
	for i := range nodes {
		nodes[i] = &chainnet.Node{ID: "i-new", State: chainnet.StatePending, Tags: spec.Tags}
	}
	return nodes, nil
}

func (f *fakeInventory) Terminate(_ context.Context, sel chainnet.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, sel)
	return nil
}

func (f *fakeInventory) Start(_ context.Context, sel chainnet.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, sel)
	return nil
}

func (f *fakeInventory) Stop(_ context.Context, sel chainnet.Selector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, sel)
	return nil
}

type fakeSession struct {
	mu       sync.Mutex
	node     string
	output   []string
	failOn   map[string]error
	panicOn  string
	commands []string
	closed   bool
}

func (s *fakeSession) Exec(_ context.Context, command string, out chainnet.OutputFunc) error {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()

	for _, line := range s.output {
		out(chainnet.Stdout, line)
	}
	if command == s.panicOn {
		panic("session crashed running " + command)
	}
	if err, ok := s.failOn[command]; ok {
		out(chainnet.Stderr, err.Error())
		return err
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.commands...)
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	dialErr  map[string]error
	failOn   map[string]map[string]error
	panicOn  map[string]string
	output   []string
	dials    int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		sessions: map[string]*fakeSession{},
		dialErr:  map[string]error{},
		failOn:   map[string]map[string]error{},
		panicOn:  map[string]string{},
	}
}

func (d *fakeDialer) Dial(_ context.Context, n *chainnet.Node) (chainnet.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if err, ok := d.dialErr[n.ID]; ok {
		return nil, err
	}
	s := &fakeSession{node: n.ID, output: d.output, failOn: d.failOn[n.ID], panicOn: d.panicOn[n.ID]}
	d.sessions[n.ID] = s
	return s, nil
}

func (d *fakeDialer) Session(id string) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[id]
}

var errBoom = errors.New("boom")

// CommonTestSuite provides a context backed by in-memory doubles and a log hook
type CommonTestSuite struct {
	suite.Suite
	Inventory *fakeInventory
	Dialer    *fakeDialer
	Context   *chainnet.Context
	Network   *chainnet.Network
	LogHook   *logtest.Hook
}

func (s *CommonTestSuite) SetupTest() {
	s.LogHook = logtest.NewGlobal()
	logrus.SetLevel(logrus.InfoLevel)

	s.Inventory = &fakeInventory{}
	s.Dialer = newFakeDialer()
	s.Context = chainnet.NewContext(s.Inventory, s.Dialer, nil)
	s.Network = s.Context.NewNetwork("7")
}

func (s *CommonTestSuite) TearDownTest() {
	s.LogHook.Reset()
}

// AddNode adds a node to the fake inventory
func (s *CommonTestSuite) AddNode(id, network string, state chainnet.NodeState) *chainnet.Node {
	n := &chainnet.Node{
		ID:      id,
		Address: "10.0.0." + id,
		State:   state,
		Tags: map[string]string{
			chainnet.TagType:      chainnet.DefaultProduct.Name,
			chainnet.TagNetworkID: network,
		},
	}
	s.Inventory.nodes = append(s.Inventory.nodes, n)
	return n
}

// EntriesFor returns the logged messages tagged with an instance id
func (s *CommonTestSuite) EntriesFor(id string) []*logrus.Entry {
	entries := []*logrus.Entry{}
	for _, e := range s.LogHook.AllEntries() {
		if e.Data["instance"] == id {
			entries = append(entries, e)
		}
	}
	return entries
}

func sortedIDs(rs chainnet.Results) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.NodeID
	}
	sort.Strings(ids)
	return ids
}
