package chainnet

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/mistifyio/chainnet/pkg/lock"
	log "github.com/sirupsen/logrus"
)

// LockPath is the path in the config store network locks are kept under
var LockPath = "chainnet/locks/"

// Fan-out action names, used in logs, metrics and jobs
const (
	ActionConnect       = "connect"
	ActionExec          = "exec"
	ActionClose         = "close"
	ActionInstallDeps   = "install-deps"
	ActionInstallCore   = "install-core"
	ActionStartCore     = "start-core"
	ActionStopCore      = "stop-core"
	ActionUninstallCore = "uninstall-core"
)

// Network is the set of machines sharing a network id
type Network struct {
	context  *Context
	sessions *Sessions
	ID       string
}

// NewNetwork returns a handle on the network with the given id
func (c *Context) NewNetwork(id string) *Network {
	return &Network{
		context:  c,
		sessions: NewSessions(),
		ID:       id,
	}
}

// Context returns the context the network was created from
func (n *Network) Context() *Context {
	return n.context
}

// Sessions returns the network's session table
func (n *Network) Sessions() *Sessions {
	return n.sessions
}

func (n *Network) selector(state NodeState) Selector {
	return Selector{
		Product:   n.context.Product.Name,
		NetworkID: n.ID,
		State:     state,
	}
}

func (n *Network) log() *log.Entry {
	return log.WithField("network", n.ID)
}

func (n *Network) logNode(node *Node) *log.Entry {
	return n.log().WithField("instance", node.ID)
}

// Nodes lists the machines of the network in the given state
func (n *Network) Nodes(ctx context.Context, state NodeState) (Nodes, error) {
	return n.context.inventory.List(ctx, n.selector(state))
}

// IPs returns the addresses of the running machines
func (n *Network) IPs(ctx context.Context) ([]string, error) {
	nodes, err := n.Nodes(ctx, StateRunning)
	if err != nil {
		return nil, err
	}
	return nodes.Addresses(), nil
}

// Launch creates count machines for the network
func (n *Network) Launch(ctx context.Context, count int, keyName string) (Nodes, error) {
	if count < 1 {
		return nil, fmt.Errorf("invalid instance count %d", count)
	}

	image, err := Image(n.context.Region, n.context.Images)
	if err != nil {
		return nil, err
	}

	product := n.context.Product
	spec := LaunchSpec{
		Count:          count,
		Image:          image,
		InstanceType:   n.context.InstanceType,
		KeyName:        keyName,
		SecurityGroups: n.context.SecurityGroups,
		VolumeSize:     n.context.VolumeSize,
		Tags: map[string]string{
			TagType:      product.Name,
			TagNetworkID: n.ID,
			TagName:      fmt.Sprintf("%s node (network: %s)", product.Label(), n.ID),
		},
	}

	n.log().WithField("count", count).Info("launching instances")
	nodes, err := n.context.inventory.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	n.log().WithField("count", len(nodes)).Info("launched instances")
	return nodes, nil
}

// Terminate terminates every machine of the network
func (n *Network) Terminate(ctx context.Context) error {
	n.log().Info("terminating all nodes")
	if err := n.context.inventory.Terminate(ctx, n.selector(StateAny)); err != nil {
		return err
	}
	n.log().Info("all nodes terminated")
	return nil
}

// Start starts the stopped machines of the network
func (n *Network) Start(ctx context.Context) error {
	n.log().Info("starting all nodes")
	if err := n.context.inventory.Start(ctx, n.selector(StateStopped)); err != nil {
		return err
	}
	n.log().Info("started all nodes")
	return nil
}

// Stop stops the running machines of the network
func (n *Network) Stop(ctx context.Context) error {
	n.log().Info("stopping all nodes")
	if err := n.context.inventory.Stop(ctx, n.selector(StateRunning)); err != nil {
		return err
	}
	n.log().Info("stopped all nodes")
	return nil
}

// Connect opens a session to every running machine
func (n *Network) Connect(ctx context.Context) (Results, error) {
	return n.fanOut(ctx, ActionConnect, "", n.connect)
}

// Exec runs command on every running machine through its session
func (n *Network) Exec(ctx context.Context, command string) (Results, error) {
	return n.fanOut(ctx, ActionExec, command, func(ctx context.Context, node *Node) error {
		return n.exec(ctx, node, command)
	})
}

// Close closes every tracked session, whatever the state of its machine
func (n *Network) Close(ctx context.Context) (Results, error) {
	return n.fanOutOver(ctx, ActionClose, "", n.sessionNodes, n.close)
}

// InstallDeps installs the product's dependencies on every running machine
func (n *Network) InstallDeps(ctx context.Context) (Results, error) {
	return n.fanOut(ctx, ActionInstallDeps, "", n.sequence("dependencies", n.context.Product.Deps))
}

// InstallCore installs the product on every running machine
func (n *Network) InstallCore(ctx context.Context) (Results, error) {
	return n.fanOut(ctx, ActionInstallCore, "", n.sequence("core", n.context.Product.Core))
}

// StartCore starts the product's process on every running machine
func (n *Network) StartCore(ctx context.Context) (Results, error) {
	return n.run(ctx, ActionStartCore, n.context.Product.Start)
}

// StopCore stops the product's process on every running machine
func (n *Network) StopCore(ctx context.Context) (Results, error) {
	return n.run(ctx, ActionStopCore, n.context.Product.Stop)
}

// UninstallCore removes the product from every running machine
func (n *Network) UninstallCore(ctx context.Context) (Results, error) {
	return n.run(ctx, ActionUninstallCore, n.context.Product.Uninstall)
}

// Lock takes the network's lock in the context's kv store. It returns a nil
// lock when no store is configured.
func (n *Network) Lock(holder string) (*lock.Lock, error) {
	if n.context.kv == nil {
		return nil, nil
	}
	return lock.Acquire(n.context.kv, n.lockKey(), holder)
}

// Unlock breaks the network's lock regardless of holder
func (n *Network) Unlock() error {
	if n.context.kv == nil {
		return ErrNoStore
	}
	return lock.Break(n.context.kv, n.lockKey())
}

func (n *Network) lockKey() string {
	return path.Join(LockPath, n.ID)
}

func (n *Network) run(ctx context.Context, action, command string) (Results, error) {
	if command == "" {
		return nil, fmt.Errorf("%s: product %s has no command", action, n.context.Product.Name)
	}
	return n.fanOut(ctx, action, command, func(ctx context.Context, node *Node) error {
		return n.exec(ctx, node, command)
	})
}

// fanOut dispatches op across the running machines, recording logs, metrics
// and a job for the action
func (n *Network) fanOut(ctx context.Context, action, command string, op Operation) (Results, error) {
	return n.fanOutOver(ctx, action, command, func(ctx context.Context) (Nodes, error) {
		return n.Nodes(ctx, StateRunning)
	}, op)
}

// sessionNodes returns the nodes holding a tracked session
func (n *Network) sessionNodes(context.Context) (Nodes, error) {
	ids := n.sessions.IDs()
	nodes := make(Nodes, len(ids))
	for i, id := range ids {
		nodes[i] = &Node{ID: id}
	}
	return nodes, nil
}

// fanOutOver dispatches op across the nodes returned by list
func (n *Network) fanOutOver(ctx context.Context, action, command string, list func(context.Context) (Nodes, error), op Operation) (Results, error) {
	logger := n.log().WithField("action", action)
	if command != "" {
		logger = logger.WithField("command", command)
	}

	job := n.startJob(action, command)

	nodes, err := list(ctx)
	if err != nil {
		logger.WithField("error", err).Error("failed to list nodes")
		if job != nil {
			job.Fail(err)
			n.saveJob(job)
		}
		return nil, err
	}

	logger.WithField("nodes", len(nodes)).Info("running on all nodes")
	start := time.Now()
	results := Dispatch(ctx, nodes, n.context.Workers, op)
	n.measure(action, start, results)

	failed := results.Failed()
	for _, r := range failed {
		logger.WithFields(log.Fields{
			"instance": r.NodeID,
			"error":    r.Err,
		}).Error("node failed")
	}
	logger.WithFields(log.Fields{
		"nodes":  len(results),
		"failed": len(failed),
	}).Info("finished on all nodes")

	if job != nil {
		job.Finish(results)
		n.saveJob(job)
	}
	return results, nil
}

func (n *Network) startJob(action, command string) *Job {
	if n.context.kv == nil {
		return nil
	}
	job := n.context.NewJob(n.ID, action)
	job.Command = command
	job.Start()
	n.saveJob(job)
	return job
}

// saveJob persists job history on a best effort basis
func (n *Network) saveJob(job *Job) {
	if err := job.Save(); err != nil {
		n.log().WithFields(log.Fields{
			"job":   job.ID,
			"error": err,
		}).Warn("unable to save job")
	}
}

func (n *Network) measure(action string, start time.Time, results Results) {
	m := n.context.metrics
	m.MeasureSince([]string{action, "time"}, start)
	m.IncrCounter([]string{action, "count"}, float32(len(results)))
	if failed := len(results.Failed()); failed > 0 {
		m.IncrCounter([]string{action, "error"}, float32(failed))
	}
}

func (n *Network) connect(ctx context.Context, node *Node) error {
	if _, err := n.sessions.Get(node.ID); err == nil {
		return ErrSessionExists
	}

	n.logNode(node).Info("initiating ssh connection")
	s, err := n.context.dialer.Dial(ctx, node)
	if err != nil {
		return err
	}
	if err := n.sessions.Add(node.ID, s); err != nil {
		_ = s.Close()
		return err
	}
	n.logNode(node).Info("initiated ssh connection")
	return nil
}

func (n *Network) exec(ctx context.Context, node *Node, command string) error {
	s, err := n.sessions.Get(node.ID)
	if err != nil {
		return err
	}

	logger := n.logNode(node)
	logger.WithField("command", command).Info("executing command")
	err = s.Exec(ctx, command, func(stream Stream, line string) {
		logger.WithField("stream", stream.String()).Info(line)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	logger.WithField("command", command).Info("executed command")
	return nil
}

func (n *Network) close(ctx context.Context, node *Node) error {
	s, err := n.sessions.Remove(node.ID)
	if err != nil {
		return err
	}

	n.logNode(node).Info("closing ssh connection")
	if err := s.Close(); err != nil {
		return err
	}
	n.logNode(node).Info("closed ssh connection")
	return nil
}

// sequence runs commands in order on a node, stopping at the first failure
func (n *Network) sequence(what string, commands []string) Operation {
	return func(ctx context.Context, node *Node) error {
		n.logNode(node).Infof("installing %s %s", n.context.Product.Label(), what)
		for _, command := range commands {
			if err := n.exec(ctx, node, command); err != nil {
				return err
			}
		}
		n.logNode(node).Infof("installed %s %s", n.context.Product.Label(), what)
		return nil
	}
}
