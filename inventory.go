package chainnet

import "context"

type (
	// Selector scopes an inventory call to the nodes of one network,
	// optionally in one state
	Selector struct {
		Product   string
		NetworkID string
		State     NodeState
	}

	// LaunchSpec describes a batch of machines to create
	LaunchSpec struct {
		Count          int
		Image          string
		InstanceType   string
		KeyName        string
		SecurityGroups []string
		VolumeSize     int32 // root volume in GiB
		Tags           map[string]string
	}

	// Inventory is the cloud provider holding the machines
	Inventory interface {
		List(context.Context, Selector) (Nodes, error)
		Create(context.Context, LaunchSpec) (Nodes, error)
		Terminate(context.Context, Selector) error
		Start(context.Context, Selector) error
		Stop(context.Context, Selector) error
	}
)

// Matches reports whether the node carries the selector's tags and state
func (s Selector) Matches(n *Node) bool {
	if n.Tags[TagType] != s.Product || n.Tags[TagNetworkID] != s.NetworkID {
		return false
	}
	return s.State == StateAny || n.State == s.State
}
