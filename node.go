package chainnet

// NodeState is the provider lifecycle state of a node
type NodeState string

// Node states. StateAny is used in a Selector to disable state filtering.
const (
	StateAny          NodeState = ""
	StatePending      NodeState = "pending"
	StateRunning      NodeState = "running"
	StateStopping     NodeState = "stopping"
	StateStopped      NodeState = "stopped"
	StateShuttingDown NodeState = "shutting-down"
	StateTerminated   NodeState = "terminated"
)

// Tag keys used to scope nodes to a product and network
const (
	TagType      = "type"
	TagNetworkID = "network_id"
	TagName      = "Name"
)

type (
	// Node is a single machine of a network
	Node struct {
		ID      string            `json:"id"`
		Address string            `json:"address"` // public address, may carry a port
		State   NodeState         `json:"state"`
		Tags    map[string]string `json:"tags,omitempty"`
	}

	// Nodes is an alias to a slice of *Node
	Nodes []*Node
)

// IDs returns the ids of the nodes in order
func (ns Nodes) IDs() []string {
	ids := make([]string, len(ns))
	for i, n := range ns {
		ids[i] = n.ID
	}
	return ids
}

// Addresses returns the non-empty addresses of the nodes in order
func (ns Nodes) Addresses() []string {
	addrs := make([]string, 0, len(ns))
	for _, n := range ns {
		if n.Address != "" {
			addrs = append(addrs, n.Address)
		}
	}
	return addrs
}
