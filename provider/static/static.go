// Package static serves a fixed inventory of machines described in a YAML
// file, for fleets not managed through a cloud API.
//
//	product: chainspace
//	networks:
//	  "7":
//	    - id: node-1
//	      address: 192.0.2.10
//	    - id: node-2
//	      address: 192.0.2.11:2222
//	      state: stopped
package static

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mistifyio/chainnet"
	"gopkg.in/yaml.v3"
)

// ErrUnsupported is returned by lifecycle calls, which a static inventory
// cannot perform
var ErrUnsupported = errors.New("not supported by a static inventory")

type (
	// Host is one machine in the file. State defaults to running.
	Host struct {
		ID      string             `yaml:"id"`
		Address string             `yaml:"address"`
		State   chainnet.NodeState `yaml:"state"`
	}

	// File is the inventory file layout
	File struct {
		Product  string            `yaml:"product"`
		Networks map[string][]Host `yaml:"networks"`
	}

	// Inventory is a chainnet.Inventory over a File
	Inventory struct {
		nodes chainnet.Nodes
	}
)

// Load reads an inventory file
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(f)
}

// New builds an Inventory from a parsed File
func New(f File) (*Inventory, error) {
	if f.Product == "" {
		f.Product = chainnet.DefaultProduct.Name
	}

	seen := map[string]bool{}
	nodes := chainnet.Nodes{}
	for network, hosts := range f.Networks {
		for _, h := range hosts {
			if h.ID == "" {
				return nil, fmt.Errorf("network %s: host without id", network)
			}
			if seen[h.ID] {
				return nil, fmt.Errorf("duplicate host id %s", h.ID)
			}
			seen[h.ID] = true

			if h.State == chainnet.StateAny {
				h.State = chainnet.StateRunning
			}
			nodes = append(nodes, &chainnet.Node{
				ID:      h.ID,
				Address: h.Address,
				State:   h.State,
				Tags: map[string]string{
					chainnet.TagType:      f.Product,
					chainnet.TagNetworkID: network,
				},
			})
		}
	}
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID < nodes[b].ID })
	return &Inventory{nodes: nodes}, nil
}

// List returns the hosts matching sel, ordered by id
func (i *Inventory) List(_ context.Context, sel chainnet.Selector) (chainnet.Nodes, error) {
	nodes := chainnet.Nodes{}
	for _, n := range i.nodes {
		if sel.Matches(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// Create is unsupported
func (i *Inventory) Create(context.Context, chainnet.LaunchSpec) (chainnet.Nodes, error) {
	return nil, ErrUnsupported
}

// Terminate is unsupported
func (i *Inventory) Terminate(context.Context, chainnet.Selector) error {
	return ErrUnsupported
}

// Start is unsupported
func (i *Inventory) Start(context.Context, chainnet.Selector) error {
	return ErrUnsupported
}

// Stop is unsupported
func (i *Inventory) Stop(context.Context, chainnet.Selector) error {
	return ErrUnsupported
}
