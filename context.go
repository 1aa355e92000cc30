package chainnet

import (
	"github.com/armon/go-metrics"
	"github.com/mistifyio/chainnet/pkg/kv"
)

// Context carries around data/structs needed for operations
type Context struct {
	inventory Inventory
	dialer    Dialer
	kv        kv.KV
	metrics   *metrics.Metrics

	// Product is the software the networks run
	Product *Product
	// Region selects the launch image
	Region string
	// Images overrides DefaultImages
	Images map[string]string
	// InstanceType, SecurityGroups and VolumeSize shape launched machines
	InstanceType   string
	SecurityGroups []string
	VolumeSize     int32
	// Workers bounds fan-out concurrency
	Workers int
}

// NewContext creates a Context. store may be nil, in which case no job
// history is kept.
func NewContext(inventory Inventory, dialer Dialer, store kv.KV) *Context {
	conf := metrics.DefaultConfig("chainnet")
	conf.EnableRuntimeMetrics = false
	m, _ := metrics.New(conf, &metrics.BlackholeSink{})
	return &Context{
		inventory:      inventory,
		dialer:         dialer,
		kv:             store,
		metrics:        m,
		Product:        DefaultProduct,
		Region:         "us-east-2",
		InstanceType:   "t2.micro",
		SecurityGroups: []string{"chainspace"},
		VolumeSize:     2,
		Workers:        DefaultWorkers,
	}
}

// SetMetrics replaces the metrics the context reports fan-outs to
func (c *Context) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// KV returns the context's store, which may be nil
func (c *Context) KV() kv.KV {
	return c.kv
}
