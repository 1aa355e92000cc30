package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armon/go-metrics"
	"github.com/mistifyio/chainnet"
	"github.com/mistifyio/chainnet/pkg/kv"
	_ "github.com/mistifyio/chainnet/pkg/kv/consul"
	_ "github.com/mistifyio/chainnet/pkg/kv/etcd"
	_ "github.com/mistifyio/chainnet/pkg/kv/mem"
	"github.com/mistifyio/chainnet/provider/ec2"
	"github.com/mistifyio/chainnet/provider/ssh"
	"github.com/mistifyio/chainnet/provider/static"
	log "github.com/sirupsen/logrus"
)

// ErrNoNetwork is returned when no network id was given
var ErrNoNetwork = errors.New("a network id is required")

// use says which collaborators a command needs
type use struct {
	ssh  bool
	lock bool
}

func newInventory(ctx context.Context, cfg *config) (chainnet.Inventory, error) {
	if cfg.Inventory == "" || cfg.Inventory == "ec2" {
		inv, err := ec2.New(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	inv, err := static.Load(cfg.Inventory)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func newDialer(cfg *config) (chainnet.Dialer, error) {
	d, err := ssh.NewDialer(cfg.SSH)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newStore(addr string) (kv.KV, error) {
	if addr == "" {
		return nil, nil
	}
	store, err := kv.New(addr)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(); err != nil {
		return nil, fmt.Errorf("kv %s: %w", addr, err)
	}
	return store, nil
}

func newMetrics() (*metrics.Metrics, error) {
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(sink)
	conf := metrics.DefaultConfig("chainnet")
	conf.EnableRuntimeMetrics = false
	return metrics.New(conf, sink)
}

// holder names this process in network locks
func holder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// withNetwork builds the network handle for the configured network and runs
// fn with it, holding the network lock when u.lock is set
func withNetwork(u use, fn func(context.Context, *chainnet.Network) error) error {
	if cfg.Network == "" {
		return ErrNoNetwork
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inventory, err := newInventory(ctx, cfg)
	if err != nil {
		return err
	}

	var dialer chainnet.Dialer
	if u.ssh {
		if dialer, err = newDialer(cfg); err != nil {
			return err
		}
	}

	store, err := newStore(cfg.KV)
	if err != nil {
		return err
	}

	c := chainnet.NewContext(inventory, dialer, store)
	cfg.apply(c)
	m, err := newMetrics()
	if err != nil {
		return err
	}
	c.SetMetrics(m)

	n := c.NewNetwork(cfg.Network)
	if u.lock {
		l, err := n.Lock(holder())
		if err != nil {
			return err
		}
		if l != nil {
			defer func() {
				if err := l.Release(); err != nil {
					log.WithFields(log.Fields{
						"network": n.ID,
						"error":   err,
					}).Warn("unable to release network lock")
				}
			}()
		}
	}

	return fn(ctx, n)
}
