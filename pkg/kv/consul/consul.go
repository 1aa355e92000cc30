// Package consul is the kv implementation backed by the consul kv API. It
// registers the consul scheme.
package consul

import (
	"errors"
	"net/url"

	consul "github.com/hashicorp/consul/api"
	"github.com/mistifyio/chainnet/pkg/kv"
)

var (
	errNotFound  = errors.New("key not found")
	errCASFailed = errors.New("check-and-set failed")
)

func init() {
	kv.Register("consul", New)
}

type ckv struct {
	c      *consul.KV
	client *consul.Client
}

// New instantiates a consul kv implementation.
// The parameter addr may be the empty string or a valid URL.
// If addr is not empty it must be a valid URL with schemes http, https or consul; consul is synonymous with http.
// If addr is the empty string the consul client will connect to the default address, which may be influenced by the environment.
func New(addr string) (kv.KV, error) {
	config := consul.DefaultConfig()
	if addr != "" {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, err
		}

		if u.Scheme != "consul" {
			config.Scheme = u.Scheme
		}
		if u.Host != "" {
			config.Address = u.Host
		}
	}

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &ckv{c: client.KV(), client: client}, nil
}

// consul keys do not start with a slash
func trim(key string) string {
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	return key
}

func (c *ckv) Delete(key string, recurse bool) error {
	var err error
	if recurse {
		_, err = c.c.DeleteTree(trim(key), nil)
	} else {
		_, err = c.c.Delete(trim(key), nil)
	}
	return err
}

func (c *ckv) Get(key string) (kv.Value, error) {
	kvp, _, err := c.c.Get(trim(key), nil)
	if err != nil {
		return kv.Value{}, err
	}
	if kvp == nil || kvp.Value == nil {
		return kv.Value{}, errNotFound
	}
	return kv.Value{Data: kvp.Value, Index: kvp.ModifyIndex}, nil
}

func (c *ckv) GetAll(prefix string) (map[string]kv.Value, error) {
	pairs, _, err := c.c.List(trim(prefix), nil)
	if err != nil {
		return nil, err
	}
	many := make(map[string]kv.Value, len(pairs))
	for _, kvp := range pairs {
		many[kvp.Key] = kv.Value{Data: kvp.Value, Index: kvp.ModifyIndex}
	}
	return many, nil
}

// Update is racy with other modifiers since the consul CAS API does not return
// the new modify index; it is read back after the write.
func (c *ckv) Update(key string, value kv.Value) (uint64, error) {
	kvp := &consul.KVPair{
		Key:         trim(key),
		Value:       value.Data,
		ModifyIndex: value.Index,
	}

	ok, _, err := c.c.CAS(kvp, nil)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errCASFailed
	}

	v, err := c.Get(key)
	return v.Index, err
}

func (c *ckv) Remove(key string, index uint64) error {
	ok, _, err := c.c.DeleteCAS(&consul.KVPair{Key: trim(key), ModifyIndex: index}, nil)
	if err != nil {
		return err
	}
	if !ok {
		return errCASFailed
	}
	return nil
}

func (c *ckv) IsKeyNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// Ping verifies communication with the cluster
func (c *ckv) Ping() error {
	_, err := c.client.Agent().NodeName()
	return err
}
