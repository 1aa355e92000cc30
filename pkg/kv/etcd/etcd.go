// Package etcd is the kv implementation backed by an etcd v2 cluster. It
// registers the etcd scheme; etcd://host:port talks plain http to host:port.
package etcd

import (
	"errors"
	"net/url"

	"github.com/coreos/go-etcd/etcd"
	"github.com/mistifyio/chainnet/pkg/kv"
)

// etcd v2 API error codes
const (
	ecodeKeyNotFound = 100
)

func init() {
	kv.Register("etcd", New)
}

type ekv struct {
	e *etcd.Client
}

// New creates an etcd backed kv. addr is an etcd://, http:// or https:// URL.
func New(addr string) (kv.KV, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "etcd" {
		u.Scheme = "http"
	}
	return &ekv{e: etcd.NewClient([]string{u.String()})}, nil
}

func (e *ekv) Delete(key string, recurse bool) error {
	_, err := e.e.Delete(key, recurse)
	return err
}

func (e *ekv) Get(key string) (kv.Value, error) {
	resp, err := e.e.Get(key, false, false)
	if err != nil {
		return kv.Value{}, err
	}

	if resp.Node.Dir {
		return kv.Value{}, errors.New("key is a directory")
	}

	return kv.Value{Data: []byte(resp.Node.Value), Index: resp.Node.ModifiedIndex}, nil
}

func (e *ekv) GetAll(prefix string) (map[string]kv.Value, error) {
	resp, err := e.e.Get(prefix, false, true)
	if err != nil {
		return nil, err
	}

	many := map[string]kv.Value{}
	var walk func(*etcd.Node)
	walk = func(node *etcd.Node) {
		if !node.Dir {
			many[node.Key] = kv.Value{Data: []byte(node.Value), Index: node.ModifiedIndex}
			return
		}
		for _, child := range node.Nodes {
			walk(child)
		}
	}
	walk(resp.Node)

	return many, nil
}

func (e *ekv) Update(key string, value kv.Value) (uint64, error) {
	var err error
	var resp *etcd.Response
	if value.Index == 0 {
		resp, err = e.e.Create(key, string(value.Data), 0)
	} else {
		resp, err = e.e.CompareAndSwap(key, string(value.Data), 0, "", value.Index)
	}
	if err != nil {
		return 0, err
	}
	return resp.Node.ModifiedIndex, nil
}

func (e *ekv) Remove(key string, index uint64) error {
	_, err := e.e.CompareAndDelete(key, "", index)
	return err
}

func (e *ekv) IsKeyNotFound(err error) bool {
	var eErr *etcd.EtcdError
	return errors.As(err, &eErr) && eErr.ErrorCode == ecodeKeyNotFound
}

func (e *ekv) Ping() error {
	if !e.e.SyncCluster() {
		return errors.New("unable to sync etcd cluster")
	}
	return nil
}
