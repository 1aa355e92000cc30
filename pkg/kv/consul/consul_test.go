package consul_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	consul "github.com/hashicorp/consul/api"
	"github.com/mistifyio/chainnet/pkg/kv"
	_ "github.com/mistifyio/chainnet/pkg/kv/consul"
	"github.com/stretchr/testify/suite"
)

// fakeConsul serves the parts of the consul kv and agent APIs the store uses
type fakeConsul struct {
	mu    sync.Mutex
	index uint64
	pairs map[string]*consul.KVPair
}

func (f *fakeConsul) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Consul-Index", strconv.FormatUint(f.index+1, 10))
	w.Header().Set("X-Consul-LastContact", "0")
	w.Header().Set("X-Consul-KnownLeader", "true")

	if r.URL.Path == "/v1/agent/self" {
		_ = json.NewEncoder(w).Encode(map[string]map[string]interface{}{
			"Config": {"NodeName": "test"},
		})
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
	query := r.URL.Query()
	_, recurse := query["recurse"]
	cas, hasCAS := query["cas"]
	var casIndex uint64
	if hasCAS {
		casIndex, _ = strconv.ParseUint(cas[0], 10, 64)
	}

	switch r.Method {
	case http.MethodGet:
		pairs := []*consul.KVPair{}
		for k, p := range f.pairs {
			if k == key || (recurse && strings.HasPrefix(k, key)) {
				pairs = append(pairs, p)
			}
		}
		if len(pairs) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].Key < pairs[b].Key })
		_ = json.NewEncoder(w).Encode(pairs)
	case http.MethodPut:
		existing := f.pairs[key]
		if hasCAS && !f.casOK(existing, casIndex) {
			_, _ = io.WriteString(w, "false")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.index++
		f.pairs[key] = &consul.KVPair{Key: key, Value: body, ModifyIndex: f.index}
		_, _ = io.WriteString(w, "true")
	case http.MethodDelete:
		if hasCAS && !f.casOK(f.pairs[key], casIndex) {
			_, _ = io.WriteString(w, "false")
			return
		}
		for k := range f.pairs {
			if k == key || (recurse && strings.HasPrefix(k, key)) {
				delete(f.pairs, k)
			}
		}
		_, _ = io.WriteString(w, "true")
	}
}

func (f *fakeConsul) casOK(existing *consul.KVPair, index uint64) bool {
	if index == 0 {
		return existing == nil
	}
	return existing != nil && existing.ModifyIndex == index
}

type ConsulTestSuite struct {
	suite.Suite
	Server *httptest.Server
	Store  kv.KV
}

func TestConsulTestSuite(t *testing.T) {
	suite.Run(t, new(ConsulTestSuite))
}

func (s *ConsulTestSuite) SetupTest() {
	s.Server = httptest.NewServer(&fakeConsul{pairs: map[string]*consul.KVPair{}})
	var err error
	s.Store, err = kv.New("consul://" + strings.TrimPrefix(s.Server.URL, "http://"))
	s.Require().NoError(err)
}

func (s *ConsulTestSuite) TearDownTest() {
	s.Server.Close()
}

func (s *ConsulTestSuite) TestPing() {
	s.NoError(s.Store.Ping())
}

func (s *ConsulTestSuite) TestUpdateAndGet() {
	_, err := s.Store.Get("/chainnet/a")
	s.True(s.Store.IsKeyNotFound(err))

	index, err := s.Store.Update("/chainnet/a", kv.Value{Data: []byte("1")})
	s.Require().NoError(err)
	s.NotZero(index)

	_, err = s.Store.Update("/chainnet/a", kv.Value{Data: []byte("dup")})
	s.Error(err)

	v, err := s.Store.Get("chainnet/a")
	s.Require().NoError(err)
	s.Equal("1", string(v.Data))
	s.Equal(index, v.Index)

	next, err := s.Store.Update("chainnet/a", kv.Value{Data: []byte("2"), Index: index})
	s.Require().NoError(err)
	s.True(next > index)

	_, err = s.Store.Update("chainnet/a", kv.Value{Data: []byte("3"), Index: index})
	s.Error(err)
}

func (s *ConsulTestSuite) TestGetAllAndDelete() {
	for _, k := range []string{"chainnet/jobs/7/a", "chainnet/jobs/7/b", "chainnet/jobs/8/c"} {
		_, err := s.Store.Update(k, kv.Value{Data: []byte(k)})
		s.Require().NoError(err)
	}

	all, err := s.Store.GetAll("chainnet/jobs/7")
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal("chainnet/jobs/7/a", string(all["chainnet/jobs/7/a"].Data))

	s.NoError(s.Store.Delete("chainnet/jobs/7", true))
	all, err = s.Store.GetAll("chainnet/jobs/7")
	s.NoError(err)
	s.Empty(all)

	s.NoError(s.Store.Delete("chainnet/jobs/8/c", false))
	_, err = s.Store.Get("chainnet/jobs/8/c")
	s.True(s.Store.IsKeyNotFound(err))
}

func (s *ConsulTestSuite) TestRemove() {
	index, err := s.Store.Update("lock", kv.Value{Data: []byte("me")})
	s.Require().NoError(err)

	s.Error(s.Store.Remove("lock", index+10))
	s.NoError(s.Store.Remove("lock", index))

	_, err = s.Store.Get("lock")
	s.True(s.Store.IsKeyNotFound(err))
}
