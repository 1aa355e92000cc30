package chainnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/mistifyio/chainnet/pkg/kv"
	"github.com/pborman/uuid"
)

var (
	// JobPath is the path in the config store
	JobPath = "chainnet/jobs/"

	// ErrNoStore is returned for job operations on a context without a kv store
	ErrNoStore = errors.New("no kv store configured")
)

// Job Status
const (
	JobStatusNew     = "new"
	JobStatusWorking = "working"
	JobStatusDone    = "done"
	JobStatusError   = "error"
)

type (
	// Job is the record of one fleet action across a network
	Job struct {
		ID         string      `json:"id"`
		Network    string      `json:"network"`
		Action     string      `json:"action"`
		Command    string      `json:"command,omitempty"`
		Status     string      `json:"status"`
		Error      string      `json:"error,omitempty"`
		Nodes      []JobResult `json:"nodes,omitempty"`
		StartedAt  time.Time   `json:"started_at"`
		FinishedAt time.Time   `json:"finished_at,omitempty"`
		index      uint64
		context    *Context
	}

	// JobResult is a node's outcome within a Job
	JobResult struct {
		Node     string        `json:"node"`
		Error    string        `json:"error,omitempty"`
		Duration time.Duration `json:"duration"`
	}

	// Jobs is an alias to a slice of *Job
	Jobs []*Job
)

// NewJob creates a new job for a network action
func (c *Context) NewJob(network, action string) *Job {
	return &Job{
		ID:      uuid.New(),
		Network: network,
		Action:  action,
		Status:  JobStatusNew,
		context: c,
	}
}

// Validate ensures required fields are populated.
func (j *Job) Validate() error {
	if uuid.Parse(j.ID) == nil {
		return errors.New("ID is required and must be a uuid")
	}

	if j.Network == "" {
		return errors.New("Network is required")
	}

	if j.Action == "" {
		return errors.New("Action is required")
	}

	switch j.Status {
	case JobStatusNew, JobStatusWorking, JobStatusDone, JobStatusError:
	default:
		return errors.New("Status is invalid")
	}

	return nil
}

// key is a helper to generate the config store key.
func (j *Job) key() string {
	return path.Join(JobPath, j.Network, j.ID)
}

// Save persists a job.
func (j *Job) Save() error {
	if j.context == nil || j.context.kv == nil {
		return ErrNoStore
	}

	if err := j.Validate(); err != nil {
		return err
	}

	v, err := json.Marshal(j)
	if err != nil {
		return err
	}

	// if we changed something, don't clobber
	index, err := j.context.kv.Update(j.key(), kv.Value{Data: v, Index: j.index})
	if err != nil {
		return err
	}
	j.index = index

	return nil
}

// Refresh reloads a Job from the data store.
func (j *Job) Refresh() error {
	if j.context == nil || j.context.kv == nil {
		return ErrNoStore
	}

	v, err := j.context.kv.Get(j.key())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(v.Data, j); err != nil {
		return err
	}
	j.index = v.Index

	return nil
}

// Start marks the job as working
func (j *Job) Start() {
	j.Status = JobStatusWorking
	j.StartedAt = time.Now()
}

// Finish records the outcome of a fan-out and marks the job done, or error if
// any node failed
func (j *Job) Finish(results Results) {
	j.Nodes = make([]JobResult, len(results))
	for i, r := range results {
		j.Nodes[i] = JobResult{
			Node:     r.NodeID,
			Duration: r.Duration(),
		}
		if r.Err != nil {
			j.Nodes[i].Error = r.Err.Error()
		}
	}
	j.finish(results.Err())
}

// Fail marks the job as failed before any node was reached
func (j *Job) Fail(err error) {
	j.finish(err)
}

func (j *Job) finish(err error) {
	j.Status = JobStatusDone
	if err != nil {
		j.Status = JobStatusError
		j.Error = err.Error()
	}
	j.FinishedAt = time.Now()
}

// String is the job's one line summary
func (j *Job) String() string {
	s := fmt.Sprintf("%s %s %s %s", j.ID, j.StartedAt.Format(time.RFC3339), j.Action, j.Status)
	if j.Command != "" {
		s += " " + j.Command
	}
	return s
}

// Job retrieves a single job from the data store.
func (c *Context) Job(network, id string) (*Job, error) {
	j := &Job{
		ID:      id,
		Network: network,
		context: c,
	}

	if err := j.Refresh(); err != nil {
		return nil, err
	}

	return j, nil
}

// Jobs retrieves the jobs of a network, oldest first
func (c *Context) Jobs(network string) (Jobs, error) {
	if c.kv == nil {
		return nil, ErrNoStore
	}

	values, err := c.kv.GetAll(path.Join(JobPath, network))
	if err != nil {
		if c.kv.IsKeyNotFound(err) {
			return Jobs{}, nil
		}
		return nil, err
	}

	jobs := make(Jobs, 0, len(values))
	for _, v := range values {
		j := &Job{context: c}
		if err := json.Unmarshal(v.Data, j); err != nil {
			return nil, err
		}
		j.index = v.Index
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].StartedAt.Before(jobs[b].StartedAt)
	})
	return jobs, nil
}
