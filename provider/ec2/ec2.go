// Package ec2 keeps chainnet machines on Amazon EC2. Machines are found by
// their type and network_id tags.
package ec2

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/mistifyio/chainnet"
	log "github.com/sirupsen/logrus"
)

// RootDevice is the block device the root volume is attached as
const RootDevice = "/dev/sda1"

// API is the subset of the EC2 client the inventory uses
type API interface {
	ec2.DescribeInstancesAPIClient
	RunInstances(context.Context, *ec2.RunInstancesInput, ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(context.Context, *ec2.TerminateInstancesInput, ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	StartInstances(context.Context, *ec2.StartInstancesInput, ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(context.Context, *ec2.StopInstancesInput, ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// Inventory is a chainnet.Inventory on EC2
type Inventory struct {
	api API
}

// New creates an Inventory for region using the default credential chain
func New(ctx context.Context, region string) (*Inventory, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewWithAPI(ec2.NewFromConfig(cfg)), nil
}

// NewWithAPI creates an Inventory on an existing client
func NewWithAPI(api API) *Inventory {
	return &Inventory{api: api}
}

// Filters returns the DescribeInstances filters for a selector
func Filters(sel chainnet.Selector) []types.Filter {
	filters := []types.Filter{
		{Name: aws.String("tag:" + chainnet.TagType), Values: []string{sel.Product}},
		{Name: aws.String("tag:" + chainnet.TagNetworkID), Values: []string{sel.NetworkID}},
	}
	if sel.State != chainnet.StateAny {
		filters = append(filters, types.Filter{
			Name:   aws.String("instance-state-name"),
			Values: []string{string(sel.State)},
		})
	}
	return filters
}

// List returns the instances matching sel, ordered by id
func (i *Inventory) List(ctx context.Context, sel chainnet.Selector) (chainnet.Nodes, error) {
	nodes := chainnet.Nodes{}
	pages := ec2.NewDescribeInstancesPaginator(i.api, &ec2.DescribeInstancesInput{
		Filters: Filters(sel),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Reservations {
			for _, instance := range r.Instances {
				nodes = append(nodes, toNode(instance))
			}
		}
	}
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID < nodes[b].ID })
	return nodes, nil
}

// Create runs the instances described by spec
func (i *Inventory) Create(ctx context.Context, spec chainnet.LaunchSpec) (chainnet.Nodes, error) {
	tags := make([]types.Tag, 0, len(spec.Tags))
	for k, v := range spec.Tags {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	sort.Slice(tags, func(a, b int) bool { return *tags[a].Key < *tags[b].Key })

	input := &ec2.RunInstancesInput{
		ImageId:        aws.String(spec.Image),
		InstanceType:   types.InstanceType(spec.InstanceType),
		MinCount:       aws.Int32(int32(spec.Count)),
		MaxCount:       aws.Int32(int32(spec.Count)),
		SecurityGroups: spec.SecurityGroups,
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String(RootDevice),
			Ebs: &types.EbsBlockDevice{
				Encrypted:           aws.Bool(false),
				DeleteOnTermination: aws.Bool(true),
				VolumeSize:          aws.Int32(spec.VolumeSize),
			},
		}},
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         tags,
		}},
	}
	if spec.KeyName != "" {
		input.KeyName = aws.String(spec.KeyName)
	}

	out, err := i.api.RunInstances(ctx, input)
	if err != nil {
		return nil, err
	}

	nodes := make(chainnet.Nodes, len(out.Instances))
	for j, instance := range out.Instances {
		nodes[j] = toNode(instance)
	}
	return nodes, nil
}

// Terminate terminates the instances matching sel
func (i *Inventory) Terminate(ctx context.Context, sel chainnet.Selector) error {
	return i.each(ctx, sel, "terminate", func(ids []string) error {
		_, err := i.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
		return err
	})
}

// Start starts the instances matching sel
func (i *Inventory) Start(ctx context.Context, sel chainnet.Selector) error {
	return i.each(ctx, sel, "start", func(ids []string) error {
		_, err := i.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
		return err
	})
}

// Stop stops the instances matching sel
func (i *Inventory) Stop(ctx context.Context, sel chainnet.Selector) error {
	return i.each(ctx, sel, "stop", func(ids []string) error {
		_, err := i.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
		return err
	})
}

// each lists the instances matching sel and applies fn to their ids in one
// call. Nothing is called when no instance matches.
func (i *Inventory) each(ctx context.Context, sel chainnet.Selector, action string, fn func([]string) error) error {
	nodes, err := i.List(ctx, sel)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}

	log.WithFields(log.Fields{
		"network": sel.NetworkID,
		"action":  action,
		"ids":     nodes.IDs(),
	}).Debug("ec2 request")
	return fn(nodes.IDs())
}

func toNode(instance types.Instance) *chainnet.Node {
	n := &chainnet.Node{
		ID:      aws.ToString(instance.InstanceId),
		Address: aws.ToString(instance.PublicIpAddress),
		Tags:    map[string]string{},
	}
	if instance.State != nil {
		n.State = chainnet.NodeState(instance.State.Name)
	}
	for _, tag := range instance.Tags {
		n.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return n
}
