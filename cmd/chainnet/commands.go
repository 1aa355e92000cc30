package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/mistifyio/chainnet"
	"github.com/mistifyio/chainnet/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// fanOut matches the method expressions of the Network fan-out operations
type fanOut func(*chainnet.Network, context.Context) (chainnet.Results, error)

// inSession connects to the network, runs each action in turn and closes the
// sessions again. Node failures of every step are returned together.
func inSession(ctx context.Context, n *chainnet.Network, actions ...fanOut) error {
	var errs *multierror.Error

	connected, err := n.Connect(ctx)
	if err != nil {
		return err
	}
	errs = multierror.Append(errs, connected.Err())
	defer func() { _, _ = n.Close(context.Background()) }()

	for _, action := range actions {
		results, err := action(n, ctx)
		if err != nil {
			return multierror.Append(errs, err)
		}
		errs = multierror.Append(errs, results.Err())
		if ctx.Err() != nil {
			break
		}
	}
	return errs.ErrorOrNil()
}

func sessionCommand(action fanOut) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withNetwork(use{ssh: true, lock: true}, func(ctx context.Context, n *chainnet.Network) error {
			return inSession(ctx, n, action)
		})
	}
}

func execCommands(args []string) []fanOut {
	actions := make([]fanOut, len(args))
	for i, command := range args {
		command := command
		actions[i] = func(n *chainnet.Network, ctx context.Context) (chainnet.Results, error) {
			return n.Exec(ctx, command)
		}
	}
	return actions
}

func execute(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !term.IsTerminal(int(os.Stdin.Fd())) {
		args = cli.Read(os.Stdin)
	}
	if len(args) == 0 {
		return fmt.Errorf("no command given")
	}
	return withNetwork(use{ssh: true, lock: true}, func(ctx context.Context, n *chainnet.Network) error {
		return inSession(ctx, n, execCommands(args)...)
	})
}

func launch(cmd *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid count %q", args[0])
	}
	return withNetwork(use{lock: true}, func(ctx context.Context, n *chainnet.Network) error {
		nodes, err := n.Launch(ctx, count, keyName)
		if err != nil {
			return err
		}
		for _, id := range nodes.IDs() {
			fmt.Println(id)
		}
		return nil
	})
}

func lifecycle(action func(*chainnet.Network, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withNetwork(use{lock: true}, func(ctx context.Context, n *chainnet.Network) error {
			return action(n, ctx)
		})
	}
}

func ips(cmd *cobra.Command, args []string) error {
	return withNetwork(use{}, func(ctx context.Context, n *chainnet.Network) error {
		addrs, err := n.IPs(ctx)
		if err != nil {
			return err
		}
		for _, addr := range addrs {
			fmt.Println(addr)
		}
		return nil
	})
}

func jobs(cmd *cobra.Command, ids []string) error {
	for _, id := range ids {
		if err := cli.CheckID(id); err != nil {
			return err
		}
	}

	return withNetwork(use{}, func(ctx context.Context, n *chainnet.Network) error {
		c := n.Context()
		list := chainnet.Jobs{}
		if len(ids) == 0 {
			var err error
			if list, err = c.Jobs(n.ID); err != nil {
				return err
			}
		}
		for _, id := range ids {
			j, err := c.Job(n.ID, id)
			if err != nil {
				return err
			}
			list = append(list, j)
		}

		for _, j := range list {
			if err := cli.Print(os.Stdout, j, jsonout); err != nil {
				return err
			}
		}
		return nil
	})
}

func unlock(cmd *cobra.Command, args []string) error {
	return withNetwork(use{}, func(ctx context.Context, n *chainnet.Network) error {
		return n.Unlock()
	})
}
