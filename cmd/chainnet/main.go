package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/mistifyio/chainnet"
	"github.com/mistifyio/chainnet/internal/cli"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg     = defaultConfig()
	keyName = ""
	jsonout = false
)

func help(cmd *cobra.Command, _ []string) {
	if err := cmd.Help(); err != nil {
		log.WithField("error", err).Fatal("help")
	}
}

// setup loads the .env and config files and applies the command line flags
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithField("error", err).Warn("unable to load .env")
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	loaded, err := loadConfig(path)
	if err != nil {
		return err
	}
	if err := applyFlags(loaded, cmd.Flags()); err != nil {
		return err
	}
	cfg = loaded

	return cli.SetupLogging(cfg.LogLevel, cfg.LogFormat)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:               "chainnet",
		Long:              "chainnet manages the machines of chainspace test networks and runs commands on all of them at once. exec also reads commands from stdin, one per line.",
		Run:               help,
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	addFlags(root.PersistentFlags())

	cmdLaunch := &cobra.Command{
		Use:   "launch <count>",
		Short: "Launch instances for the network",
		Args:  cobra.ExactArgs(1),
		RunE:  launch,
	}
	cmdLaunch.Flags().StringVarP(&keyName, "key-name", "k", keyName, "ec2 key pair name")
	root.AddCommand(cmdLaunch)

	root.AddCommand(
		&cobra.Command{
			Use:   "terminate",
			Short: "Terminate all instances of the network",
			Args:  cobra.NoArgs,
			RunE:  lifecycle((*chainnet.Network).Terminate),
		},
		&cobra.Command{
			Use:   "start",
			Short: "Start the stopped instances of the network",
			Args:  cobra.NoArgs,
			RunE:  lifecycle((*chainnet.Network).Start),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the running instances of the network",
			Args:  cobra.NoArgs,
			RunE:  lifecycle((*chainnet.Network).Stop),
		},
		&cobra.Command{
			Use:   "ips",
			Short: "List the addresses of the running instances",
			Args:  cobra.NoArgs,
			RunE:  ips,
		},
		&cobra.Command{
			Use:   "install-deps",
			Short: "Install the product dependencies on all running instances",
			Args:  cobra.NoArgs,
			RunE:  sessionCommand((*chainnet.Network).InstallDeps),
		},
		&cobra.Command{
			Use:   "install-core",
			Short: "Install the product on all running instances",
			Args:  cobra.NoArgs,
			RunE:  sessionCommand((*chainnet.Network).InstallCore),
		},
		&cobra.Command{
			Use:   "start-core",
			Short: "Start the product on all running instances",
			Args:  cobra.NoArgs,
			RunE:  sessionCommand((*chainnet.Network).StartCore),
		},
		&cobra.Command{
			Use:   "stop-core",
			Short: "Stop the product on all running instances",
			Args:  cobra.NoArgs,
			RunE:  sessionCommand((*chainnet.Network).StopCore),
		},
		&cobra.Command{
			Use:   "uninstall-core",
			Short: "Remove the product from all running instances",
			Args:  cobra.NoArgs,
			RunE:  sessionCommand((*chainnet.Network).UninstallCore),
		},
		&cobra.Command{
			Use:   "exec <command>...",
			Short: "Run commands on all running instances",
			Long:  "Run each command in turn on all running instances. Quote commands containing spaces.",
			RunE:  execute,
		},
		&cobra.Command{
			Use:   "unlock",
			Short: "Break the network lock",
			Args:  cobra.NoArgs,
			RunE:  unlock,
		},
	)

	cmdJobs := &cobra.Command{
		Use:   "jobs [<id>...]",
		Short: "List the jobs run against the network",
		RunE:  jobs,
	}
	cmdJobs.Flags().BoolVarP(&jsonout, "json", "j", jsonout, "output in json")
	root.AddCommand(cmdJobs)

	return root
}

func main() {
	if err := newRoot().Execute(); err != nil {
		log.WithField("error", err).Fatal("command failed")
	}
}
