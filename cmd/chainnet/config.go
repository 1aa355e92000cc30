package main

import (
	"os"
	"time"

	"github.com/mistifyio/chainnet"
	"github.com/mistifyio/chainnet/provider/ssh"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// config holds everything a command needs. It is read from the config file
// and then overridden by the flags given on the command line.
type config struct {
	Network        string            `yaml:"network"`
	Region         string            `yaml:"region"`
	Inventory      string            `yaml:"inventory"`
	KV             string            `yaml:"kv"`
	Workers        int               `yaml:"workers"`
	InstanceType   string            `yaml:"instance_type"`
	SecurityGroups []string          `yaml:"security_groups"`
	VolumeSize     int32             `yaml:"volume_size"`
	Images         map[string]string `yaml:"images"`
	SSH            ssh.Config        `yaml:"ssh"`
	Product        *chainnet.Product `yaml:"product"`
	LogLevel       string            `yaml:"log_level"`
	LogFormat      string            `yaml:"log_format"`
}

func defaultConfig() *config {
	return &config{
		Region:         "us-east-2",
		Inventory:      "ec2",
		Workers:        chainnet.DefaultWorkers,
		InstanceType:   "t2.micro",
		SecurityGroups: []string{"chainspace"},
		VolumeSize:     2,
		SSH: ssh.Config{
			User: ssh.DefaultUser,
			Port: ssh.DefaultPort,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Product != nil {
		if err := cfg.Product.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// addFlags registers the persistent flags with the defaults as their values
func addFlags(flags *pflag.FlagSet) {
	d := defaultConfig()
	flags.String("config", "", "config file")
	flags.StringP("network", "n", "", "network id")
	flags.StringP("region", "r", d.Region, "aws region")
	flags.String("inventory", d.Inventory, `inventory source, "ec2" or a static hosts file`)
	flags.String("kv", "", "kv store address for jobs and locks (etcd://, consul://, mem://)")
	flags.IntP("workers", "w", d.Workers, "maximum concurrent nodes per operation")
	flags.String("ssh-user", d.SSH.User, "ssh user")
	flags.StringSlice("ssh-key", nil, "ssh private key file")
	flags.String("known-hosts", "", "known_hosts file, any host key is accepted without one")
	flags.Duration("ssh-timeout", ssh.DefaultTimeout, "ssh connection timeout")
	flags.StringP("log-level", "l", d.LogLevel, "log level")
	flags.String("log-format", d.LogFormat, "log format, text or json")
}

// applyFlags overrides cfg with the flags explicitly set
func applyFlags(cfg *config, flags *pflag.FlagSet) error {
	strs := map[string]*string{
		"network":     &cfg.Network,
		"region":      &cfg.Region,
		"inventory":   &cfg.Inventory,
		"kv":          &cfg.KV,
		"ssh-user":    &cfg.SSH.User,
		"known-hosts": &cfg.SSH.KnownHosts,
		"log-level":   &cfg.LogLevel,
		"log-format":  &cfg.LogFormat,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	var err error
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if flags.Changed("ssh-key") {
		if cfg.SSH.KeyFiles, err = flags.GetStringSlice("ssh-key"); err != nil {
			return err
		}
	}
	if flags.Changed("ssh-timeout") {
		var timeout time.Duration
		if timeout, err = flags.GetDuration("ssh-timeout"); err != nil {
			return err
		}
		cfg.SSH.Timeout = timeout
	}
	return nil
}

// apply sets up a chainnet context from the config
func (cfg *config) apply(c *chainnet.Context) {
	c.Region = cfg.Region
	c.Images = cfg.Images
	c.InstanceType = cfg.InstanceType
	c.SecurityGroups = cfg.SecurityGroups
	c.VolumeSize = cfg.VolumeSize
	c.Workers = cfg.Workers
	if cfg.Product != nil {
		c.Product = cfg.Product
	}
}
