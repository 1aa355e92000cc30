package chainnet

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Product is the recipe for the software a network runs
type Product struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Deps        []string `yaml:"deps"` // run in order to install dependencies
	Core        []string `yaml:"core"` // run in order to install the node software
	Start       string   `yaml:"start"`
	Stop        string   `yaml:"stop"`
	Uninstall   string   `yaml:"uninstall"`
}

// DefaultProduct is the Chainspace node on Debian jessie
var DefaultProduct = &Product{
	Name:        "chainspace",
	DisplayName: "Chainspace",
	Deps: []string{
		"sudo apt update",
		"sudo apt install -t jessie-backports openjdk-8-jdk -y",
		"sudo apt install git python-pip maven screen psmisc -y",
	},
	Core: []string{
		"git clone https://github.com/musalbas/chainspace",
		"sudo pip install chainspace/chainspacecontract",
		"sudo update-alternatives --set java /usr/lib/jvm/java-8-openjdk-amd64/jre/bin/java",
		"cd chainspace/chainspacecore; export JAVA_HOME=/usr/lib/jvm/java-8-openjdk-amd64; mvn package assembly:single",
	},
	Start:     "screen -dmS chainspacecore java -cp chainspace/chainspacecore/target/chainspace-1.0-SNAPSHOT-jar-with-dependencies.jar uk.ac.ucl.cs.sec.chainspace.Main",
	Stop:      "killall java",
	Uninstall: "rm -rf chainspace; sudo pip uninstall chainspacecontract",
}

// Validate ensures required fields are populated
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("product name is required")
	}
	if p.Start == "" {
		return errors.New("product start command is required")
	}
	if p.Stop == "" {
		return errors.New("product stop command is required")
	}
	return nil
}

// Label is the human readable product name
func (p *Product) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// LoadProduct reads a product recipe from a yaml file
func LoadProduct(path string) (*Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading product file: %w", err)
	}

	p := &Product{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing product file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
