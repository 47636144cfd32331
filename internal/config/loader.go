package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

// TopologyFile is the layout of a standalone topology file:
//
//	vlans:
//	  - id: "10"
//	    members:
//	      - {port: 2, switch: 1}
//	      - {port: 1, switch: 1}
type TopologyFile struct {
	VLANs []topology.VLANDef `yaml:"vlans"`
}

// LoadTopologyFile reads VLAN definitions from a YAML file, keeping file order.
func LoadTopologyFile(path string) ([]topology.VLANDef, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("topology file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file %s: %w", path, err)
	}

	return ParseTopology(data)
}

// ParseTopology decodes a topology document and checks it builds a valid table.
func ParseTopology(data []byte) ([]topology.VLANDef, error) {
	var file TopologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse topology: %v", core.ErrConfigInvalid, err)
	}
	if _, err := topology.New(file.VLANs); err != nil {
		return nil, err
	}
	return file.VLANs, nil
}

// MarshalTopology encodes defs in the topology file layout.
func MarshalTopology(defs []topology.VLANDef) ([]byte, error) {
	return yaml.Marshal(TopologyFile{VLANs: defs})
}
