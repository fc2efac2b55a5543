package record

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout of a boat fixture file.
type seedFile struct {
	Boats []Record `yaml:"boats"`
}

// LoadSeedFile reads boats from a YAML file of the form:
//
//	boats:
//	  - id: boat-1
//	    name: Sea Breeze
//	    boat_type_id: sail
//	    length: 32
//	    price: 45000
func LoadSeedFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]Record, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	for i, r := range f.Boats {
		if r.ID == "" {
			return nil, fmt.Errorf("boat %d: %w", i, ErrMissingID)
		}
	}
	return f.Boats, nil
}
