package directory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a contacts YAML file.
//
// Example:
//
//	contacts:
//	  - id: alice
//	    name: "Alice Smith"
//	    numbers: ["+49 30 111", "+49 170 222"]
//	  - name: "Bob"
type File struct {
	Contacts []Contact `yaml:"contacts"`
}

// LoadFile reads, parses and validates a contacts file from disk.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("directory: open contacts file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("directory: parse contacts file %q: %w", path, err)
	}
	return cf, nil
}

// LoadFromReader parses and validates contacts YAML from r. Names and
// numbers are trimmed and blank numbers dropped. An empty document yields an
// empty File.
func LoadFromReader(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("directory: decode contacts yaml: %w", err)
	}
	for i := range cf.Contacts {
		c := &cf.Contacts[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		numbers := c.Numbers[:0]
		for _, n := range c.Numbers {
			if n = strings.TrimSpace(n); n != "" {
				numbers = append(numbers, n)
			}
		}
		c.Numbers = numbers
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Validate reports every contact without a name and every repeated ID.
func (f *File) Validate() error {
	var errs []error
	seen := make(map[string]int, len(f.Contacts))
	for i, c := range f.Contacts {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("contacts[%d]: name is required", i))
		}
		if c.ID == "" {
			continue
		}
		if first, dup := seen[c.ID]; dup {
			errs = append(errs, fmt.Errorf("contacts[%d]: id %q already used by contacts[%d]: %w", i, c.ID, first, ErrDuplicateID))
			continue
		}
		seen[c.ID] = i
	}
	return errors.Join(errs...)
}
