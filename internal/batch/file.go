package batch

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type opsFile struct {
	Operations []Operation `yaml:"operations"`
}

// ReadOperations decodes a YAML document of the form
//
//	operations:
//	  - kind: create
//	    create: {path: proj/a, name: Write docs}
//	  - kind: update
//	    path: proj/a
//	    update: {status: IN_PROGRESS}
//	  - kind: delete
//	    path: proj/old
func ReadOperations(r io.Reader) ([]Operation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading operations: %w", err)
	}
	var f opsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing operations: %w", err)
	}
	return f.Operations, nil
}
