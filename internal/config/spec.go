package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"voxaug/internal/augment"
	"voxaug/internal/fault"
)

// LoadOutputSpec reads a YAML mapping of key to shape, e.g.
//
//	image: [1, 18, 160, 160]
//	label: [18, 160, 160]
func LoadOutputSpec(path string) (augment.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: output spec: %w", fault.ErrConfiguration, err)
	}
	return ParseSpec(raw)
}

func ParseSpec(raw []byte) (augment.Spec, error) {
	var m map[string][]int
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: output spec: %w", fault.ErrConfiguration, err)
	}
	return SpecFromMap(m)
}

// SpecFromMap validates every shape and converts m to a Spec.
func SpecFromMap(m map[string][]int) (augment.Spec, error) {
	if len(m) == 0 {
		return nil, fault.Configf("output spec is empty")
	}
	spec := make(augment.Spec, len(m))
	for k, shape := range m {
		if err := checkShape(k, shape); err != nil {
			return nil, err
		}
		spec[k] = append(augment.Shape(nil), shape...)
	}
	return spec, nil
}

// ParseShapeFlag parses key=d0,d1,... as given on the command line.
func ParseShapeFlag(s string) (string, augment.Shape, error) {
	key, dims, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", nil, fault.Configf("shape %q: want key=d0,d1,...", s)
	}
	var shape augment.Shape
	for _, d := range strings.Split(dims, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return "", nil, fault.Configf("shape %q: %v", s, err)
		}
		shape = append(shape, v)
	}
	if err := checkShape(key, shape); err != nil {
		return "", nil, err
	}
	return key, shape, nil
}

func checkShape(key string, shape []int) error {
	if len(shape) < 3 || len(shape) > 4 {
		return fault.Configf("%q: shape %v needs 3 or 4 axes", key, shape)
	}
	for _, d := range shape {
		if d < 1 {
			return fault.Configf("%q: shape %v has a non-positive extent", key, shape)
		}
	}
	return nil
}

// WriteSpec prints spec as YAML with keys in ascending order and each shape
// on one line.
func WriteSpec(w io.Writer, spec augment.Spec) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(SpecNode(spec)); err != nil {
		return err
	}
	return enc.Close()
}

// SpecNode renders spec as a YAML mapping node.
func SpecNode(spec augment.Spec) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range spec.Keys() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, d := range spec[k] {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(d)})
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, seq)
	}
	return n
}
