package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline is one entry of the optional pipelines file. Unset fields inherit
// from the main config; only the pipeline slug is mandatory per entry.
type Pipeline struct {
	Org         string `yaml:"org"`
	Pipeline    string `yaml:"pipeline"`
	Branch      string `yaml:"branch"`
	LarkWebhook string `yaml:"lark_webhook"`
}

func (p *Pipeline) validate() error {
	if strings.TrimSpace(p.Pipeline) == "" {
		return fmt.Errorf("pipeline is required")
	}
	if p.LarkWebhook != "" {
		if err := validateHTTPURL("lark_webhook", p.LarkWebhook); err != nil {
			return err
		}
	}
	return nil
}

// ParsePipelines extracts and validates the `pipelines:` list from a
// pipelines.yaml/pipelines.yml file. Other top-level keys are ignored; unknown
// keys within an entry are errors.
func ParsePipelines(yamlBytes []byte) ([]Pipeline, error) {
	if len(bytes.TrimSpace(yamlBytes)) == 0 {
		return nil, nil
	}

	expanded, err := expandEnvPlaceholders(yamlBytes)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(expanded, &root); err != nil {
		return nil, err
	}

	listNode := findTopLevelYAMLKey(&root, "pipelines")
	if listNode == nil {
		return nil, nil
	}
	if listNode.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("pipelines: expected a list")
	}

	out := make([]Pipeline, 0, len(listNode.Content))
	for idx, item := range listNode.Content {
		raw, err := yaml.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("pipelines[%d]: marshal: %w", idx, err)
		}

		var p Pipeline
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("pipelines[%d]: %w", idx, err)
		}

		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("pipelines[%d]: %w", idx, err)
		}
		out = append(out, p)
	}

	return out, nil
}

// LoadPipelines loads the optional pipelines file from dir. Absence is not an
// error; a malformed file is.
func LoadPipelines(dir string) ([]Pipeline, error) {
	paths := []string{
		filepath.Join(dir, "pipelines.yaml"),
		filepath.Join(dir, "pipelines.yml"),
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		pipelines, err := ParsePipelines(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		return pipelines, nil
	}
	return nil, nil
}

func findTopLevelYAMLKey(root *yaml.Node, key string) *yaml.Node {
	n := root
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		v := n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.Value == key {
			return v
		}
	}
	return nil
}
