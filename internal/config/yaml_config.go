package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfigPath returns the config.yaml that `tasker config set` edits:
// the file viper loaded if there is one, otherwise .tasker/config.yaml in
// the working directory.
func ProjectConfigPath() (string, error) {
	if used := ConfigFileUsed(); used != "" {
		return used, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, ".tasker", "config.yaml"), nil
}

// SetYamlConfig sets a configuration value in the project's config.yaml file.
// Dotted keys address nested mappings ("ai.model" -> ai: {model: ...}).
// Comments and ordering of the existing document are preserved.
func SetYamlConfig(key, value string) error {
	configPath, err := ProjectConfigPath()
	if err != nil {
		return err
	}
	if err := SetYamlConfigAt(configPath, key, value); err != nil {
		return err
	}
	Set(key, value)
	return nil
}

// SetYamlConfigAt is SetYamlConfig against an explicit file.
func SetYamlConfigAt(configPath, key, value string) error {
	if key == "" {
		return fmt.Errorf("config key is required")
	}

	var doc yaml.Node
	content, err := os.ReadFile(configPath) // #nosec G304 - path from ProjectConfigPath or caller
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", configPath)
	}

	setNode(root, strings.Split(key, "."), scalarNode(value))

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	return nil
}

// GetYamlConfigAt reads a dotted key straight from a config file, bypassing
// environment overrides. Returns "" when the key is absent.
func GetYamlConfigAt(configPath, key string) (string, error) {
	content, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", configPath, err)
	}
	var cfg map[string]interface{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", configPath, err)
	}
	var cur interface{} = cfg
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", nil
		}
		if cur, ok = m[part]; !ok {
			return "", nil
		}
	}
	if cur == nil {
		return "", nil
	}
	return fmt.Sprint(cur), nil
}

func setNode(m *yaml.Node, path []string, val *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != path[0] {
			continue
		}
		if len(path) == 1 {
			m.Content[i+1] = val
			return
		}
		child := m.Content[i+1]
		if child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			m.Content[i+1] = child
		}
		setNode(child, path[1:], val)
		return
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	if len(path) == 1 {
		m.Content = append(m.Content, keyNode, val)
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, keyNode, child)
	setNode(child, path[1:], val)
}

// scalarNode keeps booleans and numbers unquoted.
func scalarNode(value string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: "!!str"}
	if _, err := strconv.ParseBool(value); err == nil {
		n.Tag = "!!bool"
	} else if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		n.Tag = "!!int"
	}
	return n
}
