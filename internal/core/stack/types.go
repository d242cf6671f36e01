// Package stack contains the declarative stack configuration model and its
// schema validation. This is part of the Functional Core - no I/O.
package stack

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Config - Declarative Stack Description
// =============================================================================

// Config is the declarative description of a stack as read from a
// .stack.yml / .stack.yaml / .stack.json file.
type Config struct {
	Name     string             `yaml:"name" json:"name" validate:"required,stackname"`
	Services map[string]Service `yaml:"services" json:"services" validate:"required,dive"`
	Builder  *PluginRef         `yaml:"builder,omitempty" json:"builder,omitempty"`
	Engine   *PluginRef         `yaml:"engine,omitempty" json:"engine,omitempty"`
	Networks map[string]any     `yaml:"networks,omitempty" json:"networks,omitempty"`
	Volumes  map[string]any     `yaml:"volumes,omitempty" json:"volumes,omitempty"`
}

// PluginRef selects a non-default builder or engine plugin for one stack.
type PluginRef struct {
	Name    string         `yaml:"name" json:"name" validate:"required"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Service describes a single container in the stack.
type Service struct {
	Image       string            `yaml:"image,omitempty" json:"image,omitempty" validate:"required_without=Build"`
	Build       *BuildConfig      `yaml:"build,omitempty" json:"build,omitempty"`
	Command     StringOrList      `yaml:"command,omitempty" json:"command,omitempty"`
	Entrypoint  StringOrList      `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
	Ports       []string          `yaml:"ports,omitempty" json:"ports,omitempty" validate:"dive,required"`
	Volumes     []string          `yaml:"volumes,omitempty" json:"volumes,omitempty" validate:"dive,required"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty" json:"depends_on,omitempty" validate:"dive,required"`
	Networks    []string          `yaml:"networks,omitempty" json:"networks,omitempty" validate:"dive,required"`
	WorkingDir  string            `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
	Restart     string            `yaml:"restart,omitempty" json:"restart,omitempty" validate:"omitempty,oneof=no always on-failure unless-stopped"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// BuildConfig is a local image build context.
type BuildConfig struct {
	Context    string `yaml:"context" json:"context" validate:"required"`
	Dockerfile string `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
}

// BuilderName returns the stack-level builder override, or "".
func (c *Config) BuilderName() string {
	if c == nil || c.Builder == nil {
		return ""
	}
	return c.Builder.Name
}

// EngineName returns the stack-level engine override, or "".
func (c *Config) EngineName() string {
	if c == nil || c.Engine == nil {
		return ""
	}
	return c.Engine.Name
}

// =============================================================================
// StringOrList
// =============================================================================

// StringOrList accepts either a single string or a list of strings, the way
// compose files allow for command and entrypoint.
type StringOrList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = StringOrList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*s = list
	return nil
}
