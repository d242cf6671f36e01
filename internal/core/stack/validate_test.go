package stack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	out := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		out = append(out, v.Field)
	}
	return out
}

func TestValidate_Minimal(t *testing.T) {
	cfg := &Config{
		Name:     "demo",
		Services: map[string]Service{"web": {Image: "nginx"}},
	}
	assert.NoError(t, Validate(cfg))
}

func TestValidate_EmptyServicesIsValid(t *testing.T) {
	cfg := &Config{Name: "demo", Services: map[string]Service{}}
	assert.NoError(t, Validate(cfg))
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *Config
		field string
	}{
		{"missing name", &Config{Services: map[string]Service{"web": {Image: "nginx"}}}, "name"},
		{"bad name", &Config{Name: "-bad", Services: map[string]Service{"web": {Image: "nginx"}}}, "name"},
		{"name with space", &Config{Name: "my shop", Services: map[string]Service{"web": {Image: "nginx"}}}, "name"},
		{"name with leading underscore", &Config{Name: "_shop", Services: map[string]Service{"web": {Image: "nginx"}}}, "name"},
		{"missing services", &Config{Name: "demo"}, "services"},
		{"service without image or build", &Config{Name: "demo", Services: map[string]Service{"web": {}}}, "services[web].image"},
		{"build without context", &Config{Name: "demo", Services: map[string]Service{"web": {Build: &BuildConfig{}}}}, "services[web].build.context"},
		{"bad restart", &Config{Name: "demo", Services: map[string]Service{"web": {Image: "nginx", Restart: "sometimes"}}}, "services[web].restart"},
		{"builder without name", &Config{Name: "demo", Services: map[string]Service{"web": {Image: "nginx"}}, Builder: &PluginRef{}}, "builder.name"},
		{"unknown dependency", &Config{Name: "demo", Services: map[string]Service{"web": {Image: "nginx", DependsOn: []string{"db"}}}}, "services[web].depends_on[0]"},
		{"bad port", &Config{Name: "demo", Services: map[string]Service{"web": {Image: "nginx", Ports: []string{"http:eighty"}}}}, "services[web].ports[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigInvalid)
			assert.Contains(t, fields(t, err), tt.field)
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := &Config{Services: map[string]Service{"web": {}}}
	got := fields(t, Validate(cfg))
	assert.Contains(t, got, "name")
	assert.Contains(t, got, "services[web].image")
}

func TestValidate_DependencyCycle(t *testing.T) {
	cfg := &Config{
		Name: "demo",
		Services: map[string]Service{
			"a": {Image: "x", DependsOn: []string{"b"}},
			"b": {Image: "x", DependsOn: []string{"a"}},
		},
	}
	err := Validate(cfg)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	var rules []string
	for _, v := range verr.Violations {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, "acyclic")
}

func TestValidate_SelfDependency(t *testing.T) {
	cfg := &Config{
		Name:     "demo",
		Services: map[string]Service{"a": {Image: "x", DependsOn: []string{"a"}}},
	}
	assert.ErrorIs(t, Validate(cfg), ErrConfigInvalid)
}

func TestStringOrList_YAML(t *testing.T) {
	var svc Service
	require.NoError(t, yaml.Unmarshal([]byte("image: x\ncommand: npm start\n"), &svc))
	assert.Equal(t, StringOrList{"npm start"}, svc.Command)

	require.NoError(t, yaml.Unmarshal([]byte("image: x\ncommand: [npm, start]\n"), &svc))
	assert.Equal(t, StringOrList{"npm", "start"}, svc.Command)
}

func TestConfig_PluginNames(t *testing.T) {
	cfg := &Config{Builder: &PluginRef{Name: "X"}}
	assert.Equal(t, "X", cfg.BuilderName())
	assert.Equal(t, "", cfg.EngineName())

	var nilCfg *Config
	assert.Equal(t, "", nilCfg.BuilderName())
}
