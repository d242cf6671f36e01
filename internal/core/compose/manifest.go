package compose

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/format"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// =============================================================================
// Manifest Generation
// =============================================================================

// BuildProject converts a stack config into a compose-go project.
// projectPath is the directory containing the stack config; relative build
// contexts and bind mount sources are resolved against it.
// This is a pure function - no I/O, no side effects.
func BuildProject(cfg *stack.Config, projectPath string) (*types.Project, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	project := &types.Project{
		Name:       ProjectName(cfg.Name),
		WorkingDir: projectPath,
		Services:   make(types.Services, len(cfg.Services)),
	}

	for _, name := range StartOrder(cfg.Services) {
		svc, err := convertService(cfg.Name, name, cfg.Services[name], projectPath)
		if err != nil {
			return nil, err
		}
		project.Services[name] = svc
	}

	if len(cfg.Networks) > 0 {
		project.Networks = make(types.Networks, len(cfg.Networks))
		for name, raw := range cfg.Networks {
			var net types.NetworkConfig
			if err := decodeOpaque(raw, &net); err != nil {
				return nil, NewConvertError("networks."+name, err.Error(), ErrInvalidResource)
			}
			project.Networks[name] = net
		}
	}

	if len(cfg.Volumes) > 0 {
		project.Volumes = make(types.Volumes, len(cfg.Volumes))
		for name, raw := range cfg.Volumes {
			var vol types.VolumeConfig
			if err := decodeOpaque(raw, &vol); err != nil {
				return nil, NewConvertError("volumes."+name, err.Error(), ErrInvalidResource)
			}
			project.Volumes[name] = vol
		}
	}

	return project, nil
}

// RenderManifest renders a stack config as compose YAML.
func RenderManifest(cfg *stack.Config, projectPath string) ([]byte, error) {
	project, err := BuildProject(cfg, projectPath)
	if err != nil {
		return nil, err
	}
	out, err := project.MarshalYAML()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshalManifest, err)
	}
	return out, nil
}

// convertService converts a stack service to a compose-go service.
func convertService(stackName, name string, svc stack.Service, projectPath string) (types.ServiceConfig, error) {
	out := types.ServiceConfig{
		Name:       name,
		Image:      svc.Image,
		Command:    types.ShellCommand(svc.Command),
		Entrypoint: types.ShellCommand(svc.Entrypoint),
		WorkingDir: svc.WorkingDir,
		Restart:    svc.Restart,
		Labels:     types.Labels{},
	}

	if svc.Build != nil {
		out.Build = &types.BuildConfig{
			Context:    resolvePath(projectPath, svc.Build.Context),
			Dockerfile: svc.Build.Dockerfile,
		}
	}

	// Ports
	for i, spec := range svc.Ports {
		ports, err := types.ParsePortConfig(spec)
		if err != nil {
			return types.ServiceConfig{}, NewConvertError(
				fmt.Sprintf("services.%s.ports[%d]", name, i), err.Error(), ErrInvalidPort)
		}
		out.Ports = append(out.Ports, ports...)
	}

	// Volumes
	for i, spec := range svc.Volumes {
		vol, err := format.ParseVolume(spec)
		if err != nil {
			return types.ServiceConfig{}, NewConvertError(
				fmt.Sprintf("services.%s.volumes[%d]", name, i), err.Error(), ErrInvalidVolume)
		}
		if vol.Type == types.VolumeTypeBind {
			vol.Source = resolvePath(projectPath, vol.Source)
		}
		out.Volumes = append(out.Volumes, vol)
	}

	// Environment
	if len(svc.Environment) > 0 {
		out.Environment = make(types.MappingWithEquals, len(svc.Environment))
		for k, v := range svc.Environment {
			value := v
			out.Environment[k] = &value
		}
	}

	// DependsOn
	if len(svc.DependsOn) > 0 {
		out.DependsOn = make(types.DependsOnConfig, len(svc.DependsOn))
		for _, dep := range svc.DependsOn {
			out.DependsOn[dep] = types.ServiceDependency{
				Condition: types.ServiceConditionStarted,
				Required:  true,
			}
		}
	}

	// Networks
	if len(svc.Networks) > 0 {
		out.Networks = make(map[string]*types.ServiceNetworkConfig, len(svc.Networks))
		for _, net := range svc.Networks {
			out.Networks[net] = nil
		}
	}

	// Labels
	for k, v := range svc.Labels {
		out.Labels[k] = v
	}
	out.Labels[LabelManaged] = "true"
	out.Labels[LabelStack] = stackName

	return out, nil
}

// resolvePath makes a relative path absolute against base. Absolute paths,
// home-relative paths and URLs (remote build contexts) are returned as is.
func resolvePath(base, p string) string {
	if p == "" || base == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(base, p)
}

// decodeOpaque converts a pass-through definition (as decoded from the stack
// file) into a typed compose-go struct by round-tripping through YAML.
func decodeOpaque(raw any, out any) error {
	if raw == nil {
		return nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// ImageNames returns the sorted, de-duplicated images referenced by the
// stack's services.
func ImageNames(cfg *stack.Config) []string {
	seen := make(map[string]bool)
	var images []string
	for _, svc := range cfg.Services {
		if svc.Image != "" && !seen[svc.Image] {
			seen[svc.Image] = true
			images = append(images, svc.Image)
		}
	}
	sort.Strings(images)
	return images
}
