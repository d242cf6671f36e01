package compose

import (
	"fmt"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
)

// =============================================================================
// Labels
// =============================================================================

const (
	LabelManaged = "com.devx.managed"
	LabelStack   = "com.devx.stack"

	// LabelComposeProject is set by podman-compose (and docker compose) on
	// every container it creates.
	LabelComposeProject = "com.docker.compose.project"
	// LabelComposeService names the compose service a container belongs to.
	LabelComposeService = "com.docker.compose.service"
)

// ProjectName returns the compose project name for a stack. Compose project
// names must be lowercase; the stack name is normalized accordingly.
//
// Example:
//
//	ProjectName("My.Stack") // returns "mystack"
func ProjectName(stackName string) string {
	return loader.NormalizeProjectName(stackName)
}

// ProjectLabelFilter returns the label filter that selects every container
// of a stack's compose project.
func ProjectLabelFilter(stackName string) string {
	return fmt.Sprintf("%s=%s", LabelComposeProject, ProjectName(stackName))
}

// ServiceFromContainerName extracts the compose service name from a
// container name following the {project}[-_]{service}[-_]{index} pattern.
// It is a fallback for containers that lack the service label.
func ServiceFromContainerName(project, containerName string) string {
	name := strings.TrimPrefix(containerName, "/")
	for _, sep := range []string{"-", "_"} {
		prefix := project + sep
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if idx := strings.LastIndex(rest, sep); idx > 0 {
			return rest[:idx]
		}
		return rest
	}
	return name
}
