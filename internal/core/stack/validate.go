package stack

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/docker/go-connections/nat"
	"github.com/go-playground/validator/v10"
)

// stackNameRegex restricts names to what compose accepts as a project name
// and what is safe as a file name.
var stackNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared schema validator. Field names in violations
// use the yaml tag names so they match what the user wrote.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("stackname", func(fl validator.FieldLevel) bool {
			return stackNameRegex.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Validate checks a config against the stack schema and the semantic rules
// (dependency references, dependency cycles, port specs). All violations are
// collected; a nil return means the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewValidationError(FieldViolation{Field: "", Rule: "required", Message: "config is empty"})
	}

	var violations []FieldViolation

	if err := Validator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return NewValidationError(FieldViolation{Rule: "schema", Message: err.Error()})
		}
		violations = append(violations, ConvertValidationErrors(verrs, "Config.")...)
	}

	violations = append(violations, checkDependencies(cfg.Services)...)
	violations = append(violations, checkPorts(cfg.Services)...)

	if len(violations) > 0 {
		return NewValidationError(violations...)
	}
	return nil
}

// ConvertValidationErrors turns validator errors into field violations,
// stripping the root struct prefix from each namespace.
func ConvertValidationErrors(verrs validator.ValidationErrors, prefix string) []FieldViolation {
	out := make([]FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldViolation{
			Field:   strings.TrimPrefix(fe.Namespace(), prefix),
			Rule:    fe.Tag(),
			Message: violationMessage(fe),
		})
	}
	return out
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", strings.ToLower(fe.Param()))
	case "stackname":
		return "must start with a letter or digit and contain only letters, digits, '_', '.' or '-'"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// checkDependencies reports depends_on entries that point at unknown
// services, and dependency cycles (including self-references).
func checkDependencies(services map[string]Service) []FieldViolation {
	var violations []FieldViolation

	names := sortedNames(services)
	for _, name := range names {
		for i, dep := range services[name].DependsOn {
			if _, ok := services[dep]; !ok && dep != "" {
				violations = append(violations, FieldViolation{
					Field:   fmt.Sprintf("services[%s].depends_on[%d]", name, i),
					Rule:    "service",
					Message: fmt.Sprintf("references unknown service %q", dep),
				})
			}
		}
	}

	if cycle := findCycle(services, names); cycle != "" {
		violations = append(violations, FieldViolation{
			Field:   fmt.Sprintf("services[%s].depends_on", cycle),
			Rule:    "acyclic",
			Message: "circular dependency detected",
		})
	}

	return violations
}

// findCycle returns the name of a service that participates in a
// dependency cycle, or "" when the graph is acyclic.
func findCycle(services map[string]Service, names []string) string {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range services[node].DependsOn {
			if dep == node {
				return true
			}
			if _, ok := services[dep]; !ok {
				continue
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, name := range names {
		if !visited[name] && hasCycle(name) {
			return name
		}
	}
	return ""
}

func checkPorts(services map[string]Service) []FieldViolation {
	var violations []FieldViolation
	for _, name := range sortedNames(services) {
		for i, spec := range services[name].Ports {
			if spec == "" {
				continue
			}
			if _, err := nat.ParsePortSpec(spec); err != nil {
				violations = append(violations, FieldViolation{
					Field:   fmt.Sprintf("services[%s].ports[%d]", name, i),
					Rule:    "port",
					Message: err.Error(),
				})
			}
		}
	}
	return violations
}

func sortedNames(services map[string]Service) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
