package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/stack"
)

// record is the on-disk shape of one StackState. Timestamps are kept as
// strings so malformed values can be recovered instead of failing the
// whole document.
type record struct {
	Name          string  `json:"name" yaml:"name" validate:"required"`
	ConfigPath    string  `json:"configPath" yaml:"configPath" validate:"required"`
	BuildStatus   string  `json:"buildStatus" yaml:"buildStatus" validate:"required,oneof=not_built building built error unknown"`
	RuntimeStatus string  `json:"runtimeStatus" yaml:"runtimeStatus" validate:"required,oneof=unknown building starting running stopping stopped destroying error not_created"`
	LastBuiltAt   *string `json:"lastBuiltAt" yaml:"lastBuiltAt"`
	LastStartedAt *string `json:"lastStartedAt" yaml:"lastStartedAt"`
	ManifestPath  *string `json:"manifestPath" yaml:"manifestPath"`
	LastError     *string `json:"lastError" yaml:"lastError"`
}

// decode parses the state document. A missing timestamp (null or absent)
// stays nil; a present but unparseable one defaults to the Unix epoch.
func decode(data []byte) (domain.DevxState, error) {
	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceRead, err)
	}

	out := make(domain.DevxState, len(raw))
	for key, r := range raw {
		if err := validateRecord(key, r); err != nil {
			return nil, err
		}
		out[key] = domain.StackState{
			Name:          r.Name,
			ConfigPath:    r.ConfigPath,
			BuildStatus:   domain.BuildStatus(r.BuildStatus),
			RuntimeStatus: domain.RuntimeStatus(r.RuntimeStatus),
			LastBuiltAt:   parseTime(r.LastBuiltAt),
			LastStartedAt: parseTime(r.LastStartedAt),
			ManifestPath:  r.ManifestPath,
			LastError:     r.LastError,
		}
	}
	return out, nil
}

// encode serializes the state document with ISO-8601 timestamps.
func encode(state domain.DevxState) ([]byte, error) {
	raw := make(map[string]record, len(state))
	for key, s := range state {
		r := record{
			Name:          s.Name,
			ConfigPath:    s.ConfigPath,
			BuildStatus:   string(s.BuildStatus),
			RuntimeStatus: string(s.RuntimeStatus),
			LastBuiltAt:   formatTime(s.LastBuiltAt),
			LastStartedAt: formatTime(s.LastStartedAt),
			ManifestPath:  s.ManifestPath,
			LastError:     s.LastError,
		}
		if err := validateRecord(key, r); err != nil {
			return nil, err
		}
		raw[key] = r
	}
	return json.MarshalIndent(raw, "", "  ")
}

func validateRecord(key string, r record) error {
	if err := stack.Validator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			violations := stack.ConvertValidationErrors(verrs, "record.")
			return fmt.Errorf("%w: %s: %s", ErrInvalidState, key, stack.NewValidationError(violations...).Error())
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidState, key, err)
	}
	return nil
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		t = time.Unix(0, 0).UTC()
	}
	return &t
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
