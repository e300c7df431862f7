package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/config"
)

// AttributeMapping is one user-configured mapping entry. Source is a path
// or expression evaluated on the platform side, Target the remote field the
// resolved value is written to. Entries missing either side are ignored.
type AttributeMapping struct {
	Source    string `yaml:"source" json:"source"`
	Target    string `yaml:"target" json:"target"`
	Overwrite bool   `yaml:"overwrite" json:"overwrite,omitempty"`
	ReadOnly  bool   `yaml:"readOnly" json:"read_only,omitempty"`
}

// AppSettings is the read-only connector configuration for one sync run.
type AppSettings struct {
	// DisableSync short-circuits both the live and the batch lane.
	DisableSync bool
	// Events is the whitelist of event names eligible for synchronization.
	Events []string
	// SynchronizedSegments is the whitelist of user segment ids; users
	// outside all of them are skipped on live updates.
	SynchronizedSegments []string
	// Object is the remote object type records are written to.
	Object string
	// ObjectIDField is the business-key field on the remote object used to
	// correlate outbound candidates with existing records.
	ObjectIDField string
	// EventIDPath is the path to the event identifier within the combined
	// event context; its value becomes the business key of the candidate.
	EventIDPath string
	// ReferencesOutgoing maps profile reference attributes to remote fields.
	ReferencesOutgoing []AttributeMapping
	// EventProperties maps event expressions to remote fields.
	EventProperties []AttributeMapping
	API APISettings
}

// APISettings holds endpoints and credentials for the two collaborator APIs:
// the remote record service and the platform event-history API.
type APISettings struct {
	Keys struct {
		Service  string
		Platform string
	}
	IDs struct {
		App string `yaml:"app"`
	}
	Endpoints struct {
		Service  string
		Platform string
	}
}

// SettingsFile wraps a settings source so empty files can be skipped.
type SettingsFile struct {
	Reader io.Reader
	Length int64
}

// CompositeEnvVar resolves child keys out of a composite environment
// variable, allowing secrets to be injected without one env var per key.
type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar reads child keys from a parent environment variable
// holding a JSON object.
type JSONCompositeEnvVar struct {
	Parent string
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				v, exists := m[child]
				return v, exists
			}
		}
	}
	return "", false
}

// YAMLSettingsUnmarshaler reads AppSettings from YAML sources with env var
// expansion through the given CompositeEnvVar.
type YAMLSettingsUnmarshaler struct{}

func (u YAMLSettingsUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...SettingsFile) (AppSettings, error) {
	var result AppSettings
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml settings %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml settings %w", key, cause)
	}
	key := "api"
	err = yaml.Get(key).Populate(&result.API)
	if err != nil {
		return result, readError(key, err)
	}
	key = "disableSync"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.DisableSync)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "events"
	err = yaml.Get(key).Populate(&result.Events)
	if err != nil {
		return result, readError(key, err)
	}
	key = "synchronizedSegments"
	err = yaml.Get(key).Populate(&result.SynchronizedSegments)
	if err != nil {
		return result, readError(key, err)
	}
	key = "object"
	result.Object = yaml.Get(key).String()
	key = "objectIdField"
	result.ObjectIDField = yaml.Get(key).String()
	key = "eventIdPath"
	result.EventIDPath = yaml.Get(key).String()
	key = "referencesOutgoing"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.ReferencesOutgoing)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "eventProperties"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.EventProperties)
		if err != nil {
			return result, readError(key, err)
		}
	}

	return result, nil
}
