package registry

import (
	"encoding/json"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// ConfigResolver is the tagged variant of spec.md §9: a static partial
// config, or a function of the event payload evaluated only at fanout
// time so a non-pure function cannot leak state between registration and
// use.
type ConfigResolver struct {
	static  *models.Config
	dynamic func(json.RawMessage) models.Config
}

// StaticConfig returns a resolver that always yields c.
func StaticConfig(c models.Config) ConfigResolver {
	return ConfigResolver{static: &c}
}

// DynamicConfig returns a resolver evaluated against the event payload at
// fanout time.
func DynamicConfig(f func(json.RawMessage) models.Config) ConfigResolver {
	return ConfigResolver{dynamic: f}
}

func (r ConfigResolver) resolve(data json.RawMessage) models.Config {
	if r.dynamic != nil {
		return r.dynamic(data)
	}
	if r.static != nil {
		return *r.static
	}
	return models.Config{}
}
