package integration

import (
	"fmt"
	"log"

	"github.com/homedash/backend/internal/config"
)

// Builder constructs an integration from its credential block. Builders
// validate credentials eagerly so a misconfigured integration fails at
// load time instead of on its first refresh.
type Builder func(creds *config.Credentials) (Integration, error)

// Registry maps integration names to builders. Registration is static:
// every integration compiled into the binary registers itself here from
// cmd/server, replacing the dynamic plugin discovery a scripting runtime
// would use.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under the given name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(name string, builder Builder) {
	if _, exists := r.builders[name]; exists {
		panic(fmt.Sprintf("integration %q registered twice", name))
	}
	r.builders[name] = builder
}

// Known reports whether an integration name has a registered builder.
func (r *Registry) Known(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered integration names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

// LoadAll builds one integration per enabled widget in the config. A
// widget referencing an unknown integration, or one whose builder fails,
// is logged and skipped; it gets no refresh task and must not prevent the
// others from loading. Duplicate widget entries share one integration.
func (r *Registry) LoadAll(cfg *config.Config, creds *config.Credentials) []Integration {
	var loaded []Integration
	seen := make(map[string]bool)

	for _, widget := range cfg.EnabledWidgets() {
		name := widget.Integration
		if seen[name] {
			continue
		}

		builder, ok := r.builders[name]
		if !ok {
			log.Printf("Unknown integration %q, skipping widget", name)
			continue
		}

		integ, err := builder(creds)
		if err != nil {
			log.Printf("Failed to load integration %q: %v", name, err)
			continue
		}

		seen[name] = true
		loaded = append(loaded, integ)
	}

	return loaded
}
