package reporter

import "fmt"

// Factory builds a Reporter from the shared Config.
type Factory func(cfg Config) (Reporter, error)

var factories = map[string]Factory{
	"console": func(cfg Config) (Reporter, error) {
		return NewConsoleReporter(cfg.Console, nil), nil
	},
	"kafka": func(cfg Config) (Reporter, error) {
		return NewKafkaReporter(cfg.Kafka)
	},
}

// Register adds a named reporter factory, for callers that extend the
// set with their own sink. Panics on a duplicate name: factory
// registration happens at init time, and a collision there is a
// programming error, not a runtime condition to recover from.
func Register(name string, f Factory) {
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("reporter: factory %q already registered", name))
	}
	factories[name] = f
}

// New builds the reporter named by cfg.Type.
func New(cfg Config) (Reporter, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("reporter: unknown type %q", cfg.Type)
	}
	return f(cfg)
}
