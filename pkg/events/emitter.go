package events

import (
	"os"
	"sync"

	"conveyor/pkg/util/config"
	"conveyor/pkg/util/context"

	"github.com/pkg/errors"
)

const (
	envEmitterType = "EVENTS_TYPE"
)

var (
	factories = make(map[Type]func(context.Context, interface{}) (Emitter, error))
	configs   = make(map[Type]interface{})
	mutex     = &sync.Mutex{}
)

func register(t Type, f func(context.Context, interface{}) (Emitter, error), c interface{}) {
	mutex.Lock()
	defer mutex.Unlock()
	factories[t] = f
	configs[t] = c
}

// Type is a string designating the implementation of the Emitter interface.
type Type string

// Emitter publishes run and stage lifecycle events.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error

	// Close closes all connections.
	Close() error
}

// NewFromConfig returns a new Emitter based on configuration from the config
// file and/or env variables. Defaults to the log emitter.
func NewFromConfig(ctx context.Context, configKey string) (Emitter, error) {
	configTypeKey := configKey + ".type"
	t, exists := config.GetString(configTypeKey)
	if !exists {
		if config.Get(configTypeKey) != nil {
			return nil, errors.Errorf("config entry with key %s is not a string", configTypeKey)
		}
		t = os.Getenv(envEmitterType)
	}
	if t == "" {
		t = string(LogType)
	}

	mutex.Lock()
	f, exists := factories[Type(t)]
	c := configs[Type(t)]
	mutex.Unlock()
	if !exists {
		return nil, errors.Errorf("unknown emitter type %s", t)
	}
	if c != nil {
		if err := config.Unmarshal(configKey, c); err != nil {
			return nil, errors.Wrapf(err, "cannot read config for emitter type %s", t)
		}
	}
	return f(ctx, c)
}
