package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type OverflowPolicy int

const (
	// PolicyReject fails the submission with ErrCapacityExceeded.
	PolicyReject OverflowPolicy = iota
	// PolicyCallerRuns executes the task on the submitting goroutine.
	PolicyCallerRuns
	// PolicyBlock suspends the submitter until the pool can take the task.
	PolicyBlock
)

func (p OverflowPolicy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyCallerRuns:
		return "run-on-caller"
	case PolicyBlock:
		return "block"
	default:
		return "unknown"
	}
}

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject":
		return PolicyReject, nil
	case "run-on-caller", "caller-runs", "caller_runs":
		return PolicyCallerRuns, nil
	case "block":
		return PolicyBlock, nil
	default:
		return 0, fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, s)
	}
}

type ShutdownMode int

const (
	// ShutdownGraceful lets queued and in-flight tasks finish.
	ShutdownGraceful ShutdownMode = iota
	// ShutdownImmediate cancels in-flight tasks and discards queued ones.
	ShutdownImmediate
)

func (m ShutdownMode) String() string {
	if m == ShutdownImmediate {
		return "immediate"
	}
	return "graceful"
}

const (
	DefaultCoreWorkers   = 2
	DefaultMaxWorkers    = 4
	DefaultQueueCapacity = 500
	DefaultIdleTimeout   = 60 * time.Second
	DefaultNamePrefix    = "async-worker-thread"
)

// Config is the immutable shape of a BoundedPool.
type Config struct {
	// CoreWorkers are started with the pool and never reclaimed.
	CoreWorkers int
	// MaxWorkers bounds the live worker count under load.
	MaxWorkers int
	// QueueCapacity bounds the tasks waiting for a worker. Zero means a
	// task is only accepted when a worker can take it right away.
	QueueCapacity  int
	OverflowPolicy OverflowPolicy
	// IdleTimeout is how long a worker above CoreWorkers may stay idle.
	IdleTimeout time.Duration
	NamePrefix  string
}

func DefaultConfig() Config {
	return Config{
		CoreWorkers:    DefaultCoreWorkers,
		MaxWorkers:     DefaultMaxWorkers,
		QueueCapacity:  DefaultQueueCapacity,
		OverflowPolicy: PolicyCallerRuns,
		IdleTimeout:    DefaultIdleTimeout,
		NamePrefix:     DefaultNamePrefix,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxWorkers < 1:
		return fmt.Errorf("%w: max workers must be at least 1, got %d", ErrInvalidConfig, c.MaxWorkers)
	case c.CoreWorkers < 0:
		return fmt.Errorf("%w: core workers must not be negative, got %d", ErrInvalidConfig, c.CoreWorkers)
	case c.CoreWorkers > c.MaxWorkers:
		return fmt.Errorf("%w: core workers (%d) exceed max workers (%d)", ErrInvalidConfig, c.CoreWorkers, c.MaxWorkers)
	case c.QueueCapacity < 0:
		return fmt.Errorf("%w: %v", ErrInvalidConfig, ErrInvalidTaskQueueCap)
	case c.IdleTimeout <= 0:
		return fmt.Errorf("%w: idle timeout must be positive, got %v", ErrInvalidConfig, c.IdleTimeout)
	case c.NamePrefix == "":
		return fmt.Errorf("%w: name prefix must not be empty", ErrInvalidConfig)
	}
	switch c.OverflowPolicy {
	case PolicyReject, PolicyCallerRuns, PolicyBlock:
	default:
		return fmt.Errorf("%w: unknown overflow policy %d", ErrInvalidConfig, c.OverflowPolicy)
	}
	return nil
}

// fileConfig mirrors Config on disk. Pointers tell "unset" from zero.
type fileConfig struct {
	CoreWorkers    *int   `yaml:"core_workers" json:"core_workers"`
	MaxWorkers     *int   `yaml:"max_workers" json:"max_workers"`
	QueueCapacity  *int   `yaml:"queue_capacity" json:"queue_capacity"`
	OverflowPolicy string `yaml:"overflow_policy" json:"overflow_policy"`
	IdleTimeout    string `yaml:"idle_timeout" json:"idle_timeout"`
	NamePrefix     string `yaml:"name_prefix" json:"name_prefix"`
}

// LoadConfig reads a pool config from a .yaml, .yml or .json file.
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	return fc.toConfig()
}

func (fc fileConfig) toConfig() (Config, error) {
	c := DefaultConfig()
	if fc.CoreWorkers != nil {
		c.CoreWorkers = *fc.CoreWorkers
	}
	if fc.MaxWorkers != nil {
		c.MaxWorkers = *fc.MaxWorkers
	}
	if fc.QueueCapacity != nil {
		c.QueueCapacity = *fc.QueueCapacity
	}
	if fc.OverflowPolicy != "" {
		p, err := ParseOverflowPolicy(fc.OverflowPolicy)
		if err != nil {
			return Config{}, err
		}
		c.OverflowPolicy = p
	}
	if fc.IdleTimeout != "" {
		d, err := time.ParseDuration(fc.IdleTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("%w: idle timeout: %v", ErrInvalidConfig, err)
		}
		c.IdleTimeout = d
	}
	if fc.NamePrefix != "" {
		c.NamePrefix = fc.NamePrefix
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
