package rangefetch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meigma/rangefetch/internal/batch"
	"github.com/meigma/rangefetch/internal/decode"
	"github.com/meigma/rangefetch/s3"
)

// Strategy selects the transport used to fetch byte ranges.
type Strategy uint8

// Transport strategies.
const (
	// StrategyS3 fetches ranges with authenticated GetObject requests.
	StrategyS3 Strategy = iota

	// StrategyHTTP fetches ranges with plain HTTP range requests.
	StrategyHTTP
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyS3:
		return "s3"
	case StrategyHTTP:
		return "http"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// ParseStrategy parses a strategy name. The empty string selects S3.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "s3":
		return StrategyS3, nil
	case "http", "https":
		return StrategyHTTP, nil
	default:
		return 0, fmt.Errorf("%w: unknown strategy %q", ErrConfig, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Defaults.
const (
	DefaultWorkers         = batch.DefaultWorkers
	DefaultMaxFragmentSize = decode.DefaultMaxSize
)

// Config configures an Extractor.
type Config struct {
	// Strategy selects the range transport.
	Strategy Strategy `yaml:"strategy"`

	// Workers is the number of concurrent fetch+decode operations.
	Workers int `yaml:"workers"`

	// Codec is the compression of every fragment.
	Codec Codec `yaml:"codec"`

	// MaxFragmentSize limits the decoded size of a single fragment.
	// Zero disables the limit.
	MaxFragmentSize uint64 `yaml:"max_fragment_size"`

	// FetchTimeout bounds a single fetch+decode. Zero disables it.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// URLTemplate builds download URLs from archive ids, e.g.
	// "https://host/{archive}.zip". Ignored when a resolver is supplied
	// with WithResolver.
	URLTemplate string `yaml:"url_template"`

	// S3 configures the object store strategy.
	S3 s3.Config `yaml:"s3"`

	// HTTP configures the HTTP strategy.
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the HTTP strategy.
type HTTPConfig struct {
	// UserAgent is sent with every range request when set.
	UserAgent string `yaml:"user_agent"`

	// Headers are added to every range request.
	Headers map[string]string `yaml:"headers"`
}

// DefaultConfig returns the default configuration: the S3 strategy against
// the public archive bucket, 20 workers, raw DEFLATE fragments.
func DefaultConfig() Config {
	return Config{
		Strategy:        StrategyS3,
		Workers:         DefaultWorkers,
		Codec:           CodecDeflate,
		MaxFragmentSize: DefaultMaxFragmentSize,
		S3:              s3.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyS3, StrategyHTTP:
	default:
		return fmt.Errorf("%w: unknown strategy %s", ErrConfig, c.Strategy)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrConfig, c.Workers)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch timeout must be non-negative", ErrConfig)
	}
	if c.URLTemplate != "" && !strings.Contains(c.URLTemplate, ArchivePlaceholder) {
		return fmt.Errorf("%w: url template %q has no %s placeholder", ErrConfig, c.URLTemplate, ArchivePlaceholder)
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse config %s: %v", ErrConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
