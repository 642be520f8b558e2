package gap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMessage    = "No data has been received!"
	DefaultWindowDays = 2.0

	secondsPerDay = 24 * 60 * 60
)

var (
	ErrMessageRequired  = errors.New("message is required")
	ErrInvalidWindow    = errors.New("window_duration_in_days must be provided as an integer or floating point number")
	ErrInvalidValuePath = errors.New("value_path is not a valid JSONPath expression")
)

// Config is the per-monitor rule configuration.
type Config struct {
	Message            string `json:"message" yaml:"message"`
	WindowDurationDays Days   `json:"window_duration_in_days" yaml:"window_duration_in_days"`
	ValuePath          string `json:"value_path,omitempty" yaml:"value_path,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Message:            DefaultMessage,
		WindowDurationDays: Days{Value: DefaultWindowDays, Set: true},
	}
}

// Window returns the gap threshold as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowDurationDays.Value * secondsPerDay * float64(time.Second))
}

// ValidationError carries every problem found in a Config.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid monitor configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// Validate checks a Config without side effects.
func Validate(cfg Config) error {
	var problems []error

	if strings.TrimSpace(cfg.Message) == "" {
		problems = append(problems, ErrMessageRequired)
	}

	w := cfg.WindowDurationDays
	if !w.Set || w.Invalid || w.Value <= 0 {
		problems = append(problems, ErrInvalidWindow)
	}

	if strings.TrimSpace(cfg.ValuePath) != "" {
		if _, err := parseValuePath(cfg.ValuePath); err != nil {
			problems = append(problems, err)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Days is a window length in days. Definitions coming from JSON, YAML or
// the environment may carry it as a number or as a numeric string, so the
// decoders record absence and malformed input instead of failing the whole
// document. Validate reports those cases.
type Days struct {
	Value   float64
	Set     bool
	Invalid bool
}

func NewDays(v float64) Days {
	return Days{Value: v, Set: true}
}

// ParseDays accepts "2", "0.5", " 1 " and similar.
func ParseDays(s string) Days {
	s = strings.TrimSpace(s)
	if s == "" {
		return Days{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Days{Set: true, Invalid: true}
	}
	return Days{Value: v, Set: true}
}

func (d Days) String() string {
	if !d.Set {
		return ""
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

func (d Days) MarshalJSON() ([]byte, error) {
	if !d.Set || d.Invalid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}

func (d *Days) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("window_duration_in_days: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		*d = Days{}
	case float64:
		*d = Days{Value: v, Set: true}
	case string:
		*d = ParseDays(v)
	default:
		*d = Days{Set: true, Invalid: true}
	}
	return nil
}

func (d Days) MarshalYAML() (interface{}, error) {
	if !d.Set || d.Invalid {
		return nil, nil
	}
	return d.Value, nil
}

func (d *Days) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		*d = Days{Set: true, Invalid: true}
		return nil
	}
	if node.Tag == "!!null" {
		*d = Days{}
		return nil
	}
	*d = ParseDays(node.Value)
	return nil
}
