package gap

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []error
	}{
		{"defaults", DefaultConfig(), nil},
		{"fractional window", Config{Message: "m", WindowDurationDays: NewDays(0.25)}, nil},
		{"missing message", Config{WindowDurationDays: NewDays(1)}, []error{ErrMessageRequired}},
		{"blank message", Config{Message: "  ", WindowDurationDays: NewDays(1)}, []error{ErrMessageRequired}},
		{"missing window", Config{Message: "m"}, []error{ErrInvalidWindow}},
		{"zero window", Config{Message: "m", WindowDurationDays: NewDays(0)}, []error{ErrInvalidWindow}},
		{"negative window", Config{Message: "m", WindowDurationDays: NewDays(-1)}, []error{ErrInvalidWindow}},
		{"non numeric window", Config{Message: "m", WindowDurationDays: ParseDays("two")}, []error{ErrInvalidWindow}},
		{"everything wrong", Config{}, []error{ErrMessageRequired, ErrInvalidWindow}},
		{"bracketed value path", Config{Message: "m", WindowDurationDays: NewDays(1), ValuePath: "$['readings'][0]['value']"}, nil},
		{"unterminated value path", Config{Message: "m", WindowDurationDays: NewDays(1), ValuePath: "$.readings[0"}, []error{ErrInvalidValuePath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Problems, len(tt.wantErr))
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	m, err := New(Config{Message: "x"})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestConfig_Window(t *testing.T) {
	assert.Equal(t, 48*time.Hour, DefaultConfig().Window())
	assert.Equal(t, 6*time.Hour, Config{WindowDurationDays: NewDays(0.25)}.Window())
}

func TestDays_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Days
	}{
		{`{"message":"m","window_duration_in_days":2}`, NewDays(2)},
		{`{"message":"m","window_duration_in_days":"1.5"}`, NewDays(1.5)},
		{`{"message":"m","window_duration_in_days":"soon"}`, Days{Set: true, Invalid: true}},
		{`{"message":"m","window_duration_in_days":true}`, Days{Set: true, Invalid: true}},
		{`{"message":"m","window_duration_in_days":null}`, Days{}},
		{`{"message":"m"}`, Days{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var cfg Config
			err := json.Unmarshal([]byte(tt.in), &cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.WindowDurationDays)
		})
	}
}

func TestDays_JSONRoundTripKeepsNumber(t *testing.T) {
	out, err := json.Marshal(Config{Message: "m", WindowDurationDays: NewDays(0.5), ValuePath: "a.b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"m","window_duration_in_days":0.5,"value_path":"a.b"}`, string(out))
}

func TestDays_UnmarshalYAML(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("message: hello\nwindow_duration_in_days: \"3\"\nvalue_path: $.temp\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "hello", cfg.Message)
	assert.Equal(t, NewDays(3), cfg.WindowDurationDays)
	assert.Equal(t, "$.temp", cfg.ValuePath)
	assert.NoError(t, Validate(cfg))

	var bad Config
	require.NoError(t, yaml.Unmarshal([]byte("message: hello\nwindow_duration_in_days: [1, 2]\n"), &bad))
	assert.ErrorIs(t, Validate(bad), ErrInvalidWindow)
}
