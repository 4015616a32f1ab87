package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{" 3 ", 3 * time.Second, false},
		{"750ms", 750 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"2h", 2 * time.Hour, false},
		{"-1", 0, true},
		{"-2s", 0, true},
		{"soon", 0, true},
		{"1d", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	var poll struct {
		Interval Duration `yaml:"interval"`
		MaxDelay Duration `yaml:"max_delay"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("interval: 1\nmax_delay: 15s\n"), &poll))
	assert.Equal(t, time.Second, poll.Interval.Std())
	assert.Equal(t, 15*time.Second, poll.MaxDelay.Std())

	out, err := yaml.Marshal(poll)
	require.NoError(t, err)
	assert.Equal(t, "interval: 1s\nmax_delay: 15s\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("interval: later\n"), &poll))
}

func TestDuration_JSON(t *testing.T) {
	for in, want := range map[string]time.Duration{
		`"3s"`: 3 * time.Second,
		`"2"`:  2 * time.Second,
		`1.5`:  1500 * time.Millisecond,
	} {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, want, d.Std(), in)
	}

	b, err := json.Marshal(Duration(2 * time.Minute))
	require.NoError(t, err)
	assert.JSONEq(t, `"2m0s"`, string(b))
}
