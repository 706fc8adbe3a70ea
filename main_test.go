package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stramate/internal/config"
)

func TestValidZones(t *testing.T) {
	tests := []struct {
		name    string
		zones   []float64
		wantErr bool
	}{
		{name: "defaults", zones: []float64{0.6, 0.7, 0.8, 0.9}},
		{name: "too few", zones: []float64{0.6, 0.7, 0.8}, wantErr: true},
		{name: "not increasing", zones: []float64{0.6, 0.6, 0.8, 0.9}, wantErr: true},
		{name: "above reserve", zones: []float64{0.6, 0.7, 0.8, 1.2}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validZones(tt.zones)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAthleteSetAndShow(t *testing.T) {
	t.Setenv(config.DirEnv, t.TempDir())
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "1")
	t.Setenv("STRAMATE_STRAVA_CLIENT_SECRET", "secret")
	athleteID = 99
	t.Cleanup(func() { athleteID = 0 })

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := athleteCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	out := run("set", "--sex", "f", "--birthday", "1990-01-01", "--resting-hr", "50", "--zones", "0.5,0.6,0.7,0.8", "--no-recompute")
	assert.Contains(t, out, "Profile saved.")

	out = run("show")
	assert.Contains(t, out, "Athlete 99")
	assert.Contains(t, out, "Sex:         F")
	assert.Contains(t, out, "Birthday:    1990-01-01")
	assert.Contains(t, out, "Heart rate:  50 to")
}

func TestAthleteSetRejectsBadSex(t *testing.T) {
	t.Setenv(config.DirEnv, t.TempDir())
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "1")
	t.Setenv("STRAMATE_STRAVA_CLIENT_SECRET", "secret")
	athleteID = 99
	t.Cleanup(func() { athleteID = 0 })

	cmd := athleteCmd()
	cmd.SetArgs([]string{"set", "--sex", "X"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sex must be M, F or O")
}
