package policyfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

func TestDecode_PartialOverride(t *testing.T) {
	doc := `
goals:
  average_score: 72
expected_growth: 4
category_rules:
  - substring: Hist
    category: Humanas
benchmarks:
  regional_average: 68.5
`
	s, err := Decode(strings.NewReader(doc), Defaults())
	require.NoError(t, err)

	assert.Equal(t, 72.0, s.Goals.AverageScore)
	assert.Equal(t, 85.0, s.Goals.PassingRate, "unset goals keep defaults")
	assert.Equal(t, 4.0, s.Policy.ExpectedGrowth)
	assert.Equal(t, 5.0, s.Policy.BaselineFallback)
	assert.Equal(t, []analytics.CategoryRule{{Substring: "Hist", Category: "Humanas"}}, s.Policy.CategoryRules)
	assert.Equal(t, "Humanas", s.Policy.Classify("History"))
	assert.Equal(t, "Outras", s.Policy.Classify("Math"))
	assert.Equal(t, 68.5, s.Policy.Benchmarks.RegionalAverage)
	assert.NotNil(t, s.Policy.Now)
}

func TestDecode_ExplicitZeroGoal(t *testing.T) {
	s, err := Decode(strings.NewReader("goals:\n  attendance_rate: 0\n"), Defaults())
	require.NoError(t, err)
	assert.Zero(t, s.Goals.AttendanceRate)
}

func TestDecode_Empty(t *testing.T) {
	s, err := Decode(strings.NewReader(""), Defaults())
	require.NoError(t, err)
	assert.Equal(t, Defaults().Goals, s.Goals)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind error
	}{
		{"unknown key", "expected_grwth: 4\n", shared.ErrInvalidFormat},
		{"bad yaml", "goals: [\n", shared.ErrInvalidFormat},
		{"goal out of range", "goals:\n  passing_rate: 140\n", shared.ErrInvalidGoals},
		{"zero growth", "expected_growth: 0\n", shared.ErrValueOutOfRange},
		{"incomplete rule", "category_rules:\n  - substring: Math\n", shared.ErrEmptyValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), Defaults())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Defaults()))
	assert.Contains(t, buf.String(), "expected_growth: 5")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	want := Defaults()
	assert.Equal(t, want.Goals, s.Goals)
	assert.Equal(t, want.Policy.CategoryRules, s.Policy.CategoryRules)
	assert.Equal(t, want.Policy.CriticalScoreShortfall, s.Policy.CriticalScoreShortfall)
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 70.0, s.Goals.AverageScore)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
