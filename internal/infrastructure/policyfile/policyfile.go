// Package policyfile reads analytics goals and policy overrides from YAML.
//
// Example:
//
//	goals:
//	  average_score: 72
//	  passing_rate: 85
//	  attendance_rate: 92
//	expected_growth: 4
//	baseline_fallback: 5
//	category_rules:
//	  - substring: Math
//	    category: Matemática
//	default_category: Outras
//	benchmarks:
//	  regional_average: 68.5
//	  national_average: 66
//
// Every key is optional; omitted keys keep their defaults.
package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/domain/shared"
)

// File mirrors the YAML document. Pointer fields distinguish "absent"
// from an explicit zero.
type File struct {
	Goals                   *goalsFile               `yaml:"goals"`
	ExpectedGrowth          *float64                 `yaml:"expected_growth"`
	BaselineFallback        *float64                 `yaml:"baseline_fallback"`
	CategoryRules           []analytics.CategoryRule `yaml:"category_rules"`
	DefaultCategory         string                   `yaml:"default_category"`
	CriticalScoreFloor      *float64                 `yaml:"critical_score_floor"`
	CriticalScoreShortfall  *float64                 `yaml:"critical_score_shortfall"`
	CriticalAttendanceFloor *float64                 `yaml:"critical_attendance_floor"`
	Benchmarks              *analytics.Benchmarks    `yaml:"benchmarks"`
}

type goalsFile struct {
	AverageScore   *float64 `yaml:"average_score"`
	PassingRate    *float64 `yaml:"passing_rate"`
	AttendanceRate *float64 `yaml:"attendance_rate"`
}

// Settings is the resolved result of applying a File to the defaults.
type Settings struct {
	Goals  assessment.InstitutionalGoals
	Policy analytics.Policy
}

// Defaults returns the built-in goals and policy.
func Defaults() Settings {
	return Settings{Goals: assessment.DefaultGoals(), Policy: analytics.DefaultPolicy()}
}

// Decode parses YAML from r and applies it on top of base. Unknown keys
// are rejected so typos don't silently fall back to defaults.
func Decode(r io.Reader, base Settings) (Settings, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, shared.WrapError("policy", "Decode", shared.ErrInvalidFormat, "invalid policy file", err)
	}

	out := f.apply(base)
	if err := out.Goals.Validate(); err != nil {
		return Settings{}, err
	}
	if out.Policy.ExpectedGrowth <= 0 {
		return Settings{}, shared.NewDomainError("policy", "Decode", shared.ErrValueOutOfRange, "expected_growth must be positive")
	}
	for i, rule := range out.Policy.CategoryRules {
		if rule.Substring == "" || rule.Category == "" {
			return Settings{}, shared.NewDomainError("policy", "Decode", shared.ErrEmptyValue,
				fmt.Sprintf("category_rules[%d] needs both substring and category", i))
		}
	}
	return out, nil
}

// Load reads a policy file from path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read policy file: %w", err)
	}
	return Decode(bytes.NewReader(data), Defaults())
}

func (f File) apply(s Settings) Settings {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	if f.Goals != nil {
		set(&s.Goals.AverageScore, f.Goals.AverageScore)
		set(&s.Goals.PassingRate, f.Goals.PassingRate)
		set(&s.Goals.AttendanceRate, f.Goals.AttendanceRate)
	}
	set(&s.Policy.ExpectedGrowth, f.ExpectedGrowth)
	set(&s.Policy.BaselineFallback, f.BaselineFallback)
	set(&s.Policy.CriticalScoreFloor, f.CriticalScoreFloor)
	set(&s.Policy.CriticalScoreShortfall, f.CriticalScoreShortfall)
	set(&s.Policy.CriticalAttendanceFloor, f.CriticalAttendanceFloor)
	if f.CategoryRules != nil {
		s.Policy.CategoryRules = f.CategoryRules
	}
	if f.DefaultCategory != "" {
		s.Policy.DefaultCategory = f.DefaultCategory
	}
	if f.Benchmarks != nil {
		s.Policy.Benchmarks = *f.Benchmarks
	}
	return s
}

// Encode writes s as a policy file.
func Encode(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := struct {
		Goals                   assessment.InstitutionalGoals `yaml:"goals"`
		ExpectedGrowth          float64                       `yaml:"expected_growth"`
		BaselineFallback        float64                       `yaml:"baseline_fallback"`
		CategoryRules           []analytics.CategoryRule      `yaml:"category_rules"`
		DefaultCategory         string                        `yaml:"default_category"`
		CriticalScoreFloor      float64                       `yaml:"critical_score_floor"`
		CriticalScoreShortfall  float64                       `yaml:"critical_score_shortfall"`
		CriticalAttendanceFloor float64                       `yaml:"critical_attendance_floor"`
		Benchmarks              analytics.Benchmarks          `yaml:"benchmarks"`
	}{
		Goals:                   s.Goals,
		ExpectedGrowth:          s.Policy.ExpectedGrowth,
		BaselineFallback:        s.Policy.BaselineFallback,
		CategoryRules:           s.Policy.CategoryRules,
		DefaultCategory:         s.Policy.DefaultCategory,
		CriticalScoreFloor:      s.Policy.CriticalScoreFloor,
		CriticalScoreShortfall:  s.Policy.CriticalScoreShortfall,
		CriticalAttendanceFloor: s.Policy.CriticalAttendanceFloor,
		Benchmarks:              s.Policy.Benchmarks,
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
