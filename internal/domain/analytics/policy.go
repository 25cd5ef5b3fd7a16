package analytics

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// CategoryRule maps skills whose name contains Substring to Category.
type CategoryRule struct {
	Substring string `json:"substring" yaml:"substring"`
	Category  string `json:"category" yaml:"category"`
}

// Benchmarks are external reference values echoed into the institutional
// metrics. They are placeholders until a benchmark feed exists.
type Benchmarks struct {
	RegionalAverage float64 `json:"regional_average" yaml:"regional_average"`
	NationalAverage float64 `json:"national_average" yaml:"national_average"`
}

// Policy holds the business parameters of the engine that are not part of
// the institutional goals. DefaultPolicy reproduces the historical constants.
type Policy struct {
	// ExpectedGrowth is the class average growth (in points) over the exam
	// history that counts as zero value added.
	ExpectedGrowth float64 `json:"expected_growth" yaml:"expected_growth"`

	// BaselineFallback is subtracted from the current score to estimate a
	// baseline when a class has no exam history.
	BaselineFallback float64 `json:"baseline_fallback" yaml:"baseline_fallback"`

	// CategoryRules are checked in order; the first match wins.
	CategoryRules []CategoryRule `json:"category_rules" yaml:"category_rules"`

	// DefaultCategory is used when no rule matches.
	DefaultCategory string `json:"default_category" yaml:"default_category"`

	// CriticalScoreFloor: class averages below it raise critical alerts.
	CriticalScoreFloor float64 `json:"critical_score_floor" yaml:"critical_score_floor"`

	// CriticalScoreShortfall: a class this many points (or more) under the
	// goal also raises a critical performance alert.
	CriticalScoreShortfall float64 `json:"critical_score_shortfall" yaml:"critical_score_shortfall"`

	// CriticalAttendanceFloor: attendance below it raises critical alerts.
	CriticalAttendanceFloor float64 `json:"critical_attendance_floor" yaml:"critical_attendance_floor"`

	Benchmarks Benchmarks `json:"benchmarks" yaml:"benchmarks"`

	// Now stamps alerts and reports. NewID generates alert IDs.
	Now   func() time.Time `json:"-" yaml:"-"`
	NewID func() string    `json:"-" yaml:"-"`
}

// DefaultCategoryRules returns the built-in skill classification table.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Substring: "Math", Category: "Matemática"},
		{Substring: "reading", Category: "Linguagens"},
		{Substring: "science", Category: "Ciências"},
	}
}

// DefaultPolicy returns the policy with the engine's historical constants.
func DefaultPolicy() Policy {
	return Policy{
		ExpectedGrowth:          5,
		BaselineFallback:        5,
		CategoryRules:           DefaultCategoryRules(),
		DefaultCategory:         "Outras",
		CriticalScoreFloor:      50,
		CriticalScoreShortfall:  15,
		CriticalAttendanceFloor: 70,
		Now:                     time.Now,
		NewID:                   uuid.NewString,
	}
}

// withDefaults fills zero-valued hooks and tables so a partially built
// Policy is always usable.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.CategoryRules == nil {
		p.CategoryRules = d.CategoryRules
	}
	if p.DefaultCategory == "" {
		p.DefaultCategory = d.DefaultCategory
	}
	if p.Now == nil {
		p.Now = d.Now
	}
	if p.NewID == nil {
		p.NewID = d.NewID
	}
	return p
}

// Classify returns the category of a skill by substring match.
// Matching is case-sensitive.
func (p Policy) Classify(skill string) string {
	for _, r := range p.CategoryRules {
		if r.Substring != "" && strings.Contains(skill, r.Substring) {
			return r.Category
		}
	}
	if p.DefaultCategory == "" {
		return "Outras"
	}
	return p.DefaultCategory
}
