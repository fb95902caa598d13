// Package selector picks a bounded set of catalog items whose combined base
// value reaches a threshold at (near) minimum market cost.
package selector

import "fmt"

// Policy defaults.
const (
	DefaultMaxSlots               = 5
	DefaultSlack                  = 5000
	DefaultMinContributionPercent = 10
	DefaultCandidateLimit         = 100
	DefaultTopChoices             = 5
	DefaultMaxValueAxis           = 5_000_000
)

// Policy holds the tunables of a selection run.
type Policy struct {
	// MaxSlots is the number of slots a selection can fill.
	MaxSlots int `yaml:"maxSlots,omitempty" mapstructure:"maxSlots"`
	// Slack widens the value axis above the threshold.
	Slack int64 `yaml:"slack,omitempty" mapstructure:"slack"`
	// MinContributionPercent drops items worth less than this share of the
	// threshold. Zero keeps everything.
	MinContributionPercent int64 `yaml:"minContributionPercent,omitempty" mapstructure:"minContributionPercent"`
	// CandidateLimit keeps only the best value-to-cost candidates. Zero
	// disables the cap.
	CandidateLimit int `yaml:"candidateLimit,omitempty" mapstructure:"candidateLimit"`
	// TopChoices is how many of the cheapest solutions the final pick is
	// drawn from.
	TopChoices int `yaml:"topChoices,omitempty" mapstructure:"topChoices"`
	// MaxValueAxis bounds threshold+slack.
	MaxValueAxis int64 `yaml:"maxValueAxis,omitempty" mapstructure:"maxValueAxis"`
	// Shuffle randomizes candidate order before the search.
	Shuffle bool `yaml:"shuffle" mapstructure:"shuffle"`
}

// DefaultPolicy returns the policy the tool ships with.
func DefaultPolicy() Policy {
	return Policy{
		MaxSlots:               DefaultMaxSlots,
		Slack:                  DefaultSlack,
		MinContributionPercent: DefaultMinContributionPercent,
		CandidateLimit:         DefaultCandidateLimit,
		TopChoices:             DefaultTopChoices,
		MaxValueAxis:           DefaultMaxValueAxis,
		Shuffle:                true,
	}
}

// Normalize fills zero-valued limits with defaults. Slack, contribution and
// candidate limit keep an explicit zero.
func (p *Policy) Normalize() {
	if p.MaxSlots <= 0 {
		p.MaxSlots = DefaultMaxSlots
	}
	if p.TopChoices <= 0 {
		p.TopChoices = DefaultTopChoices
	}
	if p.MaxValueAxis <= 0 {
		p.MaxValueAxis = DefaultMaxValueAxis
	}
}

// Validate reports a policy that cannot be used.
func (p Policy) Validate() error {
	if p.Slack < 0 {
		return fmt.Errorf("%w: slack must be non-negative, got %d", ErrInvalidConfiguration, p.Slack)
	}
	if p.MinContributionPercent < 0 || p.MinContributionPercent > 100 {
		return fmt.Errorf("%w: minContributionPercent must be within 0-100, got %d", ErrInvalidConfiguration, p.MinContributionPercent)
	}
	if p.CandidateLimit < 0 {
		return fmt.Errorf("%w: candidateLimit must be non-negative, got %d", ErrInvalidConfiguration, p.CandidateLimit)
	}
	if p.MaxSlots <= 0 {
		return fmt.Errorf("%w: maxSlots must be positive, got %d", ErrInvalidConfiguration, p.MaxSlots)
	}
	if p.TopChoices <= 0 {
		return fmt.Errorf("%w: topChoices must be positive, got %d", ErrInvalidConfiguration, p.TopChoices)
	}
	if p.MaxValueAxis <= p.Slack {
		return fmt.Errorf("%w: maxValueAxis %d must exceed slack %d", ErrInvalidConfiguration, p.MaxValueAxis, p.Slack)
	}
	return nil
}

// CheckValueAxis rejects a threshold whose value axis, threshold plus slack,
// would exceed MaxValueAxis. The sum is never formed so large thresholds
// cannot wrap.
func (p Policy) CheckValueAxis(threshold, slack int64) error {
	if slack >= p.MaxValueAxis || threshold > p.MaxValueAxis-slack {
		return fmt.Errorf("%w: threshold %d plus slack %d exceeds the value limit %d",
			ErrInvalidConfiguration, threshold, slack, p.MaxValueAxis)
	}
	return nil
}
