package benefits

import (
	"sort"
	"strings"
	"time"

	"loyaltyStamp/domain"
)

// BenefitDraft is what a fired rule produces before the service materializes
// it into a persisted Benefit.
type BenefitDraft struct {
	RuleName     string
	Kind         domain.BenefitKind
	Value        float64
	ProductID    string
	ValidityDays int
}

// Rule derives zero or one benefit from a customer's accepted visit set.
// Rules are stateless: nothing remembers that a rule fired before, so the
// same milestone can fire again if evaluation repeats without the visits
// being consumed.
type Rule interface {
	Name() string
	Evaluate(visits []domain.VisitRecord, now time.Time) *BenefitDraft
}

// ---- count-threshold rules ----

// ThresholdRule fires when the total accepted visit count is an exact
// positive multiple of Every. Several thresholds firing at once is
// intentional: each is a distinct milestone.
type ThresholdRule struct {
	RuleName     string
	Every        int
	Kind         domain.BenefitKind
	Value        float64
	ProductID    string
	ValidityDays int
}

func (r ThresholdRule) Name() string { return r.RuleName }

func (r ThresholdRule) Evaluate(visits []domain.VisitRecord, _ time.Time) *BenefitDraft {
	total := len(visits)
	if r.Every <= 0 || total == 0 || total%r.Every != 0 {
		return nil
	}

	return &BenefitDraft{
		RuleName:     r.RuleName,
		Kind:         r.Kind,
		Value:        r.Value,
		ProductID:    r.ProductID,
		ValidityDays: r.ValidityDays,
	}
}

// ---- temporal rules ----

// FrequencyRule fires when enough visits fall inside the trailing window
// measured back from now.
type FrequencyRule struct {
	RuleName     string
	MinVisits    int
	Window       time.Duration
	Kind         domain.BenefitKind
	Value        float64
	ValidityDays int
}

func (r FrequencyRule) Name() string { return r.RuleName }

func (r FrequencyRule) Evaluate(visits []domain.VisitRecord, now time.Time) *BenefitDraft {
	cutoff := now.Add(-r.Window)

	count := 0
	for _, v := range visits {
		if !v.ScannedAt.Before(cutoff) && !v.ScannedAt.After(now) {
			count++
		}
	}

	if count < r.MinVisits {
		return nil
	}

	return &BenefitDraft{
		RuleName:     r.RuleName,
		Kind:         r.Kind,
		Value:        r.Value,
		ValidityDays: r.ValidityDays,
	}
}

// StreakRule fires when the most recent visits cover Length consecutive
// calendar days. The count stops at the first gap.
type StreakRule struct {
	RuleName     string
	Length       int
	Kind         domain.BenefitKind
	Value        float64
	ProductID    string
	ValidityDays int
}

func (r StreakRule) Name() string { return r.RuleName }

func (r StreakRule) Evaluate(visits []domain.VisitRecord, _ time.Time) *BenefitDraft {
	if calendarStreak(visits) < r.Length {
		return nil
	}

	return &BenefitDraft{
		RuleName:     r.RuleName,
		Kind:         r.Kind,
		Value:        r.Value,
		ProductID:    r.ProductID,
		ValidityDays: r.ValidityDays,
	}
}

// calendarStreak counts consecutive calendar days (year + day-of-year, not
// 24h windows) present in the visit set, starting from the most recent day.
func calendarStreak(visits []domain.VisitRecord) int {
	if len(visits) == 0 {
		return 0
	}

	sorted := make([]domain.VisitRecord, len(visits))
	copy(sorted, visits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ScannedAt.After(sorted[j].ScannedAt)
	})

	streak := 1
	prev := sorted[0].ScannedAt

	for _, v := range sorted[1:] {
		if sameCalendarDay(v.ScannedAt, prev) {
			continue
		}
		if sameCalendarDay(v.ScannedAt, prev.AddDate(0, 0, -1)) {
			streak++
			prev = v.ScannedAt
			continue
		}
		break
	}

	return streak
}

func sameCalendarDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// ---- default rule set ----

const (
	thresholdRulePrefix = "threshold_"
	ruleFrequent7d      = "frequent_7d"
	ruleStreak5         = "streak_5"
)

// DefaultRules is the configured rule set: milestone thresholds plus the two
// temporal rules.
func DefaultRules() []Rule {
	return []Rule{
		ThresholdRule{RuleName: thresholdRulePrefix + "5", Every: 5, Kind: domain.BenefitPercentDiscount, Value: 10, ValidityDays: 30},
		ThresholdRule{RuleName: thresholdRulePrefix + "10", Every: 10, Kind: domain.BenefitFreeItem, Value: 0, ProductID: "house-coffee", ValidityDays: 30},
		ThresholdRule{RuleName: thresholdRulePrefix + "20", Every: 20, Kind: domain.BenefitTwoForOne, Value: 0, ValidityDays: 30},
		ThresholdRule{RuleName: thresholdRulePrefix + "50", Every: 50, Kind: domain.BenefitPercentDiscount, Value: 25, ValidityDays: 45},
		FrequencyRule{RuleName: ruleFrequent7d, MinVisits: 3, Window: 7 * 24 * time.Hour, Kind: domain.BenefitPercentDiscount, Value: 15, ValidityDays: 14},
		StreakRule{RuleName: ruleStreak5, Length: 5, Kind: domain.BenefitFreeItem, Value: 0, ProductID: "house-pastry", ValidityDays: 30},
	}
}

// ThresholdDerived reports whether a benefit came from a count-threshold
// rule. Confirming such a benefit consumes the whole stamp count.
func ThresholdDerived(ruleName string) bool {
	return strings.HasPrefix(ruleName, thresholdRulePrefix)
}
