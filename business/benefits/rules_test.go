package benefits

import (
	"testing"
	"time"

	"loyaltyStamp/domain"
)

var ruleTestNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// visitsOnDays builds one accepted visit per offset, each offset in days back
// from ruleTestNow.
func visitsOnDays(dayOffsets ...int) []domain.VisitRecord {
	visits := make([]domain.VisitRecord, 0, len(dayOffsets))
	for i, off := range dayOffsets {
		visits = append(visits, domain.VisitRecord{
			ID:         string(rune('a' + i)),
			CustomerID: 1,
			SyncState:  domain.SyncSent,
			ScannedAt:  ruleTestNow.AddDate(0, 0, -off),
		})
	}
	return visits
}

func firedRules(visits []domain.VisitRecord, now time.Time) map[string]*BenefitDraft {
	fired := make(map[string]*BenefitDraft)
	for _, rule := range DefaultRules() {
		if draft := rule.Evaluate(visits, now); draft != nil {
			fired[rule.Name()] = draft
		}
	}
	return fired
}

func TestThresholdRuleExactMultiples(t *testing.T) {
	rule := ThresholdRule{RuleName: "threshold_5", Every: 5, Kind: domain.BenefitPercentDiscount, Value: 10, ValidityDays: 30}

	cases := []struct {
		count int
		fires bool
	}{
		{0, false},
		{4, false},
		{5, true},
		{7, false},
		{10, true},
	}

	for _, tc := range cases {
		visits := make([]domain.VisitRecord, tc.count)
		got := rule.Evaluate(visits, ruleTestNow) != nil
		if got != tc.fires {
			t.Errorf("count %d: fired = %v, want %v", tc.count, got, tc.fires)
		}
	}
}

func TestDefaultRulesTenSpreadVisits(t *testing.T) {
	// Ten visits spread out over months: both the 5 and 10 milestones are
	// exact multiples, no temporal rule has enough recent activity.
	visits := visitsOnDays(1, 10, 20, 30, 40, 50, 60, 70, 80, 90)

	fired := firedRules(visits, ruleTestNow)

	if _, ok := fired["threshold_5"]; !ok {
		t.Error("threshold_5 did not fire at 10 visits")
	}
	if _, ok := fired["threshold_10"]; !ok {
		t.Error("threshold_10 did not fire at 10 visits")
	}
	if _, ok := fired["frequent_7d"]; ok {
		t.Error("frequent_7d fired with one recent visit")
	}
	if _, ok := fired["streak_5"]; ok {
		t.Error("streak_5 fired without consecutive days")
	}
	if draft := fired["threshold_10"]; draft.Kind != domain.BenefitFreeItem || draft.ProductID == "" {
		t.Errorf("threshold_10 draft = %+v, want free item with product", draft)
	}
}

func TestDefaultRulesSevenVisitsNoThreshold(t *testing.T) {
	visits := visitsOnDays(10, 20, 30, 40, 50, 60, 70)

	fired := firedRules(visits, ruleTestNow)
	if len(fired) != 0 {
		t.Errorf("fired = %v, want none at 7 old visits", fired)
	}
}

func TestFrequencyRuleTrailingWindow(t *testing.T) {
	rule := FrequencyRule{RuleName: "frequent_7d", MinVisits: 3, Window: 7 * 24 * time.Hour, Kind: domain.BenefitPercentDiscount, Value: 15, ValidityDays: 14}

	// Three inside the window, one just outside.
	inside := visitsOnDays(1, 3, 6, 8)
	if rule.Evaluate(inside, ruleTestNow) == nil {
		t.Error("did not fire with 3 visits inside the window")
	}

	// Only two inside.
	sparse := visitsOnDays(1, 6, 8, 9)
	if rule.Evaluate(sparse, ruleTestNow) != nil {
		t.Error("fired with 2 visits inside the window")
	}
}

func TestStreakRuleConsecutiveDays(t *testing.T) {
	rule := StreakRule{RuleName: "streak_5", Length: 5, Kind: domain.BenefitFreeItem, ProductID: "house-pastry", ValidityDays: 30}

	// Five consecutive calendar days.
	if rule.Evaluate(visitsOnDays(0, 1, 2, 3, 4), ruleTestNow) == nil {
		t.Error("did not fire on a 5 day streak")
	}

	// Gap two days back cuts the streak at 2.
	if rule.Evaluate(visitsOnDays(0, 1, 3, 4, 5), ruleTestNow) != nil {
		t.Error("fired across a calendar day gap")
	}

	// Two visits on the same day count once.
	sameDay := append(visitsOnDays(0, 1, 2, 3), domain.VisitRecord{
		ID:        "z",
		SyncState: domain.SyncSent,
		ScannedAt: ruleTestNow.Add(-2 * time.Hour),
	})
	if got := calendarStreak(sameDay); got != 4 {
		t.Errorf("streak = %d, want 4 with a duplicate day", got)
	}
}

func TestCalendarStreakAcrossMidnight(t *testing.T) {
	// 23:50 one day and 00:10 the next are under an hour apart but are two
	// calendar days.
	visits := []domain.VisitRecord{
		{ID: "a", ScannedAt: time.Date(2026, 3, 13, 23, 50, 0, 0, time.UTC)},
		{ID: "b", ScannedAt: time.Date(2026, 3, 14, 0, 10, 0, 0, time.UTC)},
	}

	if got := calendarStreak(visits); got != 2 {
		t.Errorf("streak = %d, want 2", got)
	}
}

func TestThresholdDerived(t *testing.T) {
	if !ThresholdDerived("threshold_10") {
		t.Error("threshold_10 not recognized as threshold derived")
	}
	if ThresholdDerived("frequent_7d") {
		t.Error("frequent_7d wrongly treated as threshold derived")
	}
	if ThresholdDerived("streak_5") {
		t.Error("streak_5 wrongly treated as threshold derived")
	}
}
