// ABOUTME: Derived lead score and estimated deal value for synced contacts
// ABOUTME: Both read signals from the contact and its aliased custom fields
package sync

import (
	"strings"
	"time"

	"github.com/harperreed/leadsync/models"
	"github.com/shopspring/decimal"
)

const (
	baseLeadScore = 50
	minLeadScore  = 0
	maxLeadScore  = 100

	emailPoints          = 10
	phonePoints          = 10
	recentActivityPoints = 15
	activityPoints       = 5
	highValueTagPoints   = 20
	solarInterestPoints  = 15
	budgetPoints         = 10

	recentActivityWindow = 7 * 24 * time.Hour
	activityWindow       = 30 * 24 * time.Hour
)

var (
	budgetScoreThreshold = decimal.NewFromInt(25000)

	baselineValue      = decimal.NewFromInt(15000)
	valuePerSquareFoot = decimal.NewFromInt(12)
	electricBillFactor = decimal.NewFromInt(150)
)

var highValueTags = map[string]struct{}{
	"hot lead":        {},
	"hot-lead":        {},
	"qualified":       {},
	"high-value":      {},
	"vip":             {},
	"appointment set": {},
	"ready to buy":    {},
}

func hasHighValueTag(tags []string) bool {
	for _, t := range tags {
		if _, ok := highValueTags[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

// scoreLead rates c from 0 to 100.
func scoreLead(c *models.Contact, now time.Time) int {
	score := baseLeadScore

	if c.Email != "" {
		score += emailPoints
	}
	if c.Phone != "" {
		score += phonePoints
	}

	if c.LastActivityAt != nil {
		age := now.Sub(*c.LastActivityAt)
		switch {
		case age <= recentActivityWindow:
			score += recentActivityPoints
		case age <= activityWindow:
			score += activityPoints
		}
	}

	if hasHighValueTag(c.Tags) {
		score += highValueTagPoints
	}

	if strings.EqualFold(lookupString(c.CustomFields, FieldSolarInterest), "high") {
		score += solarInterestPoints
	}

	if budget, ok := lookupNumber(c.CustomFields, FieldBudget); ok && budget.GreaterThan(budgetScoreThreshold) {
		score += budgetPoints
	}

	return clampScore(score)
}

func clampScore(score int) int {
	return max(minLeadScore, min(maxLeadScore, score))
}

// estimateValue returns an explicit positive budget when there is one,
// otherwise the largest of the baseline and the home-size and electric-bill
// estimates.
func estimateValue(custom map[string]any) decimal.Decimal {
	if budget, ok := lookupNumber(custom, FieldBudget); ok && budget.IsPositive() {
		return budget
	}

	value := baselineValue
	if size, ok := lookupNumber(custom, FieldHomeSize); ok {
		value = decimal.Max(value, size.Mul(valuePerSquareFoot))
	}
	if bill, ok := lookupNumber(custom, FieldElectricBill); ok {
		value = decimal.Max(value, bill.Mul(electricBillFactor))
	}
	return value
}
