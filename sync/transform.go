// ABOUTME: Maps external CRM records onto local documents
// ABOUTME: Normalizes phones and emails, parses timestamps and derives address, score and value
package sync

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/models"
	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
)

// DefaultPhoneRegion is assumed for numbers without a country code.
const DefaultPhoneRegion = "US"

const defaultOpportunityStatus = "open"

var errMissingExternalID = errors.New("missing external id")

func malformed(err error) error {
	return fmt.Errorf("malformed record: %w", err)
}

// parseTimestamp accepts RFC 3339 (with or without fractional seconds) or
// Unix milliseconds. An empty value is nil.
func parseTimestamp(field string, raw gateway.Timestamp) (*time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return &t, nil
}

// normalizePhone formats parseable numbers as E.164 and keeps anything else
// as given.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// contactAddress prefers the record's own address fields, then aliased
// custom fields, then whatever a free-form "line, city, state zip" address
// yields.
func contactAddress(ext *gateway.Contact, custom map[string]any) models.Address {
	addr := models.Address{
		Line:       firstNonEmpty(ext.Address1, lookupString(custom, FieldAddress)),
		City:       firstNonEmpty(ext.City, lookupString(custom, FieldCity)),
		State:      firstNonEmpty(ext.State, lookupString(custom, FieldState)),
		PostalCode: firstNonEmpty(ext.PostalCode, lookupString(custom, FieldPostalCode)),
		Country:    firstNonEmpty(ext.Country, lookupString(custom, FieldCountry)),
	}

	parts := strings.Split(addr.Line, ",")
	if len(parts) < 3 {
		return addr
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	stateZip := strings.Fields(parts[2])
	if addr.City == "" {
		addr.City = parts[1]
	}
	if addr.State == "" && len(stateZip) > 0 {
		addr.State = stateZip[0]
	}
	if addr.PostalCode == "" && len(stateZip) > 1 {
		addr.PostalCode = stateZip[1]
	}
	if addr.Country == "" && len(parts) > 3 {
		addr.Country = parts[3]
	}
	addr.Line = parts[0]
	return addr
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, ""
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func transformContact(owner string, ext *gateway.Contact, now time.Time) (models.Contact, error) {
	if err := ext.DecodeErr(); err != nil {
		return models.Contact{}, malformed(err)
	}
	id := strings.TrimSpace(ext.ID)
	if id == "" {
		return models.Contact{}, errMissingExternalID
	}

	created, err := parseTimestamp("dateAdded", ext.DateAdded)
	if err != nil {
		return models.Contact{}, err
	}
	activity, err := parseTimestamp("lastActivity", ext.LastActivity)
	if err != nil {
		return models.Contact{}, err
	}

	custom := map[string]any(ext.Custom())

	first, last := strings.TrimSpace(ext.FirstName), strings.TrimSpace(ext.LastName)
	if first == "" && last == "" {
		first, last = splitName(ext.ContactName)
	}

	c := models.Contact{
		Key:               models.DocumentKey(owner, id),
		ExternalID:        id,
		OwnerUserID:       owner,
		FirstName:         first,
		LastName:          last,
		Email:             normalizeEmail(ext.Email),
		Phone:             normalizePhone(ext.Phone),
		Address:           contactAddress(ext, custom),
		Tags:              cleanTags(ext.Tags),
		CustomFields:      custom,
		ExternalCreatedAt: created,
		LastActivityAt:    activity,
		Source:            firstNonEmpty(ext.Source, lookupString(custom, FieldSource), DefaultSource),
		Status:            firstNonEmpty(lookupString(custom, FieldStatus), DefaultStatus),
		AssignedTo:        firstNonEmpty(ext.AssignedTo, lookupString(custom, FieldAssignedTo), DefaultAssignedTo),
		SyncedAt:          now,
	}
	c.LeadScore = scoreLead(&c, now)
	c.EstimatedValue = estimateValue(custom)
	return c, nil
}

func transformOpportunity(owner string, ext *gateway.Opportunity, now time.Time) (models.Opportunity, error) {
	if err := ext.DecodeErr(); err != nil {
		return models.Opportunity{}, malformed(err)
	}
	id := strings.TrimSpace(ext.ID)
	if id == "" {
		return models.Opportunity{}, errMissingExternalID
	}

	created, err := parseTimestamp("createdAt", ext.CreatedAt)
	if err != nil {
		return models.Opportunity{}, err
	}
	updated, err := parseTimestamp("updatedAt", ext.UpdatedAt)
	if err != nil {
		return models.Opportunity{}, err
	}

	value := decimal.Zero
	if raw := strings.TrimSpace(string(ext.MonetaryValue)); raw != "" {
		v, ok := parseAmount(raw)
		if !ok {
			return models.Opportunity{}, fmt.Errorf("invalid monetaryValue %q", raw)
		}
		value = v
	}

	return models.Opportunity{
		Key:               models.DocumentKey(owner, id),
		ExternalID:        id,
		OwnerUserID:       owner,
		Name:              strings.TrimSpace(ext.Name),
		ContactExternalID: ext.ContactRef(),
		PipelineID:        ext.PipelineID,
		StageID:           ext.PipelineStageID,
		Status:            firstNonEmpty(ext.Status, defaultOpportunityStatus),
		MonetaryValue:     value,
		AssignedTo:        strings.TrimSpace(ext.AssignedTo),
		ExternalCreatedAt: created,
		ExternalUpdatedAt: updated,
		SyncedAt:          now,
	}, nil
}

func transformPipeline(owner string, ext *gateway.Pipeline, now time.Time) (models.Pipeline, error) {
	id := strings.TrimSpace(ext.ID)
	if id == "" {
		return models.Pipeline{}, errMissingExternalID
	}

	stages := make([]models.Stage, 0, len(ext.Stages))
	for _, s := range ext.Stages {
		stages = append(stages, models.Stage{ID: s.ID, Name: s.Name, Position: s.Position})
	}

	return models.Pipeline{
		Key:         models.DocumentKey(owner, id),
		ExternalID:  id,
		OwnerUserID: owner,
		Name:        strings.TrimSpace(ext.Name),
		Stages:      stages,
		SyncedAt:    now,
	}, nil
}
