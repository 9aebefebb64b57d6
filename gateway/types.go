// ABOUTME: Wire types for the external CRM API
// ABOUTME: Tolerant decoders for custom fields, timestamps and amounts
package gateway

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// CustomFields is the untyped custom-field bag attached to a contact. The API
// sends either an object keyed by field name or a list of entries.
type CustomFields map[string]any

type customFieldEntry struct {
	ID         string `json:"id"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	FieldKey   string `json:"fieldKey"`
	Value      any    `json:"value"`
	FieldValue any    `json:"field_value"`
}

func (e customFieldEntry) key() string {
	for _, k := range []string{e.Key, e.FieldKey, e.Name, e.ID} {
		if k != "" {
			return strings.TrimPrefix(k, "contact.")
		}
	}
	return ""
}

func (e customFieldEntry) value() any {
	if e.Value != nil {
		return e.Value
	}
	return e.FieldValue
}

func (c *CustomFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	if data[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*c = m
		return nil
	}

	var entries []customFieldEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("custom fields: %w", err)
	}
	out := make(CustomFields, len(entries))
	for _, e := range entries {
		if k := e.key(); k != "" {
			out[k] = e.value()
		}
	}
	*c = out
	return nil
}

// Timestamp keeps the raw timestamp text; the API mixes ISO strings and
// epoch milliseconds. Parsing happens during record transformation.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
	default:
		*t = Timestamp(data)
	}
	return nil
}

// Amount keeps a monetary value as decimal text, whether sent as a JSON
// number or a string.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	return (*Timestamp)(a).UnmarshalJSON(data)
}

type Contact struct {
	ID           string       `json:"id"`
	LocationID   string       `json:"locationId"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	ContactName  string       `json:"contactName"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Address1     string       `json:"address1"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	PostalCode   string       `json:"postalCode"`
	Country      string       `json:"country"`
	Source       string       `json:"source"`
	AssignedTo   string       `json:"assignedTo"`
	Type         string       `json:"type"`
	Tags         []string     `json:"tags"`
	CustomField  CustomFields `json:"customField"`
	CustomFields CustomFields `json:"customFields"`
	DateAdded    Timestamp    `json:"dateAdded"`
	DateUpdated  Timestamp    `json:"dateUpdated"`
	LastActivity Timestamp    `json:"lastActivity"`

	decodeErr error
}

// DecodeErr reports why the record could not be decoded. Only the id, if
// any, is set on such a record.
func (c *Contact) DecodeErr() error {
	return c.decodeErr
}

// Custom merges both custom field spellings the API uses.
func (c *Contact) Custom() CustomFields {
	if len(c.CustomFields) == 0 {
		return c.CustomField
	}
	if len(c.CustomField) == 0 {
		return c.CustomFields
	}
	merged := make(CustomFields, len(c.CustomField)+len(c.CustomFields))
	for k, v := range c.CustomField {
		merged[k] = v
	}
	for k, v := range c.CustomFields {
		merged[k] = v
	}
	return merged
}

type OpportunityContact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Opportunity struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	MonetaryValue   Amount              `json:"monetaryValue"`
	PipelineID      string              `json:"pipelineId"`
	PipelineStageID string              `json:"pipelineStageId"`
	Status          string              `json:"status"`
	Source          string              `json:"source"`
	AssignedTo      string              `json:"assignedTo"`
	ContactID       string              `json:"contactId"`
	Contact         *OpportunityContact `json:"contact"`
	CreatedAt       Timestamp           `json:"createdAt"`
	UpdatedAt       Timestamp           `json:"updatedAt"`

	decodeErr error
}

// DecodeErr reports why the record could not be decoded.
func (o *Opportunity) DecodeErr() error {
	return o.decodeErr
}

// ContactRef returns the linked contact id from either representation.
func (o *Opportunity) ContactRef() string {
	if o.ContactID != "" {
		return o.ContactID
	}
	if o.Contact != nil {
		return o.Contact.ID
	}
	return ""
}

type Stage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Pipeline struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

type pageMeta struct {
	Total        int    `json:"total"`
	NextPageURL  string `json:"nextPageUrl"`
	StartAfterID string `json:"startAfterId"`
	StartAfter   int64  `json:"startAfter"`
}

// Records are kept raw so one malformed entry does not fail the page.
type contactsResponse struct {
	Contacts []json.RawMessage `json:"contacts"`
	Meta     pageMeta          `json:"meta"`
}

type opportunitiesResponse struct {
	Opportunities []json.RawMessage `json:"opportunities"`
	Meta          pageMeta          `json:"meta"`
}

func decodeContacts(raw []json.RawMessage) []Contact {
	out := make([]Contact, len(raw))
	for i, data := range raw {
		if err := json.Unmarshal(data, &out[i]); err != nil {
			out[i] = Contact{ID: rawRecordID(data), decodeErr: err}
		}
	}
	return out
}

func decodeOpportunities(raw []json.RawMessage) []Opportunity {
	out := make([]Opportunity, len(raw))
	for i, data := range raw {
		if err := json.Unmarshal(data, &out[i]); err != nil {
			out[i] = Opportunity{ID: rawRecordID(data), decodeErr: err}
		}
	}
	return out
}

// rawRecordID pulls a string id out of a record that failed to decode.
func rawRecordID(data []byte) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(head.ID, &id); err != nil {
		return ""
	}
	return id
}

type pipelinesResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
}
