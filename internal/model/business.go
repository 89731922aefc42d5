// Package model defines the core entities shared across the outreach pipeline.
package model

import "time"

// EnrichmentStatus represents the contact-discovery state of a business.
type EnrichmentStatus string

const (
	EnrichmentNotEnriched EnrichmentStatus = "not_enriched"
	EnrichmentEnriched    EnrichmentStatus = "enriched"
	EnrichmentFailed      EnrichmentStatus = "failed"
)

// Business represents a discovered local business (lead). The row itself is
// created by the upstream places-discovery process; this core only reads it
// and writes the enrichment field group.
type Business struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Website  string   `json:"website"`
	Address  string   `json:"address"`
	Postcode string   `json:"postcode"`
	Types    []string `json:"types,omitempty"`

	PrimaryEmail    string            `json:"primary_email,omitempty"`
	PrimaryPhone    string            `json:"primary_phone,omitempty"`
	AllEmails       []string          `json:"all_emails,omitempty"`
	AllPhones       []string          `json:"all_phones,omitempty"`
	ContactPeople   []ContactPerson   `json:"contact_people,omitempty"`
	SocialLinks     map[string]string `json:"social_links,omitempty"`
	BusinessDetails string            `json:"business_details,omitempty"`
	SiteData        string            `json:"site_data,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	EnrichedAt       *time.Time       `json:"enriched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DialPhone returns the number outreach should dial: the enriched primary
// phone when one was found, the originally discovered number otherwise.
func (b Business) DialPhone() string {
	if b.PrimaryPhone != "" {
		return b.PrimaryPhone
	}
	return b.Phone
}

// ContactPerson is a named contact discovered for a business.
type ContactPerson struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// CombinedContacts is the merged contact record produced per business by the
// contact merger. It is flattened onto the Business row, never persisted on
// its own.
type CombinedContacts struct {
	PrimaryEmail  string          `json:"primary_email,omitempty"`
	PrimaryPhone  string          `json:"primary_phone,omitempty"`
	AllEmails     []string        `json:"all_emails"`
	AllPhones     []string        `json:"all_phones"`
	ContactPeople []ContactPerson `json:"contact_people"`
}

// Empty reports whether the merge yielded no contact data at all.
func (c CombinedContacts) Empty() bool {
	return c.PrimaryEmail == "" && c.PrimaryPhone == "" &&
		len(c.AllEmails) == 0 && len(c.AllPhones) == 0 && len(c.ContactPeople) == 0
}

// ContactUpdate is the typed update command for the enrichment field group.
// Writes go through this struct so a status change can never ride along with
// a partial contact write.
type ContactUpdate struct {
	BusinessID      string
	Contacts        CombinedContacts
	SocialLinks     map[string]string
	BusinessDetails string
	SiteData        string
	Status          EnrichmentStatus
	EnrichedAt      time.Time
}

// StatusUpdate is the typed update command for the status field group alone.
// Marking a business failed goes through this struct so the write can never
// blank contact fields an earlier run discovered.
type StatusUpdate struct {
	BusinessID string
	Status     EnrichmentStatus
	EnrichedAt time.Time
}
