package session

import "time"

// DefaultLanguage is substituted when a stored profile has no preferred language.
const DefaultLanguage = "English"

// Profile is the application-level user record keyed by account id.
type Profile struct {
	ID                string    `json:"uid"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	PhoneNumber       string    `json:"phoneNumber"`
	PreferredLanguage string    `json:"preferredLanguage"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ProfileDocument is the storage shape of a Profile. Nil fields are absent in storage.
type ProfileDocument struct {
	UID               *string
	FirstName         *string
	LastName          *string
	Email             *string
	PhoneNumber       *string
	PreferredLanguage *string
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
}

// Document converts the profile into its full storage document.
func (p Profile) Document() ProfileDocument {
	doc := ProfileDocument{
		UID:               strPtr(p.ID),
		FirstName:         strPtr(p.FirstName),
		LastName:          strPtr(p.LastName),
		Email:             strPtr(p.Email),
		PhoneNumber:       strPtr(p.PhoneNumber),
		PreferredLanguage: strPtr(p.PreferredLanguage),
	}
	if !p.CreatedAt.IsZero() {
		doc.CreatedAt = timePtr(p.CreatedAt)
	}
	if !p.UpdatedAt.IsZero() {
		doc.UpdatedAt = timePtr(p.UpdatedAt)
	}
	return doc
}

// Decode builds a Profile, substituting defaults for absent fields. Absent
// timestamps take the decode instant.
func (d ProfileDocument) Decode(now time.Time) Profile {
	return Profile{
		ID:                strOr(d.UID, ""),
		FirstName:         strOr(d.FirstName, ""),
		LastName:          strOr(d.LastName, ""),
		Email:             strOr(d.Email, ""),
		PhoneNumber:       strOr(d.PhoneNumber, ""),
		PreferredLanguage: strOr(d.PreferredLanguage, DefaultLanguage),
		CreatedAt:         timeOr(d.CreatedAt, now),
		UpdatedAt:         timeOr(d.UpdatedAt, now),
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func strOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
