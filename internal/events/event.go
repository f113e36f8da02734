// Package events holds the raw event shape returned by the event source,
// the fixed event vocabulary and the typed variants the aggregator consumes.
package events

import "time"

// Name is one of the known event names.
type Name string

const (
	PropertyView          Name = "property_view"
	PropertyImpression    Name = "property_impression"
	PropertyShare         Name = "property_share"
	PropertySave          Name = "property_save"
	PropertyUnsave        Name = "property_unsave"
	VirtualTourView       Name = "virtual_tour_view"
	PropertyContact       Name = "property_contact"
	PhoneReveal           Name = "phone_reveal"
	WhatsappClick         Name = "whatsapp_click"
	MessageSent           Name = "message_sent"
	AppointmentBooked     Name = "appointment_booked"
	EmailInquiry          Name = "email_inquiry"
	PropertySold          Name = "property_sold"
	PropertyRented        Name = "property_rented"
	ProfileView           Name = "profile_view"
	ProfileImpression     Name = "profile_impression"
	DevelopmentView       Name = "development_view"
	DevelopmentImpression Name = "development_impression"
)

// Vocabulary lists every event name the aggregator understands.
var Vocabulary = []Name{
	PropertyView, PropertyImpression, PropertyShare, PropertySave, PropertyUnsave,
	VirtualTourView, PropertyContact, PhoneReveal, WhatsappClick, MessageSent,
	AppointmentBooked, EmailInquiry, PropertySold, PropertyRented,
	ProfileView, ProfileImpression, DevelopmentView, DevelopmentImpression,
}

var known = func() map[Name]struct{} {
	m := make(map[Name]struct{}, len(Vocabulary))
	for _, n := range Vocabulary {
		m[n] = struct{}{}
	}
	return m
}()

// Known reports whether n is part of the vocabulary.
func (n Name) Known() bool {
	_, ok := known[n]
	return ok
}

// VocabularyStrings returns the vocabulary as plain strings, for API filters.
func VocabularyStrings() []string {
	out := make([]string, len(Vocabulary))
	for i, n := range Vocabulary {
		out[i] = string(n)
	}
	return out
}

// RawEvent is an event as returned by the event source.
type RawEvent struct {
	Name       string                 `json:"event"`
	DistinctID string                 `json:"distinct_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Properties map[string]interface{} `json:"properties"`
}

// LeadKind is the sub-type of a lead-producing action.
type LeadKind string

const (
	LeadContact     LeadKind = "contact"
	LeadPhone       LeadKind = "phone"
	LeadWhatsapp    LeadKind = "whatsapp"
	LeadMessage     LeadKind = "message"
	LeadAppointment LeadKind = "appointment"
	LeadEmail       LeadKind = "email"
)

var leadKinds = map[Name]LeadKind{
	PropertyContact:   LeadContact,
	PhoneReveal:       LeadPhone,
	WhatsappClick:     LeadWhatsapp,
	MessageSent:       LeadMessage,
	AppointmentBooked: LeadAppointment,
	EmailInquiry:      LeadEmail,
}

// LeadKindOf returns the lead sub-type produced by n, if any.
func LeadKindOf(n Name) (LeadKind, bool) {
	k, ok := leadKinds[n]
	return k, ok
}

// Referral sources a listing view is attributed to.
const (
	SourceSearch      = "search"
	SourceDirect      = "direct"
	SourceFeatured    = "featured"
	SourceRecommended = "recommended"
	SourceSocial      = "social"
	SourceOther       = "other"
)

// Impression placements.
const (
	PlacementSearch      = "search"
	PlacementFeatured    = "featured"
	PlacementRecommended = "recommended"
	PlacementMap         = "map"
	PlacementOther       = "other"
)

// Device classes.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)
