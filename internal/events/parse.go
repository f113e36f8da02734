package events

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingEntityID is returned by Parse when no alias of the event's
// canonical entity id holds a value.
var ErrMissingEntityID = errors.New("no resolvable entity id")

// Event is a typed event variant.
type Event interface {
	EventName() Name
	OccurredAt() time.Time
}

// Base carries the fields every event variant shares.
type Base struct {
	Name       Name
	DistinctID string
	Timestamp  time.Time
}

// EventName and OccurredAt implement Event.
func (b Base) EventName() Name       { return b.Name }
func (b Base) OccurredAt() time.Time { return b.Timestamp }

// Visitor describes who produced a view.
type Visitor struct {
	ID       string
	LoggedIn bool
	Device   string
	Country  string
}

// ListingRef identifies a listing and the entities it rolls up to.
type ListingRef struct {
	ListingID     string
	ListerID      string
	ListerType    string
	DevelopmentID string
}

// ListingView is a property_view of one listing.
type ListingView struct {
	Base
	Listing ListingRef
	Visitor Visitor
	Source  string
}

// ListingImpression is a listing shown in a placement without being opened.
type ListingImpression struct {
	Base
	Listing   ListingRef
	Placement string
}

// ListingEngagement covers shares, saves, unsaves and virtual tours.
type ListingEngagement struct {
	Base
	Listing ListingRef
}

// LeadAction is one contact action a seeker took on a listing.
type LeadAction struct {
	Base
	Listing  ListingRef
	SeekerID string
	Kind     LeadKind
	Metadata map[string]string
}

// Sale marks a listing sold or rented.
type Sale struct {
	Base
	Listing  ListingRef
	SaleType string
	Amount   float64
}

// ProfileViewEvent is a view of a lister's profile page.
type ProfileViewEvent struct {
	Base
	ProfileID string
	Visitor   Visitor
}

// ProfileImpressionEvent is a lister profile shown in a list.
type ProfileImpressionEvent struct {
	Base
	ProfileID string
}

// DevelopmentViewEvent is a view of a development page.
type DevelopmentViewEvent struct {
	Base
	DevelopmentID string
	Visitor       Visitor
}

// DevelopmentImpressionEvent is a development shown in a list.
type DevelopmentImpressionEvent struct {
	Base
	DevelopmentID string
}

// Unrecognized wraps an event outside the vocabulary.
type Unrecognized struct {
	Base
	Properties map[string]interface{}
}

// Parser turns raw events into typed variants.
type Parser struct {
	enricher *Enricher
}

// NewParser creates a parser. enricher may be nil.
func NewParser(enricher *Enricher) *Parser {
	return &Parser{enricher: enricher}
}

// Parse converts raw into its typed variant. Known events without a
// resolvable entity id return ErrMissingEntityID.
func (p *Parser) Parse(raw RawEvent) (Event, error) {
	props := raw.Properties
	if props == nil {
		props = map[string]interface{}{}
	}

	base := Base{
		Name:       Name(raw.Name),
		DistinctID: raw.DistinctID,
		Timestamp:  raw.Timestamp,
	}
	if base.DistinctID == "" {
		base.DistinctID = DistinctIDField.String(props)
	}

	switch base.Name {
	case ProfileView, ProfileImpression:
		profileID := ProfileIDField.String(props)
		if profileID == "" {
			return nil, ErrMissingEntityID
		}
		if base.Name == ProfileImpression {
			return ProfileImpressionEvent{Base: base, ProfileID: profileID}, nil
		}
		return ProfileViewEvent{Base: base, ProfileID: profileID, Visitor: p.visitor(base, props)}, nil

	case DevelopmentView, DevelopmentImpression:
		developmentID := DevelopmentIDField.String(props)
		if developmentID == "" {
			return nil, ErrMissingEntityID
		}
		if base.Name == DevelopmentImpression {
			return DevelopmentImpressionEvent{Base: base, DevelopmentID: developmentID}, nil
		}
		return DevelopmentViewEvent{Base: base, DevelopmentID: developmentID, Visitor: p.visitor(base, props)}, nil
	}

	if !base.Name.Known() {
		return Unrecognized{Base: base, Properties: props}, nil
	}

	ref := ListingRef{
		ListingID:     ListingIDField.String(props),
		ListerID:      ListerIDField.String(props),
		ListerType:    ListerTypeField.String(props),
		DevelopmentID: DevelopmentIDField.String(props),
	}
	if ref.ListingID == "" {
		return nil, ErrMissingEntityID
	}

	switch base.Name {
	case PropertyView:
		return ListingView{
			Base:    base,
			Listing: ref,
			Visitor: p.visitor(base, props),
			Source:  normalizeSource(SourceField.String(props)),
		}, nil

	case PropertyImpression:
		return ListingImpression{
			Base:      base,
			Listing:   ref,
			Placement: normalizePlacement(PlacementField.String(props)),
		}, nil

	case PropertyShare, PropertySave, PropertyUnsave, VirtualTourView:
		return ListingEngagement{Base: base, Listing: ref}, nil

	case PropertySold, PropertyRented:
		amount, _ := SaleAmountField.Float(props)
		saleType := "sold"
		if base.Name == PropertyRented {
			saleType = "rented"
		}
		return Sale{Base: base, Listing: ref, SaleType: saleType, Amount: amount}, nil
	}

	kind, _ := LeadKindOf(base.Name)
	seeker := SeekerIDField.String(props)
	if seeker == "" {
		seeker = base.DistinctID
	}
	return LeadAction{
		Base:     base,
		Listing:  ref,
		SeekerID: seeker,
		Kind:     kind,
		Metadata: leadMetadata(kind, props),
	}, nil
}

func (p *Parser) visitor(base Base, props map[string]interface{}) Visitor {
	v := Visitor{ID: base.DistinctID}
	if loggedIn, ok := LoggedInField.Bool(props); ok {
		v.LoggedIn = loggedIn
	} else {
		v.LoggedIn = SeekerIDField.String(props) != ""
	}
	if p.enricher != nil {
		p.enricher.Enrich(&v, props)
	}
	return v
}

func leadMetadata(kind LeadKind, props map[string]interface{}) map[string]string {
	meta := map[string]string{}
	put := func(key string, f Field) {
		if v := f.String(props); v != "" {
			meta[key] = v
		}
	}

	switch kind {
	case LeadMessage:
		put("message_type", MessageTypeField)
	case LeadAppointment:
		put("appointment_type", AppointmentField)
		put("appointment_date", AppointmentAtField)
	case LeadContact:
		put("contact_method", ContactMethodField)
	}
	return meta
}

func normalizeSource(s string) string {
	switch strings.ToLower(s) {
	case "":
		return SourceDirect
	case "search", "search_results", "searchresults":
		return SourceSearch
	case "direct", "url":
		return SourceDirect
	case "featured", "homepage_featured":
		return SourceFeatured
	case "recommended", "recommendation", "similar", "similar_listings":
		return SourceRecommended
	case "social", "share", "shared_link":
		return SourceSocial
	}
	return SourceOther
}

func normalizePlacement(s string) string {
	switch strings.ToLower(s) {
	case "search", "search_results":
		return PlacementSearch
	case "featured":
		return PlacementFeatured
	case "recommended", "similar":
		return PlacementRecommended
	case "map":
		return PlacementMap
	}
	return PlacementOther
}
