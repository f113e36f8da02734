package events

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field is an ordered list of accepted spellings for one logical property.
// The first key holding a usable value wins.
type Field []string

var (
	ListingIDField     = Field{"listing_id", "listingId", "property_id", "propertyId"}
	ProfileIDField     = Field{"profile_id", "profileId", "user_profile_id", "lister_id", "listerId"}
	ListerIDField      = Field{"lister_id", "listerId", "owner_id", "ownerId", "agent_id"}
	ListerTypeField    = Field{"lister_type", "listerType", "owner_type"}
	DevelopmentIDField = Field{"development_id", "developmentId", "project_id", "projectId"}
	SeekerIDField      = Field{"user_id", "userId", "seeker_id"}
	DistinctIDField    = Field{"distinct_id", "$distinct_id"}
	SourceField        = Field{"viewed_from", "viewedFrom", "source", "referrer_type"}
	PlacementField     = Field{"impression_type", "impressionType", "placement"}
	LoggedInField      = Field{"is_logged_in", "isLoggedIn", "logged_in"}
	SaleAmountField    = Field{"sale_price", "salePrice", "price", "amount"}
	MessageTypeField   = Field{"message_type", "messageType"}
	AppointmentField   = Field{"appointment_type", "appointmentType"}
	AppointmentAtField = Field{"appointment_date", "appointmentDate"}
	ContactMethodField = Field{"contact_method", "contactMethod"}
	DeviceField        = Field{"device_type", "$device_type", "deviceType"}
	UserAgentField     = Field{"user_agent", "$user_agent", "userAgent"}
	CountryField       = Field{"country_code", "$country_code", "mp_country_code"}
	IPField            = Field{"ip", "$ip", "client_ip"}
)

// String returns the first non-empty value, formatting numbers without
// exponent so numeric ids survive.
func (f Field) String(props map[string]interface{}) string {
	for _, key := range f {
		if s := toString(props[key]); s != "" {
			return s
		}
	}
	return ""
}

// Float returns the first value convertible to a number.
func (f Field) Float(props map[string]interface{}) (float64, bool) {
	for _, key := range f {
		if v, ok := toFloat(props[key]); ok {
			return v, true
		}
	}
	return 0, false
}

// Bool returns the first value convertible to a boolean.
func (f Field) Bool(props map[string]interface{}) (bool, bool) {
	for _, key := range f {
		switch v := props[key].(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		case float64:
			return v != 0, true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f != 0, true
			}
		}
	}
	return false, false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
