package events

import (
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
)

// Enricher fills visitor device and country from raw properties, falling
// back to user-agent parsing and a GeoIP lookup.
type Enricher struct {
	geoIP *geoip2.Reader
}

// NewEnricher opens the GeoIP database at geoIPPath when set. A missing or
// unreadable database disables country lookups.
func NewEnricher(geoIPPath string) *Enricher {
	var geoIP *geoip2.Reader
	if geoIPPath != "" {
		geoIP, _ = geoip2.Open(geoIPPath)
	}

	return &Enricher{
		geoIP: geoIP,
	}
}

func (e *Enricher) Enrich(v *Visitor, props map[string]interface{}) {
	v.Device = deviceFromProperties(props)

	if v.Device == "" {
		if ua := UserAgentField.String(props); ua != "" {
			v.Device = getDeviceType(useragent.New(ua))
		}
	}

	v.Country = strings.ToUpper(CountryField.String(props))
	if v.Country == "" && e.geoIP != nil {
		if ip := net.ParseIP(IPField.String(props)); ip != nil {
			if record, err := e.geoIP.Country(ip); err == nil {
				v.Country = record.Country.IsoCode
			}
		}
	}
}

func deviceFromProperties(props map[string]interface{}) string {
	switch strings.ToLower(DeviceField.String(props)) {
	case "mobile", "tablet", "phone":
		return DeviceMobile
	case "desktop", "web":
		return DeviceDesktop
	case "bot":
		return DeviceBot
	}
	return ""
}

func getDeviceType(ua *useragent.UserAgent) string {
	if ua.Bot() {
		return DeviceBot
	}
	if ua.Mobile() {
		return DeviceMobile
	}
	return DeviceDesktop
}

func (e *Enricher) Close() {
	if e.geoIP != nil {
		e.geoIP.Close()
	}
}
