// Package enrichment derives anti-fraud telemetry from the click context.
package enrichment

// Telemetry is attached to the Genesis log data.
type Telemetry struct {
	DeviceType    string `json:"device_type"`
	Bot           bool   `json:"bot"`
	Browser       string `json:"browser,omitempty"`
	OS            string `json:"os,omitempty"`
	TrafficSource string `json:"traffic_source"`
	Country       string `json:"country"`
}

// Enricher combines device, referrer and country lookups.
type Enricher struct {
	countries CountryResolver
}

// NewEnricher creates an enricher. countries may be nil, in which case the
// country is always reported as unknown.
func NewEnricher(countries CountryResolver) *Enricher {
	return &Enricher{countries: countries}
}

func (e *Enricher) Enrich(ip, userAgent, referrer string) Telemetry {
	device := DetectDevice(userAgent)
	t := Telemetry{
		DeviceType:    device.Type,
		Bot:           device.Bot,
		Browser:       device.Browser,
		OS:            device.OS,
		TrafficSource: ClassifyReferrer(referrer),
		Country:       CountryUnknown,
	}
	if e.countries != nil {
		t.Country = e.countries.ResolveCountry(ip)
	}
	return t
}

// Map flattens the telemetry for log data.
func (t Telemetry) Map() map[string]any {
	return map[string]any{
		"device_type":    t.DeviceType,
		"bot":            t.Bot,
		"browser":        t.Browser,
		"os":             t.OS,
		"traffic_source": t.TrafficSource,
		"country":        t.Country,
	}
}
