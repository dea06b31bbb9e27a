package enrichment

import (
	ua "github.com/mileusna/useragent"
)

// Device types.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
	DeviceUnknown = "Unknown"
)

// Device is what a user agent string says about the client.
type Device struct {
	Type    string `json:"device_type"`
	Bot     bool   `json:"bot"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// DetectDevice parses a user agent string. Bots are reported before any
// form factor.
func DetectDevice(userAgent string) Device {
	if userAgent == "" {
		return Device{Type: DeviceUnknown}
	}

	parsed := ua.Parse(userAgent)
	d := Device{
		Bot:     parsed.Bot,
		Browser: parsed.Name,
		OS:      parsed.OS,
	}

	switch {
	case parsed.Bot:
		d.Type = DeviceBot
	case parsed.Tablet:
		d.Type = DeviceTablet
	case parsed.Mobile:
		d.Type = DeviceMobile
	case parsed.Desktop:
		d.Type = DeviceDesktop
	default:
		d.Type = DeviceUnknown
	}
	return d
}
