package domain

import (
	"net/url"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const maxLinkIDLength = 255

// Stored ids are a single path segment of /c/{linkID}.
var linkIDRegex = regexp.MustCompile(`^[^\s/?#]+$`)

// LinkConfiguration is the destination configuration of a tracked link.
type LinkConfiguration struct {
	LinkID          string `json:"link_id"`
	DestinationURL  string `json:"destination_url"`
	TrackingEnabled bool   `json:"tracking_enabled"`
	CampaignID      string `json:"campaign_id,omitempty"`
	UTMSource       string `json:"utm_source,omitempty"`
	UTMMedium       string `json:"utm_medium,omitempty"`
	UTMCampaign     string `json:"utm_campaign,omitempty"`
}

// ValidateLinkID checks that a stored id is non-empty and fits in one path
// segment.
func ValidateLinkID(id string) error {
	if err := validation.Validate(id,
		validation.Required,
		validation.Length(1, maxLinkIDLength),
		validation.Match(linkIDRegex),
	); err != nil {
		return ErrInvalidLinkID
	}
	return nil
}

// Validate checks the link id and that the destination is an absolute
// http(s) URL.
func (l *LinkConfiguration) Validate() error {
	if err := ValidateLinkID(l.LinkID); err != nil {
		return err
	}

	if err := validation.Validate(l.DestinationURL, validation.Required, is.URL); err != nil {
		return ErrInvalidDestination
	}
	parsed, err := url.ParseRequestURI(l.DestinationURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidDestination
	}
	return nil
}

// TrackingParams returns the UTM parameters configured for the link, or nil
// when tracking is disabled.
func (l *LinkConfiguration) TrackingParams() map[string]string {
	if !l.TrackingEnabled {
		return nil
	}
	params := make(map[string]string, 3)
	if l.UTMSource != "" {
		params["utm_source"] = l.UTMSource
	}
	if l.UTMMedium != "" {
		params["utm_medium"] = l.UTMMedium
	}
	if l.UTMCampaign != "" {
		params["utm_campaign"] = l.UTMCampaign
	}
	return params
}
