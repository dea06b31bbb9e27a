package enrichment

import (
	"net/url"
	"strings"
)

// Traffic sources.
const (
	SourceDirect   = "Direct"
	SourceSearch   = "Search"
	SourceSocial   = "Social"
	SourceAI       = "AI"
	SourceEmail    = "Email"
	SourceReferral = "Referral"
)

type sourceRule struct {
	source  string
	domains []string
}

// Rules are checked in order; AI hosts come first since some of them live
// under search engine domains.
var sourceRules = []sourceRule{
	{SourceAI, []string{"chatgpt.com", "claude.ai", "gemini.google.com", "perplexity.ai", "copilot.microsoft.com"}},
	{SourceEmail, []string{"mail.google.com", "outlook.live.com", "mail.yahoo.com", "mail.proton.me"}},
	{SourceSearch, []string{"google.com", "bing.com", "yahoo.com", "duckduckgo.com", "baidu.com", "yandex.ru", "ecosia.org"}},
	{SourceSocial, []string{"facebook.com", "twitter.com", "x.com", "t.co", "instagram.com", "linkedin.com", "pinterest.com", "reddit.com", "tiktok.com", "youtube.com", "threads.net"}},
}

// ClassifyReferrer maps a referrer URL to a traffic source.
func ClassifyReferrer(referrer string) string {
	if referrer == "" {
		return SourceDirect
	}

	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return SourceDirect
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	for _, rule := range sourceRules {
		for _, d := range rule.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return rule.source
			}
		}
	}
	return SourceReferral
}
