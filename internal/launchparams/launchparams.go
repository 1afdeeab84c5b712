// Package launchparams extracts session credentials from the launch URL
// the host opened the embedded application with. Credentials arrive as
// query parameters, with the URL fragment as a fallback for fields the
// query left unset.
package launchparams

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// maxParamLen bounds plain identifier parameters.
	maxParamLen = 128
	// maxURLLen bounds the REST base URL parameter.
	maxURLLen = 2000
	// maxTokenLen bounds the REST session token.
	maxTokenLen = 128
)

// tokenPattern is the character class a REST token must match in full.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._~+/=-]+$`)

// Credentials is the read-only snapshot of host-provided session
// identity. Fields that fail validation are left empty rather than
// carried through half-sanitized.
type Credentials struct {
	CorporationID  string
	PrivateLabelID string
	UserID         string
	RestURL        string
	RestToken      string
}

// aliases maps each credential field to its accepted parameter names,
// in priority order.
var aliases = map[string][]string{
	"corporationId":  {"corporationId", "corp"},
	"privateLabelId": {"privateLabelId", "plid"},
	"userId":         {"userId", "uid"},
	"restUrl":        {"restUrl"},
	"restToken":      {"BhRestToken", "restToken"},
}

// FromURL parses the launch URL and returns whatever credentials
// validate. A malformed URL yields empty credentials and the parse
// error; individual invalid fields are dropped silently.
func FromURL(raw string) (Credentials, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Credentials{}, err
	}

	query := u.Query()

	// The fragment is parsed with the same query syntax. It is only
	// consulted for fields the query string did not set.
	fragment := url.Values{}
	if u.Fragment != "" {
		if fv, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "?")); err == nil {
			fragment = fv
		}
	}

	lookup := func(field string) string {
		for _, name := range aliases[field] {
			if v := query.Get(name); v != "" {
				return v
			}
		}
		for _, name := range aliases[field] {
			if v := fragment.Get(name); v != "" {
				return v
			}
		}
		return ""
	}

	return Credentials{
		CorporationID:  cleanParam(lookup("corporationId")),
		PrivateLabelID: cleanParam(lookup("privateLabelId")),
		UserID:         cleanParam(lookup("userId")),
		RestURL:        cleanRestURL(lookup("restUrl")),
		RestToken:      cleanToken(lookup("restToken")),
	}, nil
}

// cleanParam strips characters that could smuggle markup or break out
// of attribute contexts, then enforces the length bound. Oversized
// values are rejected outright, not truncated: a truncated identifier
// is a different identifier.
func cleanParam(v string) string {
	if v == "" || len(v) > maxParamLen {
		return ""
	}

	v = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '`', '&', '\\':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, v)

	return v
}

// cleanRestURL accepts only a well-formed absolute HTTPS URL.
func cleanRestURL(v string) string {
	if v == "" || len(v) > maxURLLen {
		return ""
	}

	u, err := url.Parse(v)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ""
	}

	return v
}

// cleanToken accepts only the restricted token character class.
func cleanToken(v string) string {
	if v == "" || len(v) > maxTokenLen || !tokenPattern.MatchString(v) {
		return ""
	}
	return v
}
