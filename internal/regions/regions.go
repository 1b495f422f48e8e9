// Package regions maps the human-readable country names the trending
// provider expects to the two-letter region codes stored in the database.
package regions

import "strings"

// All is the pseudo-region meaning "best result across every real region".
const All = "ALL"

var countryToCode = map[string]string{
	"United States":  "US",
	"Spain":          "ES",
	"Mexico":         "MX",
	"Brazil":         "BR",
	"United Kingdom": "GB",
	"Argentina":      "AR",
	"Colombia":       "CO",
	"Chile":          "CL",
	"Peru":           "PE",
	"Canada":         "CA",
	"Germany":        "DE",
	"France":         "FR",
	"Italy":          "IT",
	"Portugal":       "PT",
	"Netherlands":    "NL",
	"Belgium":        "BE",
	"Sweden":         "SE",
	"Norway":         "NO",
	"Denmark":        "DK",
	"Finland":        "FI",
	"Ireland":        "IE",
	"Switzerland":    "CH",
	"Austria":        "AT",
	"Australia":      "AU",
	"New Zealand":    "NZ",
	"Poland":         "PL",
	"Turkey":         "TR",
	"Japan":          "JP",
	"South Korea":    "KR",
	"India":          "IN",
}

var codeToCountry = func() map[string]string {
	m := make(map[string]string, len(countryToCode))
	for name, code := range countryToCode {
		m[code] = name
	}
	return m
}()

// CodeForCountry returns the region code for a country name. Unknown names
// are upper-cased and used verbatim.
func CodeForCountry(name string) string {
	if code, ok := countryToCode[name]; ok {
		return code
	}
	return strings.ToUpper(name)
}

// CountryForCode returns the country name for a region code, if known.
func CountryForCode(code string) (string, bool) {
	name, ok := codeToCountry[strings.ToUpper(code)]
	return name, ok
}

// DefaultCountries is the country list refreshed when none is given.
func DefaultCountries() []string {
	return []string{"United States", "Spain", "Mexico", "Brazil", "United Kingdom"}
}
