package models

import "strings"

// usStates maps postal codes to state names.
var usStates = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas",
	"CA": "california", "CO": "colorado", "CT": "connecticut", "DE": "delaware",
	"FL": "florida", "GA": "georgia", "HI": "hawaii", "ID": "idaho",
	"IL": "illinois", "IN": "indiana", "IA": "iowa", "KS": "kansas",
	"KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi",
	"MO": "missouri", "MT": "montana", "NE": "nebraska", "NV": "nevada",
	"NH": "new hampshire", "NJ": "new jersey", "NM": "new mexico", "NY": "new york",
	"NC": "north carolina", "ND": "north dakota", "OH": "ohio", "OK": "oklahoma",
	"OR": "oregon", "PA": "pennsylvania", "RI": "rhode island", "SC": "south carolina",
	"SD": "south dakota", "TN": "tennessee", "TX": "texas", "UT": "utah",
	"VT": "vermont", "VA": "virginia", "WA": "washington", "WV": "west virginia",
	"WI": "wisconsin", "WY": "wyoming", "DC": "district of columbia",
}

var stateCodes = func() map[string]string {
	m := make(map[string]string, len(usStates))
	for code, name := range usStates {
		m[name] = code
	}
	return m
}()

// NormalizeUSState returns the postal code for a state name or code.
// Unknown values are returned trimmed but otherwise unchanged.
func NormalizeUSState(s string) string {
	s = strings.TrimSpace(s)
	if code, ok := stateCodes[strings.Join(strings.Fields(strings.ToLower(s)), " ")]; ok {
		return code
	}
	if _, ok := usStates[strings.ToUpper(s)]; ok {
		return strings.ToUpper(s)
	}
	return s
}
