package extractor

import "strings"

// currencyCodes are the codes accepted after or before an amount. NTD is the
// colloquial code for New Taiwan dollars and is kept as written.
var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true, "TWD": true,
	"NTD": true, "HKD": true, "SGD": true, "AUD": true, "CAD": true, "NZD": true,
	"KRW": true, "INR": true, "CHF": true, "SEK": true, "NOK": true, "DKK": true,
	"THB": true, "MYR": true, "PHP": true, "IDR": true, "VND": true, "MXN": true,
	"BRL": true, "ZAR": true, "PLN": true, "CZK": true, "HUF": true, "TRY": true,
	"AED": true, "SAR": true, "ILS": true, "RMB": true,
}

// currencySymbols map unambiguous prefixes to a code. "$" and "¥" name
// several currencies and resolve to "".
var currencySymbols = map[string]string{
	"NT$": "NTD",
	"US$": "USD",
	"HK$": "HKD",
	"S$":  "SGD",
	"A$":  "AUD",
	"C$":  "CAD",
	"€":   "EUR",
	"£":   "GBP",
	"₩":   "KRW",
	"₹":   "INR",
	"$":   "",
	"¥":   "",
}

// currencyWords map spoken currency names. Bare "dollars" is ambiguous.
var currencyWords = map[string]string{
	"nt dollar":  "NTD",
	"nt dollars": "NTD",
	"us dollar":  "USD",
	"us dollars": "USD",
	"euro":       "EUR",
	"euros":      "EUR",
	"yen":        "JPY",
	"rupees":     "INR",
	"dollar":     "",
	"dollars":    "",
	"bucks":      "",
}

// resolveCurrency maps a token that followed or preceded an amount to a
// code. ok is false when the token is not a currency at all; code is empty
// when the token is a currency of unknown denomination.
func resolveCurrency(token string) (code string, ok bool) {
	t := strings.Join(strings.Fields(strings.ToLower(token)), " ")
	if c, found := currencyWords[t]; found {
		return c, true
	}
	if c, found := currencySymbols[strings.ToUpper(t)]; found {
		return c, true
	}
	if up := strings.ToUpper(t); currencyCodes[up] {
		if up == "RMB" {
			return "CNY", true
		}
		return up, true
	}
	return "", false
}

// reasonPhrases are recognized return reasons, longest first so the most
// specific phrase wins.
var reasonPhrases = []string{
	"not as described",
	"dead on arrival",
	"changed my mind",
	"stopped working",
	"no longer needed",
	"does not work",
	"doesn't work",
	"does not fit",
	"doesn't fit",
	"missing parts",
	"arrived late",
	"wrong colour",
	"wrong color",
	"not working",
	"wrong item",
	"wrong size",
	"overheating",
	"defective",
	"scratched",
	"too small",
	"too large",
	"damaged",
	"leaking",
	"cracked",
	"too big",
	"broken",
	"faulty",
}

// timeUnits after a bare number mean it is a duration, not a price.
var timeUnits = []string{"day", "days", "week", "weeks", "month", "months", "year", "years", "hour", "hours", "pcs", "items", "units"}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// pronouns never name a product or store.
var pronouns = map[string]bool{
	"it": true, "them": true, "this": true, "that": true, "these": true,
	"those": true, "one": true, "something": true, "stuff": true,
}
