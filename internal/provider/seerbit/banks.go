package seerbit

import "strings"

// bankCodes maps common Nigerian bank names to their CBN codes. Lookup is
// case-insensitive and tolerant of the usual suffixes users type.
var bankCodes = map[string]string{
	"access bank":         "044",
	"citibank":            "023",
	"ecobank":             "050",
	"fidelity bank":       "070",
	"first bank":          "011",
	"fcmb":                "214",
	"globus bank":         "103",
	"gtbank":              "058",
	"guaranty trust bank": "058",
	"heritage bank":       "030",
	"jaiz bank":           "301",
	"keystone bank":       "082",
	"kuda":                "090267",
	"moniepoint":          "50515",
	"opay":                "999992",
	"palmpay":             "999991",
	"polaris bank":        "076",
	"providus bank":       "101",
	"stanbic ibtc":        "221",
	"standard chartered":  "068",
	"sterling bank":       "232",
	"suntrust bank":       "100",
	"taj bank":            "302",
	"titan trust bank":    "102",
	"uba":                 "033",
	"union bank":          "032",
	"unity bank":          "215",
	"wema bank":           "035",
	"zenith bank":         "057",
}

// BankCode resolves a bank name to its transfer code.
func BankCode(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if code, ok := bankCodes[key]; ok {
		return code, true
	}
	// Retry without common suffixes: "Zenith Bank Plc" -> "zenith bank".
	for _, suffix := range []string{" plc", " limited", " ltd", " nigeria", " of nigeria"} {
		key = strings.TrimSuffix(key, suffix)
	}
	code, ok := bankCodes[key]
	return code, ok
}

// Banks returns the supported bank names, for client-side dropdowns.
func Banks() []string {
	names := make([]string, 0, len(bankCodes))
	for name := range bankCodes {
		names = append(names, name)
	}
	return names
}
