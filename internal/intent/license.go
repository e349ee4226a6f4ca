package intent

// LicenseCode is the closed set of license identifiers a registration can
// carry. The codes mirror the Creative Commons short forms plus "arr"
// (all rights reserved).
type LicenseCode string

const (
	LicenseCC0  LicenseCode = "cc0"
	LicenseBY   LicenseCode = "by"
	LicenseBYNC LicenseCode = "by-nc"
	LicenseBYND LicenseCode = "by-nd"
	LicenseBYSA LicenseCode = "by-sa"
	LicenseARR  LicenseCode = "arr"
)

func (c LicenseCode) Valid() bool {
	switch c {
	case LicenseCC0, LicenseBY, LicenseBYNC, LicenseBYND, LicenseBYSA, LicenseARR:
		return true
	}
	return false
}

// LicenseCodes lists license codes in detection precedence order: the
// hyphenated codes must be checked before the bare "by" they contain.
var LicenseCodes = []LicenseCode{LicenseCC0, LicenseBYNC, LicenseBYND, LicenseBYSA, LicenseBY, LicenseARR}

// LicensePolicy is the PIL policy attached to a registration.
type LicensePolicy string

const (
	PolicyOpenUse         LicensePolicy = "open-use"
	PolicyNonCommercial   LicensePolicy = "non-commercial"
	PolicyCommercial      LicensePolicy = "commercial"
	PolicyCommercialRemix LicensePolicy = "commercial-remix"
)

func (p LicensePolicy) Valid() bool {
	switch p {
	case PolicyOpenUse, PolicyNonCommercial, PolicyCommercial, PolicyCommercialRemix:
		return true
	}
	return false
}

// LicenseOption is one entry of the license menu presented by the dialogue
// engine. AllowsAITraining marks the options that may not be offered for
// assets detected as AI-generated.
type LicenseOption struct {
	Label            string
	Code             LicenseCode
	Policy           LicensePolicy
	AllowsAITraining bool
}

// LicenseMenu is the fixed label -> (code, policy) table. The dialogue
// engine matches selections against Label case-insensitively.
var LicenseMenu = []LicenseOption{
	{Label: "Open use", Code: LicenseCC0, Policy: PolicyOpenUse, AllowsAITraining: true},
	{Label: "Non-commercial remix", Code: LicenseBYNC, Policy: PolicyNonCommercial},
	{Label: "Commercial use", Code: LicenseBY, Policy: PolicyCommercial},
	{Label: "Commercial remix", Code: LicenseBYSA, Policy: PolicyCommercialRemix},
}

// PolicyForCode maps a bare license code to its default policy. Codes
// without a menu entry fall back to non-commercial.
func PolicyForCode(code LicenseCode) LicensePolicy {
	switch code {
	case LicenseCC0:
		return PolicyOpenUse
	case LicenseBY:
		return PolicyCommercial
	case LicenseBYSA:
		return PolicyCommercialRemix
	case LicenseBYNC, LicenseBYND, LicenseARR:
		return PolicyNonCommercial
	}
	return PolicyNonCommercial
}
