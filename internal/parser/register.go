package parser

import (
	"fmt"
	"regexp"
	"strings"

	"intent-orchestrator/internal/intent"
)

var (
	// title "Sunset" / judul "Senja"
	reTitle = regexp.MustCompile(`(?i)\b(?:title|judul)\s*:?\s*"([^"]*)"`)

	// Bare quoted string used when no title marker is present.
	reQuoted = regexp.MustCompile(`"([^"]*)"`)
)

// parseRegister extracts registration metadata from the prompt. Registration
// always parses: any field the prompt omits is collected later by the
// dialogue engine or defaulted here, so the result is always Ok.
func (p *Parser) parseRegister(text string) intent.ParseResult {
	residual := text

	var title string
	if m := reTitle.FindStringSubmatch(residual); m != nil {
		title = strings.TrimSpace(m[1])
		residual = strings.Replace(residual, m[0], " ", 1)
	} else if m := reQuoted.FindStringSubmatch(residual); m != nil {
		title = strings.TrimSpace(m[1])
		residual = strings.Replace(residual, m[0], " ", 1)
	}

	license, residual := extractLicense(residual)

	reg := intent.RegisterIntent{
		Title:       title,
		Description: registerDescription(residual, title),
		License:     license,
	}
	if license != "" {
		reg.PILType = intent.PolicyForCode(license)
	}

	return intent.Ok(reg, intent.NewRegisterPlan(reg.Title))
}

// extractLicense scans for a license code as a standalone word, checking the
// hyphenated codes before the bare "by" they contain. The matched word is
// stripped from the residual text.
func extractLicense(text string) (intent.LicenseCode, string) {
	lower := strings.ToLower(text)
	for _, code := range intent.LicenseCodes {
		idx := indexWord(lower, string(code))
		if idx < 0 {
			continue
		}
		stripped := text[:idx] + " " + text[idx+len(code):]
		return code, stripped
	}
	return "", text
}

// registerDescription derives a description from what remains of the prompt
// after title and license extraction, falling back to one synthesized from
// the title.
func registerDescription(residual, title string) string {
	desc := collapseSpaces(stripRegisterNoise(residual))
	if len(desc) >= 12 {
		return desc
	}
	if title != "" {
		return fmt.Sprintf("IP registration of %q", title)
	}
	return ""
}

var registerNoiseRe = regexp.MustCompile(`(?i)\b(register|registrasi|mint|daftarkan|this|the|my|ip|image|file|asset|as|an?)\b|[,.]`)

func stripRegisterNoise(s string) string {
	return registerNoiseRe.ReplaceAllString(s, " ")
}
