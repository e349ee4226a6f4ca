package parser

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-orchestrator/internal/common/config"
	"intent-orchestrator/internal/intent"
	"intent-orchestrator/internal/tokens"
)

const (
	wipAddr  = "0x1514000000000000000000000000000000000000"
	usdcAddr = "0xF1815bd50389c46847f0Bda824eC8da914045D14"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	registry := tokens.NewRegistry([]config.TokenConfig{
		{Symbol: "WIP", Address: wipAddr, Aliases: []string{"wrapped ip"}, Decimals: 18},
		{Symbol: "USDC", Address: usdcAddr, Aliases: []string{"usd coin"}, Decimals: 6},
	})
	return New(registry)
}

func TestDecideSwapVariants(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name         string
		text         string
		wantAmount   float64
		wantSlippage float64
		wantHasSlip  bool
	}{
		{
			name:         "amount first with slippage",
			text:         `Swap 1 WIP > USDC slippage 0.5%`,
			wantAmount:   1,
			wantSlippage: 0.5,
			wantHasSlip:  true,
		},
		{
			name:       "word arrow",
			text:       `swap 2.5 WIP to USDC`,
			wantAmount: 2.5,
		},
		{
			name:       "indonesian verb and arrow with comma decimal",
			text:       `tukar 0,5 wip ke usdc`,
			wantAmount: 0.5,
		},
		{
			name:       "tokens first ordering",
			text:       `swap WIP -> USDC, amount 3`,
			wantAmount: 3,
		},
		{
			name:       "symbol arrow fallback without verb",
			text:       `WIP -> USDC 2.5`,
			wantAmount: 2.5,
		},
		{
			name:       "literal addresses",
			text:       `swap 1 ` + wipAddr + ` > ` + usdcAddr,
			wantAmount: 1,
		},
		{
			name:         "unicode arrow",
			text:         `swap 4 WIP → USDC slip 1`,
			wantAmount:   4,
			wantSlippage: 1,
			wantHasSlip:  true,
		},
		{
			name:         "tokens first with amount and slippage",
			text:         `WIP -> USDC 2 slippage 3`,
			wantAmount:   2,
			wantSlippage: 3,
			wantHasSlip:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Decide(tt.text)
			require.Equal(t, intent.StatusOk, result.Status, "question: %s", result.Question)

			swap, ok := result.Intent.(intent.SwapIntent)
			require.True(t, ok)
			assert.Equal(t, common.HexToAddress(wipAddr), swap.TokenIn)
			assert.Equal(t, common.HexToAddress(usdcAddr), swap.TokenOut)
			assert.Equal(t, tt.wantAmount, swap.Amount)
			assert.Equal(t, tt.wantHasSlip, swap.HasSlippage)
			if tt.wantHasSlip {
				assert.Equal(t, tt.wantSlippage, swap.SlippagePct)
			}
			assert.Len(t, result.Plan.Steps, 5)
		})
	}
}

func TestDecideAsksForMissingPieces(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name       string
		text       string
		wantInText string
	}{
		{
			name:       "unknown token in",
			text:       `Swap 1 FAKE > USDC`,
			wantInText: "token in",
		},
		{
			name:       "unknown token out",
			text:       `Swap 1 WIP > NOPE`,
			wantInText: "token out",
		},
		{
			name:       "missing amount",
			text:       `swap WIP > USDC`,
			wantInText: "amount",
		},
		{
			name:       "bare verb",
			text:       `swap`,
			wantInText: "token in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Decide(tt.text)
			require.Equal(t, intent.StatusAsk, result.Status)
			assert.Contains(t, result.Question, tt.wantInText)
			assert.NotEmpty(t, result.Suggestions)
		})
	}
}

func TestDecideNeverTakesSlippageAsAmount(t *testing.T) {
	p := testParser(t)

	for _, text := range []string{
		`WIP -> USDC slippage 3`,
		`swap WIP > USDC slip 0.5%`,
		`WIP -> USDC slippage 250%`,
	} {
		result := p.Decide(text)
		require.Equal(t, intent.StatusAsk, result.Status, "input %q", text)
		assert.Contains(t, result.Question, "amount", "input %q", text)
	}
}

func TestDecideMissingAmountNamesOnlyAmount(t *testing.T) {
	p := testParser(t)

	result := p.Decide(`swap WIP > USDC`)
	require.Equal(t, intent.StatusAsk, result.Status)
	assert.Contains(t, result.Question, "amount")
	assert.NotContains(t, result.Question, "token in")
	assert.NotContains(t, result.Question, "token out")
}

func TestDecideEmptyPromptOffersBothFlows(t *testing.T) {
	p := testParser(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		result := p.Decide(text)
		require.Equal(t, intent.StatusAsk, result.Status)
		assert.Len(t, result.Suggestions, 2)
	}
}

func TestDecideUnrelatedPromptAsks(t *testing.T) {
	p := testParser(t)

	result := p.Decide("what is the weather today")
	require.Equal(t, intent.StatusAsk, result.Status)
	assert.Len(t, result.Suggestions, 2)
}

func TestDecideRegisterVariants(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name        string
		text        string
		wantTitle   string
		wantLicense intent.LicenseCode
		wantPolicy  intent.LicensePolicy
	}{
		{
			name:        "title and license",
			text:        `Register this image IP, title "Sunset" by-nc`,
			wantTitle:   "Sunset",
			wantLicense: intent.LicenseBYNC,
			wantPolicy:  intent.PolicyNonCommercial,
		},
		{
			name:        "indonesian title marker",
			text:        `daftarkan gambar ini, judul "Senja" cc0`,
			wantTitle:   "Senja",
			wantLicense: intent.LicenseCC0,
			wantPolicy:  intent.PolicyOpenUse,
		},
		{
			name:      "bare quoted title no license",
			text:      `mint "Morning Fog" as IP`,
			wantTitle: "Morning Fog",
		},
		{
			name: "no metadata at all",
			text: `register this file`,
		},
		{
			name:        "hyphenated license wins over bare by",
			text:        `register title "X" by-sa`,
			wantTitle:   "X",
			wantLicense: intent.LicenseBYSA,
			wantPolicy:  intent.PolicyCommercialRemix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Decide(tt.text)
			require.Equal(t, intent.StatusOk, result.Status)

			reg, ok := result.Intent.(intent.RegisterIntent)
			require.True(t, ok)
			assert.Equal(t, tt.wantTitle, reg.Title)
			assert.Equal(t, tt.wantLicense, reg.License)
			assert.Equal(t, tt.wantPolicy, reg.PILType)
			assert.Len(t, result.Plan.Steps, 6)
		})
	}
}

func TestDecideRegisterDefaultsDescriptionFromTitle(t *testing.T) {
	p := testParser(t)

	result := p.Decide(`register title "Sunset" cc0`)
	require.Equal(t, intent.StatusOk, result.Status)

	reg := result.Intent.(intent.RegisterIntent)
	assert.Contains(t, reg.Description, "Sunset")
}

func TestDecideSwapTriggerBeatsRegisterWhenEarlier(t *testing.T) {
	p := testParser(t)

	result := p.Decide(`swap 1 WIP > USDC then register it`)
	require.Equal(t, intent.StatusOk, result.Status)
	_, ok := result.Intent.(intent.SwapIntent)
	assert.True(t, ok)
}

func TestDecideIsIdempotent(t *testing.T) {
	p := testParser(t)

	for _, text := range []string{
		`Swap 1 WIP > USDC slippage 0.5%`,
		`Register this image IP, title "Sunset" by-nc`,
		``,
		`something else entirely`,
	} {
		first := p.Decide(text)
		second := p.Decide(text)
		assert.Equal(t, first, second, "input %q", text)
	}
}

func TestParseSlippage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    float64
		wantHas bool
	}{
		{name: "with percent", text: "slippage 0.5%", want: 0.5, wantHas: true},
		{name: "short form", text: "slip 2", want: 2, wantHas: true},
		{name: "colon separator", text: "slippage: 1.5%", want: 1.5, wantHas: true},
		{name: "comma decimal", text: "slippage 0,5%", want: 0.5, wantHas: true},
		{name: "absent", text: "swap 1 WIP > USDC"},
		{name: "over 100 ignored", text: "slippage 250%"},
		{name: "zero ignored", text: "slippage 0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, has := ParseSlippage(tt.text)
			assert.Equal(t, tt.wantHas, has)
			if tt.wantHas {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{raw: "1", want: 1, wantOK: true},
		{raw: "2.5", want: 2.5, wantOK: true},
		{raw: "0,5", want: 0.5, wantOK: true},
		{raw: ""},
		{raw: "0"},
		{raw: "abc"},
		{raw: "1.2.3"},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.raw)
		assert.Equal(t, tt.wantOK, ok, "raw %q", tt.raw)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "raw %q", tt.raw)
		}
	}
}
