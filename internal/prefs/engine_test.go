package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_GateRequiresReportContext(t *testing.T) {
	d := Extract("use 4 decimal places", false)
	assert.True(t, d.Empty(), "no report vocabulary and no assumed context")

	d = Extract("use 4 decimal places", true)
	require.NotNil(t, d.Decimals)
	assert.Equal(t, 4, *d.Decimals)

	d = Extract("use 4 decimal places in my portfolio report", false)
	require.NotNil(t, d.Decimals)
	assert.Equal(t, 4, *d.Decimals)
}

func TestExtract_DecimalsClamped(t *testing.T) {
	d := Extract("show 12 decimal places in reports", false)
	require.NotNil(t, d.Decimals)
	assert.Equal(t, 8, *d.Decimals)
}

func TestExtract_AssetLists(t *testing.T) {
	d := Extract("in my report only show btc, eth and sol", false)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, d.IncludeAssets)

	d = Extract("hide doge from my portfolio", false)
	assert.Equal(t, []string{"DOGE"}, d.ExcludeAssets)
}

func TestExtract_AliasesResolveInAssetLists(t *testing.T) {
	d := Extract("exclude dogecoin from the report", false)
	assert.Equal(t, []string{"DOGE"}, d.ExcludeAssets)
}

func TestExtract_SectionToggles(t *testing.T) {
	d := Extract("hide the cash flow line in reports", false)
	require.NotNil(t, d.ShowCashFlow)
	assert.False(t, *d.ShowCashFlow)
	assert.Empty(t, d.ExcludeAssets, "section words are not assets")

	d = Extract("show the timestamp on my report", false)
	require.NotNil(t, d.ShowTimestamp)
	assert.True(t, *d.ShowTimestamp)

	d = Extract("drop the freshness line from reports", false)
	require.NotNil(t, d.ShowFreshness)
	assert.False(t, *d.ShowFreshness)
}

func TestExtract_DateFormat(t *testing.T) {
	d := Extract("set the report date format to yyyy-mm-dd", false)
	assert.Equal(t, "YYYY-MM-DD", d.DateFormat)
}

func TestExtract_RuleCapture(t *testing.T) {
	d := Extract("from now on round totals to the nearest dollar in reports", false)
	require.Len(t, d.Rules, 1)
	assert.Contains(t, d.Rules[0], "round totals")
}

func TestExtract_StructuredSentenceNotDuplicatedAsRule(t *testing.T) {
	d := Extract("always show 2 decimal places in my report", false)
	require.NotNil(t, d.Decimals)
	assert.Empty(t, d.Rules, "structured directive must not double as a rule")
}

func TestMerge_Idempotent(t *testing.T) {
	two := 2
	off := false
	dir := Directives{
		Decimals:      &two,
		ExcludeAssets: []string{"DOGE"},
		ShowCashFlow:  &off,
		DateFormat:    "YYYY-MM-DD",
		Rules:         []string{"always show totals in usd"},
	}

	once := NewDocument()
	once.Merge(dir)
	twice := NewDocument()
	twice.Merge(dir)
	twice.Merge(dir)

	assert.Equal(t, once.Render(), twice.Render())
}

func TestMerge_RuleWindowAndDedupe(t *testing.T) {
	doc := NewDocument()
	for i := 0; i < 30; i++ {
		doc.Merge(Directives{Rules: []string{ruleName(i)}})
	}
	doc.Merge(Directives{Rules: []string{ruleName(29)}})

	assert.Len(t, doc.Rules, MaxRules)
	assert.Equal(t, ruleName(5), doc.Rules[0], "oldest rules fall out of the window")
	assert.Equal(t, ruleName(29), doc.Rules[len(doc.Rules)-1])
}

func TestDocument_RoundTrip(t *testing.T) {
	three := 3
	on := true
	doc := NewDocument()
	doc.Merge(Directives{
		Decimals:      &three,
		IncludeAssets: []string{"BTC", "ETH"},
		ShowTimestamp: &on,
		Rules:         []string{"always show totals in usd"},
	})

	reparsed := ParseDocument(doc.Render())
	assert.Equal(t, doc.Render(), reparsed.Render())
	assert.Equal(t, "3", reparsed.Values["decimals"])
	assert.Equal(t, "BTC, ETH", reparsed.Values["include_assets"])
	assert.Equal(t, []string{"always show totals in usd"}, reparsed.Rules)
}

func TestParseDocument_IgnoresForeignSections(t *testing.T) {
	body := "# notes\nsomething: else\n\n" + SectionHeader + "\ndecimals: 2\nrule: keep it short\n\n## other section\ndecimals: 9\n"
	doc := ParseDocument(body)
	assert.Equal(t, "2", doc.Values["decimals"])
	assert.Equal(t, []string{"keep it short"}, doc.Rules)
}

func ruleName(i int) string {
	return "rule number " + string(rune('a'+i%26)) + "-" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
