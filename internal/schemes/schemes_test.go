package schemes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-assistant/internal/common/logger"
)

const schemeCSV = `scheme_name,state_ministry,description,tags,combined_text,scheme_link
Rice Bonus Scheme,Government of West Bengal,Direct bonus for rice growers in west bengal,"rice, subsidy, bonus",,https://wb.example/rice
PM Crop Insurance,Ministry of Agriculture and Farmers Welfare,National crop insurance for all farmers,"insurance, crop, central",,https://india.example/insurance
Kerala Coconut Aid,Government of Kerala,Support for coconut farmers in kerala,"coconut, subsidy",,https://kerala.example/coconut
`

func writeSchemeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schemes.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(writeSchemeCSV(t, schemeCSV), logger.NewTestLogger(t))
	require.NoError(t, err)
	return eng
}

func TestNewEngine_LoadsCorpus(t *testing.T) {
	eng := newTestEngine(t)
	assert.Equal(t, 3, eng.Len())
}

func TestNewEngine_MissingFileYieldsEmptyCorpus(t *testing.T) {
	eng, err := NewEngine(filepath.Join(t.TempDir(), "absent.csv"), logger.NewTestLogger(t))

	require.NoError(t, err)
	assert.Equal(t, 0, eng.Len())

	_, ok := eng.Recommend("rice", "west bengal")
	assert.False(t, ok)
}

func TestRecommend_StateSchemeWinsInItsState(t *testing.T) {
	eng := newTestEngine(t)

	rec, ok := eng.Recommend("rice", "West Bengal")

	require.True(t, ok)
	assert.Equal(t, "Rice Bonus Scheme", rec.Name)
	assert.Equal(t, "https://wb.example/rice", rec.Link)
	assert.Greater(t, rec.Score, float64(stateMatchBonus))
}

func TestRecommend_CentralSchemeWinsOutsideMatchingStates(t *testing.T) {
	eng := newTestEngine(t)

	rec, ok := eng.Recommend("wheat", "Punjab")

	require.True(t, ok)
	assert.Equal(t, "PM Crop Insurance", rec.Name, "central scheme beats mismatched state schemes")
}

func TestRecommend_CropMentionBreaksTieWithinState(t *testing.T) {
	eng := newTestEngine(t)

	rec, ok := eng.Recommend("coconut", "Kerala")

	require.True(t, ok)
	assert.Equal(t, "Kerala Coconut Aid", rec.Name)
}

func TestWordIn_WholeWordsOnly(t *testing.T) {
	assert.True(t, wordIn("support for rice growers", "rice"))
	assert.False(t, wordIn("pricing policy updates", "rice"), "substring inside another word must not match")
	assert.True(t, wordIn("rice, subsidy, bonus", "rice"))
}

func TestFrequentTags_OrdersByFrequency(t *testing.T) {
	schemes := []Scheme{
		{Tags: "subsidy, rice"},
		{Tags: "subsidy, insurance"},
		{Tags: "subsidy"},
	}

	got := frequentTags(schemes, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "subsidy", got[0])
}
