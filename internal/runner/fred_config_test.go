package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMainFRED(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "main.fred")
	require.NoError(t, os.WriteFile(path, []byte("simulation {\n}\n"), 0o644))
	return path
}

func TestConvertDateToFRED10Format(t *testing.T) {
	out, err := convertDateToFRED10Format("2020-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2020-Jan-15", out)
}

func TestConvertDateToFRED10FormatRejectsBadInput(t *testing.T) {
	_, err := convertDateToFRED10Format("not-a-date")
	assert.Error(t, err)
}

func TestFREDConfigBuilderBuildInjectsHeader(t *testing.T) {
	dir := t.TempDir()
	mainFRED := writeMainFRED(t, dir)

	b, err := newFREDConfigBuilder(mainFRED)
	require.NoError(t, err)
	require.NoError(t, b.withDates("2020-01-15", "2020-03-31"))
	b.withLocations([]string{"Allegheny_County_PA"}).withSeed(6401899875233727325)

	out := filepath.Join(dir, "prepared.fred")
	require.NoError(t, b.build(out))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "start_date = 2020-Jan-15")
	assert.Contains(t, string(content), "end_date = 2020-Mar-31")
	assert.Contains(t, string(content), "locations = Allegheny_County_PA")
	assert.Contains(t, string(content), "# Original seed: 6401899875233727325")
	assert.Contains(t, string(content), "simulation {")
}

func TestFREDConfigBuilderRunNumberFromSeed(t *testing.T) {
	dir := t.TempDir()
	mainFRED := writeMainFRED(t, dir)
	b, err := newFREDConfigBuilder(mainFRED)
	require.NoError(t, err)
	b.withSeed(6401899875233727325)
	assert.Equal(t, 11998, b.runNumber())
}

func TestFREDConfigBuilderRunNumberDefaultsToOneWithoutSeed(t *testing.T) {
	dir := t.TempDir()
	mainFRED := writeMainFRED(t, dir)
	b, err := newFREDConfigBuilder(mainFRED)
	require.NoError(t, err)
	assert.Equal(t, 1, b.runNumber())
}

func TestNewFREDConfigBuilderRequiresExistingFile(t *testing.T) {
	_, err := newFREDConfigBuilder(filepath.Join(t.TempDir(), "missing.fred"))
	assert.Error(t, err)
}

func TestFredConfigBuilderFromRunConfigParsesSynthPopLocations(t *testing.T) {
	dir := t.TempDir()
	mainFRED := writeMainFRED(t, dir)
	seed := int64(42)
	params := runConfigParams{StartDate: "2020-01-01", EndDate: "2020-01-31", Seed: &seed}
	params.SynthPop.Locations = []string{"Jefferson_County_PA"}

	b, err := fredConfigBuilderFromRunConfig(params, mainFRED)
	require.NoError(t, err)
	assert.Equal(t, "2020-Jan-01", b.startDate)
	assert.Equal(t, []string{"Jefferson_County_PA"}, b.locations)
	assert.Equal(t, 43, b.runNumber())
}
