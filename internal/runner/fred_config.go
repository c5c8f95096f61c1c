package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fredConfigBuilder constructs a FRED 10 configuration file by prepending a
// parameter header to an existing .fred file, grounded in the original
// source's FREDConfigBuilder. FRED 11+ takes dates/locations as CLI flags;
// FRED 10 instead expects them injected as in-file parameters, which is the
// entire reason this stage exists.
type fredConfigBuilder struct {
	inputFREDPath string

	startDate string
	endDate   string
	locations []string
	seed      *int64
	hasSeed   bool
}

func newFREDConfigBuilder(inputFREDPath string) (*fredConfigBuilder, error) {
	if _, err := os.Stat(inputFREDPath); err != nil {
		return nil, fmt.Errorf("input FRED file not found: %s", inputFREDPath)
	}
	return &fredConfigBuilder{inputFREDPath: inputFREDPath}, nil
}

func (b *fredConfigBuilder) withDates(startDate, endDate string) error {
	converted, err := convertDateToFRED10Format(startDate)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}
	b.startDate = converted
	if endDate != "" {
		converted, err := convertDateToFRED10Format(endDate)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
		b.endDate = converted
	}
	return nil
}

func (b *fredConfigBuilder) withLocations(locations []string) *fredConfigBuilder {
	b.locations = locations
	return b
}

func (b *fredConfigBuilder) withSeed(seed int64) *fredConfigBuilder {
	b.seed = &seed
	b.hasSeed = true
	return b
}

// runConfigParams mirrors the params object of a run_{id}_config.json file.
type runConfigParams struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Seed      *int64 `json:"seed"`
	SynthPop  struct {
		Locations []string `json:"locations"`
	} `json:"synth_pop"`
}

type runConfigFile struct {
	Params runConfigParams `json:"params"`
}

func fredConfigBuilderFromRunConfig(params runConfigParams, mainFRED string) (*fredConfigBuilder, error) {
	b, err := newFREDConfigBuilder(mainFRED)
	if err != nil {
		return nil, err
	}
	if params.StartDate != "" {
		if err := b.withDates(params.StartDate, params.EndDate); err != nil {
			return nil, err
		}
	}
	if len(params.SynthPop.Locations) > 0 {
		b.withLocations(params.SynthPop.Locations)
	}
	if params.Seed != nil {
		b.withSeed(*params.Seed)
	}
	return b, nil
}

// build writes the prepared .fred file to outputPath and returns it.
func (b *fredConfigBuilder) build(outputPath string) error {
	original, err := os.ReadFile(b.inputFREDPath)
	if err != nil {
		return fmt.Errorf("failed to read input FRED file %s: %w", b.inputFREDPath, err)
	}

	var header strings.Builder
	header.WriteString("##################################################\n")
	header.WriteString("# FRED 10 Configuration\n")
	header.WriteString("# Auto-generated from EPX run config\n")
	header.WriteString("##################################################\n\n")

	if b.startDate != "" {
		header.WriteString("##### SIMULATED TIMEFRAME\n")
		header.WriteString(fmt.Sprintf("start_date = %s\n", b.startDate))
		if b.endDate != "" {
			header.WriteString(fmt.Sprintf("end_date = %s\n", b.endDate))
		}
		header.WriteString("\n")
	}

	if len(b.locations) > 0 {
		header.WriteString("##### SIMULATED LOCATION\n")
		for _, loc := range b.locations {
			header.WriteString(fmt.Sprintf("locations = %s\n", loc))
		}
		header.WriteString("\n")
	}

	if b.hasSeed {
		header.WriteString("##### RANDOM SEED\n")
		header.WriteString(fmt.Sprintf("# Original seed: %d\n", *b.seed))
		header.WriteString("# (Use -r flag with FRED to specify run number)\n\n")
	}

	header.WriteString("##################################################\n\n")

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, append([]byte(header.String()), original...), 0o644); err != nil {
		return fmt.Errorf("failed to write output FRED file %s: %w", outputPath, err)
	}
	return nil
}

// runNumber derives FRED 10's 16-bit run number from a 64-bit seed.
func (b *fredConfigBuilder) runNumber() int {
	if !b.hasSeed {
		return 1
	}
	const maxRunNumber = 1 << 16
	return int(*b.seed%maxRunNumber) + 1
}

// convertDateToFRED10Format converts an ISO YYYY-MM-DD date to FRED 10's
// legacy YYYY-Mon-DD form, e.g. 2020-01-15 -> 2020-Jan-15.
func convertDateToFRED10Format(iso string) (string, error) {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return "", fmt.Errorf("expected YYYY-MM-DD, got %q", iso)
	}
	return fmt.Sprintf("%04d-%s-%02d", t.Year(), t.Month().String()[:3], t.Day()), nil
}
