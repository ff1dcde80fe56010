// Command simulate runs synthetic multi-week dosing schedules through the
// carryover and classification pipeline and writes per-scenario JSON and
// Markdown reports plus a cross-scenario summary. It is a validation tool,
// not a production surface: scenarios are seeded, so runs are reproducible.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
)

type ScenarioFile struct {
	Seed      int64      `yaml:"seed"`
	Scenarios []Scenario `yaml:"scenarios"`
}

type Scenario struct {
	Name          string  `yaml:"name"`
	Days          int     `yaml:"days"`
	DoseAmount    float64 `yaml:"dose_amount"`
	ReferenceDose float64 `yaml:"reference_dose"`
	HalfLifeHours float64 `yaml:"half_life_hours"`
	// DoseProbability is the per-day chance of dosing at all.
	DoseProbability float64 `yaml:"dose_probability"`
	// RestAbovePct forces a rest day when carryover is at or above it.
	RestAbovePct float64 `yaml:"rest_above_pct"`
}

type DayLog struct {
	Day            int     `json:"day"`
	Dosed          bool    `json:"dosed"`
	Amount         float64 `json:"amount,omitempty"`
	CarryoverPct   float64 `json:"carryover_pct"`
	CarryoverTier  string  `json:"carryover_tier"`
	Classification string  `json:"classification,omitempty"`
}

type ScenarioReport struct {
	Name        string         `json:"name"`
	Days        int            `json:"days"`
	DoseDays    int            `json:"dose_days"`
	RestDays    int            `json:"rest_days"`
	Counts      map[string]int `json:"classification_counts"`
	GreenRatio  float64        `json:"green_ratio"`
	FinalPct    float64        `json:"final_carryover_pct"`
	Trend       string         `json:"trend"`
	Suggestions []string       `json:"suggestions"`
	Log         []DayLog       `json:"log"`
}

func main() {
	scenarioPath := flag.String("scenarios", "scenarios.yaml", "path to the YAML scenario file")
	outDir := flag.String("out", "simulation-reports", "directory for generated reports")
	flag.Parse()

	raw, err := os.ReadFile(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read scenarios: %v\n", err)
		os.Exit(1)
	}
	var file ScenarioFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse scenarios: %v\n", err)
		os.Exit(1)
	}
	if len(file.Scenarios) == 0 {
		fmt.Fprintln(os.Stderr, "no scenarios defined")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	policy := engine.LoadPolicyFromEnv()
	reports := make([]ScenarioReport, 0, len(file.Scenarios))
	for i, sc := range file.Scenarios {
		// One PRNG stream per scenario keeps runs stable when scenarios are
		// reordered or removed.
		rng := rand.New(rand.NewSource(file.Seed + int64(i)))
		report := runScenario(sc, policy, rng)
		reports = append(reports, report)
		if err := writeScenarioReports(*outDir, report); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write report for %s: %v\n", report.Name, err)
			os.Exit(1)
		}
	}
	if err := writeSummary(*outDir, reports); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d scenario reports to %s\n", len(reports), *outDir)
}

func runScenario(sc Scenario, policy engine.Policy, rng *rand.Rand) ScenarioReport {
	if sc.Days <= 0 {
		sc.Days = 28
	}
	if sc.ReferenceDose <= 0 {
		sc.ReferenceDose = sc.DoseAmount
	}
	if sc.HalfLifeHours <= 0 {
		sc.HalfLifeHours = policy.DefaultHalfLifeHours
	}
	if sc.DoseProbability <= 0 {
		sc.DoseProbability = 1
	}
	if sc.RestAbovePct <= 0 {
		sc.RestAbovePct = 100
	}

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	batchID := uuid.New()
	var history []domain.DoseEvent

	report := ScenarioReport{
		Name:   sc.Name,
		Days:   sc.Days,
		Counts: map[string]int{},
	}
	for day := 0; day < sc.Days; day++ {
		now := start.AddDate(0, 0, day)
		carry := engine.ComputeCarryover(engine.CarryoverInput{
			Doses:         history,
			ReferenceTime: now,
			ReferenceDose: sc.ReferenceDose,
			HalfLifeHours: sc.HalfLifeHours,
		}, policy)

		entry := DayLog{
			Day:           day + 1,
			CarryoverPct:  carry.Percentage,
			CarryoverTier: carry.Tier,
		}
		dose := carry.Percentage < sc.RestAbovePct && rng.Float64() < sc.DoseProbability
		if dose {
			event := domain.DoseEvent{
				ID:      uuid.New(),
				BatchID: batchID,
				Amount:  sc.DoseAmount,
				Unit:    "ug",
				TakenAt: now,
			}
			history = append(history, event)
			signal, texture, interference := synthesizeScores(carry.EffectiveMultiplier, rng)
			class := engine.ClassifyDay(&signal, &texture, &interference, policy)
			entry.Dosed = true
			entry.Amount = sc.DoseAmount
			entry.Classification = string(class)
			report.DoseDays++
			report.Counts[string(class)]++
		} else {
			report.RestDays++
		}
		report.Log = append(report.Log, entry)
	}

	final := engine.ComputeCarryover(engine.CarryoverInput{
		Doses:         history,
		ReferenceTime: start.AddDate(0, 0, sc.Days),
		ReferenceDose: sc.ReferenceDose,
		HalfLifeHours: sc.HalfLifeHours,
	}, policy)
	report.FinalPct = final.Percentage
	if report.DoseDays > 0 {
		report.GreenRatio = float64(report.Counts[string(domain.DayGreen)]) / float64(report.DoseDays)
	}
	report.Trend = trendNote(report)
	report.Suggestions = suggestions(report, sc)
	return report
}

// synthesizeScores turns the effective-dose multiplier into plausible
// signal/texture/interference ordinals with seeded noise. High carryover
// means less felt effect and more interference.
func synthesizeScores(multiplier float64, rng *rand.Rand) (signal, texture, interference int) {
	noise := func() float64 { return rng.NormFloat64() * 1.2 }
	signal = clampScore(8*multiplier + noise())
	texture = clampScore(6*multiplier + noise())
	interference = clampScore(7*(1-multiplier) + noise())
	return signal, texture, interference
}

func clampScore(v float64) int {
	n := int(v + 0.5)
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

func trendNote(r ScenarioReport) string {
	half := len(r.Log) / 2
	firstGreen, firstDosed, lastGreen, lastDosed := 0, 0, 0, 0
	for i, entry := range r.Log {
		if !entry.Dosed {
			continue
		}
		if i < half {
			firstDosed++
			if entry.Classification == string(domain.DayGreen) {
				firstGreen++
			}
		} else {
			lastDosed++
			if entry.Classification == string(domain.DayGreen) {
				lastGreen++
			}
		}
	}
	ratio := func(green, dosed int) float64 {
		if dosed == 0 {
			return 0
		}
		return float64(green) / float64(dosed)
	}
	delta := ratio(lastGreen, lastDosed) - ratio(firstGreen, firstDosed)
	switch {
	case delta > 0.1:
		return "improving: green-day ratio rose across the run"
	case delta < -0.1:
		return "degrading: green-day ratio fell across the run, consistent with accumulating carryover"
	default:
		return "stable: green-day ratio held across the run"
	}
}

func suggestions(r ScenarioReport, sc Scenario) []string {
	var out []string
	if r.FinalPct >= 35 {
		out = append(out, "end-of-run carryover is moderate or worse; add rest days or lower the dose")
	}
	if r.GreenRatio < 0.5 && r.DoseDays > 0 {
		out = append(out, fmt.Sprintf("green ratio %.0f%%; try spacing doses beyond the current cadence", r.GreenRatio*100))
	}
	if sc.RestAbovePct > 35 && r.Counts[string(domain.DayRed)] > 0 {
		out = append(out, "red days occurred; a lower rest-above threshold would have skipped those doses")
	}
	if len(out) == 0 {
		out = append(out, "schedule looks sustainable at this dose and cadence")
	}
	return out
}

func writeScenarioReports(dir string, r ScenarioReport) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	base := strings.ReplaceAll(strings.ToLower(r.Name), " ", "-")
	if err := os.WriteFile(filepath.Join(dir, base+".json"), payload, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+".md"), []byte(renderMarkdown(r)), 0o644)
}

func renderMarkdown(r ScenarioReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Scenario: %s\n\n", r.Name)
	fmt.Fprintf(&b, "%d days simulated, %d dosed, %d rested.\n\n", r.Days, r.DoseDays, r.RestDays)
	b.WriteString("| classification | days |\n|---|---|\n")
	for _, k := range []string{string(domain.DayGreen), string(domain.DayYellow), string(domain.DayRed), string(domain.DayUnclassified)} {
		if n := r.Counts[k]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", k, n)
		}
	}
	fmt.Fprintf(&b, "\nGreen ratio: %.0f%%. Final carryover: %.1f%%.\n\n", r.GreenRatio*100, r.FinalPct)
	fmt.Fprintf(&b, "Trend: %s\n\n## Suggested interventions\n\n", r.Trend)
	for _, s := range r.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n## Dose log\n\n| day | dosed | amount | carryover | tier | classification |\n|---|---|---|---|---|---|\n")
	for _, entry := range r.Log {
		dosed := "rest"
		amount := "-"
		class := "-"
		if entry.Dosed {
			dosed = "dose"
			amount = fmt.Sprintf("%.0f", entry.Amount)
			class = entry.Classification
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %.1f%% | %s | %s |\n",
			entry.Day, dosed, amount, entry.CarryoverPct, entry.CarryoverTier, class)
	}
	return b.String()
}

func writeSummary(dir string, reports []ScenarioReport) error {
	var b strings.Builder
	b.WriteString("# Simulation summary\n\n| scenario | days | dosed | green ratio | final carryover | trend |\n|---|---|---|---|---|---|\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "| %s | %d | %d | %.0f%% | %.1f%% | %s |\n",
			r.Name, r.Days, r.DoseDays, r.GreenRatio*100, r.FinalPct, r.Trend)
	}
	return os.WriteFile(filepath.Join(dir, "summary.md"), []byte(b.String()), 0o644)
}
