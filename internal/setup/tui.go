// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/binstatement/config"
)

// DefaultPath file the wizard writes when no path is given.
const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers raw wizard input.
type answers struct {
	units             string
	startDate         string
	valuationInterval string
	sync              bool
	syncFills         bool
	speed             string
	dashboardAddr     string
	dashboardDomains  string
}

func defaultAnswers() answers {
	return answers{
		units:             "USDT",
		valuationInterval: "6h",
		sync:              true,
		speed:             "8",
	}
}

func header(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("BINSTATEMENT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the yaml config to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultPath
	}
	a := defaultAnswers()

	header("STEP 1: VALUATION")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Replay your Binance history into a valued statement.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Units of account").
				Description("Comma separated assets the portfolio is valued in (e.g. USDT,BTC)").
				Value(&a.units).
				Validate(validateUnits),
			huh.NewInput().
				Title("Valuation interval").
				Description("Maximum time between portfolio snapshots (e.g. 6h)").
				Value(&a.valuationInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Start month").
				Description("MM/YYYY, empty reports the whole history").
				Value(&a.startDate).
				Validate(func(s string) error {
					_, _, err := parseStartDate(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 2: BINANCE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Synchronize balances and transfers before each run?").
				Value(&a.sync),
			huh.NewConfirm().
				Title("Synchronize trade history of every symbol?").
				Description("Slow on first run, one request per listed symbol").
				Value(&a.syncFills),
			huh.NewInput().
				Title("Request speed").
				Description("0 (slowest) to 10 (no pause between requests)").
				Value(&a.speed).
				Validate(validateSpeed),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 3: DASHBOARD")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Statement stream address").
				Description("e.g. :8080, empty disables the server").
				Value(&a.dashboardAddr),
			huh.NewInput().
				Title("TLS domains").
				Description("Comma separated, empty serves plain HTTP").
				Value(&a.dashboardDomains),
		),
	).Run()
	if err != nil {
		return err
	}

	cfgTmp, err := a.config()
	if err != nil {
		return err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Units: %s\nInterval: %s\nStart: %s\nSync: %t (fills: %t)\nSpeed: %s\n",
		strings.Join(cfgTmp.UnitsOfAccount, ", "), a.valuationInterval, orAll(a.startDate), a.sync, a.syncFills, a.speed,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(path, cfgTmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nRun with --config %s", path, path)))
	return nil
}

func (a answers) config() (config.ConfigTmp, error) {
	month, year, err := parseStartDate(a.startDate)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	interval, err := time.ParseDuration(a.valuationInterval)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	speed, err := strconv.Atoi(strings.TrimSpace(a.speed))
	if err != nil {
		return config.ConfigTmp{}, err
	}
	sync, syncFills := a.sync, a.syncFills

	return config.ConfigTmp{
		UnitsOfAccount:    splitList(a.units),
		StartMonth:        month,
		StartYear:         year,
		ValuationInterval: interval,
		Sync:              &sync,
		SyncFills:         &syncFills,
		Speed:             &speed,
		DashboardAddr:     strings.TrimSpace(a.dashboardAddr),
		DashboardDomains:  splitList(a.dashboardDomains),
	}, nil
}

func writeConfig(path string, cfgTmp config.ConfigTmp) error {
	if err := cfgTmp.Config().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func parseStartDate(s string) (month, year int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	t, err := time.Parse("01/2006", s)
	if err != nil {
		return 0, 0, fmt.Errorf("must be MM/YYYY")
	}
	return int(t.Month()), t.Year(), nil
}

func validateUnits(s string) error {
	if len(splitList(s)) == 0 {
		return fmt.Errorf("at least one unit of account is required")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < time.Minute {
		return fmt.Errorf("must be at least 1m")
	}
	return nil
}

func validateSpeed(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n < 0 || n > 10 {
		return fmt.Errorf("must be between 0 and 10")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orAll(s string) string {
	if strings.TrimSpace(s) == "" {
		return "whole history"
	}
	return s
}
