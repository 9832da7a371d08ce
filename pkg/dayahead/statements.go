package dayahead

import (
	"fmt"

	"github.com/sunstead/sunstead/pkg/types"
)

// FormatStatements renders a result as ordered declarative sentences:
// demand, forecast, the capability verdict, shift advice when the day is
// in deficit, critical coverage, then the surplus and deficit windows.
// It only formats; every judgement it reports was made by Compute.
func FormatStatements(res types.MatchingResult) []string {
	statements := []string{
		fmt.Sprintf("Planned demand for the day is %.1f kWh.", res.TotalDemandKWH),
		fmt.Sprintf("Expected solar generation is %.1f kWh.", res.TotalSolarKWH),
	}

	switch res.MarginType {
	case types.MarginSurplus:
		statements = append(statements,
			fmt.Sprintf("The system can support the planned loads with %.1f kWh to spare.", res.MarginKWH))
	case types.MarginTight:
		statements = append(statements,
			fmt.Sprintf("Solar and demand are closely matched; the margin is %+.2f kWh.", res.MarginKWH))
	case types.MarginDeficit:
		statements = append(statements,
			fmt.Sprintf("The system cannot support all planned loads; expect a shortfall of %.1f kWh.", -res.MarginKWH),
			"Shift flexible and deferrable loads into surplus windows, or avoid them for the day.")
	}

	if res.CriticalFullyProtected {
		statements = append(statements, "Critical loads are covered at every step of the day.")
	} else {
		statements = append(statements,
			fmt.Sprintf("Critical loads fall short in %d of %d steps; protect essentials first.",
				len(res.CriticalShortfallSteps), res.StepsPerDay))
	}

	if len(res.SurplusWindows) > 0 {
		statements = append(statements,
			fmt.Sprintf("Solar covers demand during %s.", formatWindowList(res.SurplusWindows, res.TimestepMinutes)))
	} else {
		statements = append(statements, "Solar never covers demand on its own; the battery carries every load.")
	}
	if len(res.DeficitWindows) > 0 {
		statements = append(statements,
			fmt.Sprintf("Demand exceeds solar during %s.", formatWindowList(res.DeficitWindows, res.TimestepMinutes)))
	}
	return statements
}
