package deadline

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the format of date column values.
const DateLayout = "2006-01-02"

// ErrUnknownCriticality is returned for a label outside the severity set.
var ErrUnknownCriticality = errors.New("unknown criticality")

// Severity is a criticality level.
type Severity int

const (
	Critical Severity = iota + 1
	High
	Medium
	Low
)

// Severities lists every severity from most to least urgent.
var Severities = []Severity{Critical, High, Medium, Low}

var severityNames = map[Severity]string{
	Critical: "Critical",
	High:     "High",
	Medium:   "Medium",
	Low:      "Low",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "Severity(" + strconv.Itoa(int(s)) + ")"
}

// Board labels are Portuguese on the client boards; English names are
// accepted too. Keys are folded (lower case, no diacritics).
var severityLabels = map[string]Severity{
	"critica":  Critical,
	"critico":  Critical,
	"critical": Critical,
	"alta":     High,
	"alto":     High,
	"high":     High,
	"media":    Medium,
	"medio":    Medium,
	"medium":   Medium,
	"baixa":    Low,
	"baixo":    Low,
	"low":      Low,
}

// ParseSeverity resolves a status label such as "Crítica" or "High".
func ParseSeverity(label string) (Severity, error) {
	if s, ok := severityLabels[fold(label)]; ok {
		return s, nil
	}
	return 0, errors.Wrapf(ErrUnknownCriticality, "%q", label)
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// SLATable maps each severity to its allowed number of days.
type SLATable map[Severity]int

// Days returns the day count for a severity.
func (t SLATable) Days(s Severity) (int, bool) {
	d, ok := t[s]
	return d, ok
}

// ParseDays converts an SLA column text to a day count. Empty text counts as
// zero days; fractional values are rounded to the nearest day.
func ParseDays(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("SLA %q is not a number of days", text)
	}
	return int(math.Round(f)), nil
}

// Compute returns the calendar date days after now, in loc, as YYYY-MM-DD.
func Compute(now time.Time, loc *time.Location, days int) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).AddDate(0, 0, days).Format(DateLayout)
}
