package cube

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gear6io/lattice/pkg/errors"
)

// UpdatePeriod is the granularity at which a fact storage receives data or a
// dimension storage is snapshotted. Each period owns the text layout used for
// partition values at that granularity, so a timestamp formatted by one period
// can only be parsed back by the same period.
type UpdatePeriod int

const (
	UpdatePeriodUnknown UpdatePeriod = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Quarterly
	Yearly
)

var periodNames = map[UpdatePeriod]string{
	Minutely:  "MINUTELY",
	Hourly:    "HOURLY",
	Daily:     "DAILY",
	Weekly:    "WEEKLY",
	Monthly:   "MONTHLY",
	Quarterly: "QUARTERLY",
	Yearly:    "YEARLY",
}

// Layouts for the periods that map onto reference-time layouts directly.
// Weekly and quarterly have no representable layout and use custom codecs.
var periodLayouts = map[UpdatePeriod]string{
	Minutely: "2006-01-02-15-04",
	Hourly:   "2006-01-02-15",
	Daily:    "2006-01-02",
	Monthly:  "2006-01",
	Yearly:   "2006",
}

func (p UpdatePeriod) String() string {
	if name, ok := periodNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseUpdatePeriod resolves a period name case-insensitively.
func ParseUpdatePeriod(name string) (UpdatePeriod, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for period, periodName := range periodNames {
		if periodName == upper {
			return period, nil
		}
	}
	return UpdatePeriodUnknown, errors.New(ErrInvalidUpdatePeriod, "unknown update period", nil).AddContext("period", name)
}

// AllUpdatePeriods returns every defined period ordered from finest to coarsest.
func AllUpdatePeriods() []UpdatePeriod {
	return []UpdatePeriod{Minutely, Hourly, Daily, Weekly, Monthly, Quarterly, Yearly}
}

// MarshalJSON encodes the period as its name.
func (p UpdatePeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a period from its name. "UNKNOWN" and the empty
// string decode to the zero period, matching what MarshalJSON emits for it.
func (p *UpdatePeriod) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if name == "" || strings.EqualFold(name, "UNKNOWN") {
		*p = UpdatePeriodUnknown
		return nil
	}
	parsed, err := ParseUpdatePeriod(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Format renders t as a partition value at this period's granularity. The
// rendered value identifies the containing bucket, so sub-bucket precision is
// dropped.
func (p UpdatePeriod) Format(t time.Time) string {
	switch p {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Quarterly:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
	default:
		if layout, ok := periodLayouts[p]; ok {
			return t.Format(layout)
		}
		return t.Format(time.RFC3339)
	}
}

// Parse reads a partition value produced by Format back into the start of its
// bucket in UTC.
func (p UpdatePeriod) Parse(value string) (time.Time, error) {
	switch p {
	case Weekly:
		return parseISOWeek(value)
	case Quarterly:
		return parseQuarter(value)
	default:
		layout, ok := periodLayouts[p]
		if !ok {
			return time.Time{}, errors.New(ErrInvalidTimestamp, "update period has no timestamp layout", nil).AddContext("period", p.String())
		}
		t, err := time.Parse(layout, value)
		if err != nil {
			return time.Time{}, errors.New(ErrInvalidTimestamp, "failed to parse partition timestamp", err).
				AddContext("period", p.String()).
				AddContext("value", value)
		}
		return t, nil
	}
}

// Truncate rounds t down to the start of its bucket by a format and parse
// round trip, keeping comparisons at this granularity stable regardless of
// the caller's sub-bucket precision or zone.
func (p UpdatePeriod) Truncate(t time.Time) time.Time {
	truncated, err := p.Parse(p.Format(t))
	if err != nil {
		return t
	}
	return truncated
}

func parseISOWeek(value string) (time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(value, "%4d-W%2d", &year, &week); err != nil {
		return time.Time{}, errors.New(ErrInvalidTimestamp, "failed to parse weekly partition value", err).AddContext("value", value)
	}
	if week < 1 || week > 53 {
		return time.Time{}, errors.New(ErrInvalidTimestamp, "week number out of range", nil).AddContext("value", value)
	}
	// January 4 always falls in ISO week 1, so the Monday of that week
	// anchors the year.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	return monday.AddDate(0, 0, (week-1)*7), nil
}

func parseQuarter(value string) (time.Time, error) {
	var year, quarter int
	if _, err := fmt.Sscanf(value, "%4d-Q%1d", &year, &quarter); err != nil {
		return time.Time{}, errors.New(ErrInvalidTimestamp, "failed to parse quarterly partition value", err).AddContext("value", value)
	}
	if quarter < 1 || quarter > 4 {
		return time.Time{}, errors.New(ErrInvalidTimestamp, "quarter out of range", nil).AddContext("value", value)
	}
	return time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC), nil
}

// FormatUpdatePeriods encodes a period set as a comma separated property
// value, sorted finest first so the encoding is deterministic.
func FormatUpdatePeriods(periods []UpdatePeriod) string {
	sorted := make([]UpdatePeriod, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	names := make([]string, 0, len(sorted))
	for _, p := range sorted {
		names = append(names, p.String())
	}
	return strings.Join(names, ",")
}

// ParseUpdatePeriods decodes a comma separated period list property value.
func ParseUpdatePeriods(value string) ([]UpdatePeriod, error) {
	var periods []UpdatePeriod
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		period, err := ParseUpdatePeriod(part)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, nil
}
