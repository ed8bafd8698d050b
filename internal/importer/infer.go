package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numberPattern  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

const isoDateLayout = "2006-01-02"

// Infer converts one untyped cell into a normalized scalar: nil, bool, a
// number, or a string (ISO dates as YYYY-MM-DD). Every input maps to some
// output; the unmodified original is the ultimate fallback, so Infer never
// fails and is idempotent on already-normalized values.
func Infer(raw any) any {
	switch value := raw.(type) {
	case nil:
		return nil
	case bool:
		return value
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return value
	case time.Time:
		if value.IsZero() {
			return value.String()
		}
		return value.UTC().Format(isoDateLayout)
	case string:
		return inferString(value)
	default:
		return raw
	}
}

func inferString(raw string) any {
	trimmed := strings.TrimSpace(raw)

	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	case "", "null", "undefined":
		return nil
	}

	if numberPattern.MatchString(trimmed) {
		if number, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return number
		}
	}

	if isoDatePattern.MatchString(trimmed) {
		if parsed, err := time.Parse(isoDateLayout, trimmed); err == nil {
			return parsed.UTC().Format(isoDateLayout)
		}
	}

	if day, month, year, ok := parseSlashDate(trimmed); ok {
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(isoDateLayout)
	}

	return raw
}

// parseSlashDate disambiguates D/M/YYYY input by range-checking both
// interpretations: day-first wins, month-first is the fallback when the
// day-first reading is not a real calendar date.
func parseSlashDate(value string) (day, month, year int, ok bool) {
	match := dmyDatePattern.FindStringSubmatch(value)
	if match == nil {
		return 0, 0, 0, false
	}

	first, _ := strconv.Atoi(match[1])
	second, _ := strconv.Atoi(match[2])
	year, _ = strconv.Atoi(match[3])

	if validCalendarDate(first, second, year) {
		return first, second, year, true
	}
	if validCalendarDate(second, first, year) {
		return second, first, year, true
	}
	return 0, 0, 0, false
}

func validCalendarDate(day, month, year int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return date.Year() == year && date.Month() == time.Month(month) && date.Day() == day
}

// CleanNumber strips apostrophe-grouped thousands separators ("1'250.50")
// before numeric inference. Other strings pass through untouched.
func CleanNumber(value string) string {
	return strings.NewReplacer("'", "", "’", "").Replace(value)
}
