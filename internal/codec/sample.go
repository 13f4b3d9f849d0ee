package codec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"watchtorian/internal/models"
)

const (
	// FieldSeparator separates the six fields of an encoded sample.
	FieldSeparator = ";"

	sampleFields = 6
	unsetNumber  = "0"
)

// percentPattern decides whether the internet field holds the aggregate form.
var percentPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,2}$`)

// Decoded is a sample together with the machine sub-records that were dropped
// while decoding it.
type Decoded struct {
	Sample   models.TelemetrySample
	Rejected []Rejection
}

// EncodeSample renders s as a single log line without a trailing newline.
func EncodeSample(s models.TelemetrySample) (string, error) {
	machines := ""
	if s.IsRaw() {
		var err error
		if machines, err = encodeMachines(s.Machines); err != nil {
			return "", err
		}
	}
	return strings.Join([]string{
		FormatTime(s.When),
		formatNumber(s.CPULoad),
		formatNumber(s.CPUTemp),
		formatNumber(s.DiskUsagePercent),
		formatInternet(s.Internet),
		machines,
	}, FieldSeparator), nil
}

// DecodeSample parses one encoded sample line. Numeric and timestamp failures
// fail the line; bad machine sub-records only land in Decoded.Rejected.
func DecodeSample(line string) (Decoded, error) {
	parts := strings.Split(line, FieldSeparator)
	if len(parts) != sampleFields {
		return Decoded{}, formatErr(line, fmt.Sprintf("expected %d fields, got %d", sampleFields, len(parts)), nil)
	}

	when, err := ParseTime(parts[0])
	if err != nil {
		return Decoded{}, formatErr(line, "invalid timestamp", err)
	}
	var numbers [3]float64
	for i := range numbers {
		if numbers[i], err = parseNumber(parts[i+1]); err != nil {
			return Decoded{}, formatErr(line, fmt.Sprintf("invalid number in field %d", i+1), err)
		}
	}
	internet, err := parseInternet(parts[4])
	if err != nil {
		return Decoded{}, formatErr(line, "invalid internet percentage", err)
	}

	machines, rejected := DecodeMachines(parts[5])
	return Decoded{
		Sample: models.TelemetrySample{
			When:             when,
			CPULoad:          numbers[0],
			CPUTemp:          numbers[1],
			DiskUsagePercent: numbers[2],
			Internet:         internet,
			Machines:         machines,
		},
		Rejected: rejected,
	}, nil
}

func formatNumber(v float64) string {
	if models.IsUnset(v) || math.IsInf(v, 0) {
		return unsetNumber
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// parseNumber accepts any float. Non-finite values read as unset.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Unset(), nil
	}
	return v, nil
}

func formatInternet(i models.Internet) string {
	switch i.Kind() {
	case models.InternetOnline:
		return formatBool(i.Bool())
	case models.InternetUptime:
		return formatNumber(i.Percent())
	}
	return unsetNumber
}

func parseInternet(s string) (models.Internet, error) {
	if percentPattern.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Internet{}, err
		}
		return models.Uptime(v), nil
	}
	return models.Online(parseBool(s)), nil
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// parseBool maps the accepted truthy tokens to true and everything else to false.
func parseBool(s string) bool {
	switch s {
	case "1", "True", "true", "yes", "y":
		return true
	}
	return false
}
