package codec

import (
	"fmt"
	"strconv"
	"strings"

	"watchtorian/internal/models"
)

const (
	// MachineSeparator joins the five fields of a machine sub-record.
	MachineSeparator = "¤"
	// MachineListSeparator joins machine sub-records inside a sample.
	MachineListSeparator = ","

	machineFields = 5
)

// reserved characters may not appear inside machine fields.
const reserved = MachineSeparator + MachineListSeparator + FieldSeparator + "\r\n"

// Rejection is a machine sub-record dropped while decoding a sample.
type Rejection struct {
	Input string
	Err   error
}

// EncodeMachine renders m as "<name>¤<address>¤<port>¤<method>¤<result>".
func EncodeMachine(m models.MachineProbe) (string, error) {
	for _, field := range []string{m.Name, m.Address, m.Method} {
		if strings.ContainsAny(field, reserved) {
			return "", formatErr(field, "machine field contains a reserved character", nil)
		}
	}
	if m.Port < 0 || m.Port > models.MaxPort {
		return "", formatErr(strconv.Itoa(m.Port), "machine port out of range", nil)
	}
	return strings.Join([]string{
		m.Name,
		m.Address,
		strconv.Itoa(m.Port),
		m.Method,
		formatBool(m.Result),
	}, MachineSeparator), nil
}

// DecodeMachine parses a machine sub-record.
func DecodeMachine(text string) (models.MachineProbe, error) {
	parts := strings.Split(text, MachineSeparator)
	if len(parts) != machineFields {
		return models.MachineProbe{}, formatErr(text, fmt.Sprintf("expected %d machine fields, got %d", machineFields, len(parts)), nil)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.MachineProbe{}, formatErr(text, "invalid machine port", err)
	}
	if port < 0 || port > models.MaxPort {
		return models.MachineProbe{}, formatErr(text, "machine port out of range", nil)
	}
	return models.MachineProbe{
		Name:    parts[0],
		Address: parts[1],
		Port:    port,
		Method:  parts[3],
		Result:  parseBool(parts[4]),
	}, nil
}

// DecodeMachines decodes a comma-joined list of machine sub-records. Valid
// records are returned in order; every record that failed is reported as a
// Rejection instead of failing the whole list.
func DecodeMachines(field string) ([]models.MachineProbe, []Rejection) {
	if field == "" {
		return nil, nil
	}
	var (
		machines []models.MachineProbe
		rejected []Rejection
	)
	for _, text := range strings.Split(field, MachineListSeparator) {
		m, err := DecodeMachine(text)
		if err != nil {
			rejected = append(rejected, Rejection{Input: text, Err: err})
			continue
		}
		machines = append(machines, m)
	}
	return machines, rejected
}

func encodeMachines(machines []models.MachineProbe) (string, error) {
	if len(machines) == 0 {
		return "", nil
	}
	encoded := make([]string, 0, len(machines))
	for _, m := range machines {
		text, err := EncodeMachine(m)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, text)
	}
	return strings.Join(encoded, MachineListSeparator), nil
}
