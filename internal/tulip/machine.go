package tulip

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// AttributesReportPath is the machine telemetry endpoint.
const AttributesReportPath = "attributes/report"

// Machine reports attribute values for one machine.
type Machine struct {
	api Requester
	id  string
}

// NewMachine returns a handle for the machine with the given id.
func NewMachine(api Requester, id string) *Machine {
	return &Machine{api: api, id: id}
}

// ID returns the machine id.
func (m *Machine) ID() string { return m.id }

// AttributeReport is one entry of an attributes report.
type AttributeReport struct {
	MachineID   string `json:"machineId"`
	AttributeID string `json:"attributeId"`
	Value       Value  `json:"value"`
}

type attributesBody struct {
	Attributes []AttributeReport `json:"attributes"`
}

// SendEvent reports attribute id to value pairs in one request. Entries
// are sent sorted by attribute id.
func (m *Machine) SendEvent(ctx context.Context, attributes map[string]Value) error {
	body := attributesBody{Attributes: m.reports(attributes)}
	if err := m.api.RequestExpectNothing(ctx, http.MethodPost, AttributesReportPath, nil, body); err != nil {
		return fmt.Errorf("report attributes of machine %s: %w", m.id, err)
	}
	return nil
}

func (m *Machine) reports(attributes map[string]Value) []AttributeReport {
	ids := make([]string, 0, len(attributes))
	for id := range attributes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]AttributeReport, len(ids))
	for i, id := range ids {
		out[i] = AttributeReport{MachineID: m.id, AttributeID: id, Value: attributes[id]}
	}
	return out
}
