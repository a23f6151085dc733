package scenario

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ID identifies one of the fixed screens of a shift.
type ID string

const (
	Dashboard ID = "DASHBOARD"
	PMS       ID = "PMS"
	Phone     ID = "PHONE"
	Tablet    ID = "TABLET"
	Folder    ID = "FOLDER"
	Handover  ID = "HANDOVER"
)

// All lists every scenario in display order.
var All = []ID{Dashboard, PMS, Phone, Tablet, Folder, Handover}

// Tasks lists the four scenarios the student writes analysis for, in report order.
var Tasks = []ID{PMS, Phone, Folder, Tablet}

// Info describes a scenario for clients.
type Info struct {
	ID      ID     `json:"id"`
	Title   string `json:"title"`
	Logbook string `json:"logbook_header"`
	Outcome string `json:"learning_outcome,omitempty"`
	Task    bool   `json:"task"`
}

var infos = map[ID]Info{
	Dashboard: {ID: Dashboard, Title: "Command Center", Logbook: "General Shift Notes"},
	PMS:       {ID: PMS, Title: "Property Management System", Logbook: "PMS Analysis: Efficiency & Flow", Outcome: "LO1/LO2", Task: true},
	Phone:     {ID: Phone, Title: "Guest Phone Call", Logbook: "Incident Log: Guest Interaction", Outcome: "LO5", Task: true},
	Tablet:    {ID: Tablet, Title: "Technology Tablet", Logbook: "Technology Assessment: Investment", Outcome: "LO4", Task: true},
	Folder:    {ID: Folder, Title: "Sustainability Folder", Logbook: "Sustainability Report: Circular Economy", Outcome: "LO3", Task: true},
	Handover:  {ID: Handover, Title: "Shift Handover", Logbook: "Shift Handover Log"},
}

// Parse converts a wire name (case-insensitive) into an ID.
func Parse(s string) (ID, error) {
	id := ID(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := infos[id]; !ok {
		return "", fmt.Errorf("unknown scenario %q", s)
	}
	return id, nil
}

// IsTask reports whether id is one of the four task scenarios.
func (id ID) IsTask() bool {
	return infos[id].Task
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	_, ok := infos[id]
	return ok
}

// Info returns the display metadata for id.
func (id ID) Info() Info {
	return infos[id]
}

// List returns metadata for every scenario in display order.
func List() []Info {
	return lo.Map(All, func(id ID, _ int) Info { return infos[id] })
}

// Logbook maps each scenario to the student's notes for it.
type Logbook map[ID]string

// NewLogbook returns a logbook with an empty entry for every scenario.
func NewLogbook() Logbook {
	lb := make(Logbook, len(All))
	for _, id := range All {
		lb[id] = ""
	}
	return lb
}

// Clone returns a copy that always carries an entry for every scenario.
// Unknown keys are dropped.
func (lb Logbook) Clone() Logbook {
	out := NewLogbook()
	for id, v := range lb {
		if id.Valid() {
			out[id] = v
		}
	}
	return out
}
