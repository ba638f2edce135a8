package pharmacy

// LogEntry is a free-form event log record.
type LogEntry map[string]any

func (e LogEntry) clone() LogEntry {
	c := make(LogEntry, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// State holds everything the engine owns. Every request observes and
// mutates the same State through its Engine.
type State struct {
	Patients         map[string]*Patient
	Stores           map[string]*Store
	DCs              map[string]*DistributionCenter
	Orders           map[string]*Order
	Shipments        map[string]*Shipment
	ComplianceEvents []LogEntry
	TaxReports       []LogEntry
	ProcessorEvents  []LogEntry
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Patients:  map[string]*Patient{},
		Stores:    map[string]*Store{},
		DCs:       map[string]*DistributionCenter{},
		Orders:    map[string]*Order{},
		Shipments: map[string]*Shipment{},
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := NewState()
	for id, p := range s.Patients {
		cp := *p
		cp.ChronicConditions = append([]string{}, p.ChronicConditions...)
		cp.Prescriptions = append([]Prescription{}, p.Prescriptions...)
		c.Patients[id] = &cp
	}
	for id, st := range s.Stores {
		cs := *st
		cs.Items = cloneItems(st.Items)
		c.Stores[id] = &cs
	}
	for id, dc := range s.DCs {
		cd := *dc
		cd.Items = cloneItems(dc.Items)
		c.DCs[id] = &cd
	}
	for id, o := range s.Orders {
		co := *o
		c.Orders[id] = &co
	}
	for id, sh := range s.Shipments {
		csh := *sh
		c.Shipments[id] = &csh
	}
	c.ComplianceEvents = cloneLog(s.ComplianceEvents)
	c.TaxReports = cloneLog(s.TaxReports)
	c.ProcessorEvents = cloneLog(s.ProcessorEvents)
	return c
}

func cloneLog(entries []LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.clone())
	}
	return out
}

// Summary counts the records held in a State.
type Summary struct {
	Patients         int `json:"patients"`
	Stores           int `json:"stores"`
	DCs              int `json:"dcs"`
	Orders           int `json:"orders"`
	Shipments        int `json:"shipments"`
	ComplianceEvents int `json:"complianceEvents"`
	TaxReports       int `json:"taxReports"`
	ProcessorEvents  int `json:"processorEvents"`
}

// Summarize returns the record counts of s.
func (s *State) Summarize() Summary {
	return Summary{
		Patients:         len(s.Patients),
		Stores:           len(s.Stores),
		DCs:              len(s.DCs),
		Orders:           len(s.Orders),
		Shipments:        len(s.Shipments),
		ComplianceEvents: len(s.ComplianceEvents),
		TaxReports:       len(s.TaxReports),
		ProcessorEvents:  len(s.ProcessorEvents),
	}
}
