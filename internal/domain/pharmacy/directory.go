package pharmacy

import "context"

// PrescriptionView is a prescription with its refill eligibility computed
// at read time.
type PrescriptionView struct {
	Prescription
	RefillEligible bool `json:"refillEligible"`
}

// PatientProfile is the read model of a known patient.
type PatientProfile struct {
	PatientID           string             `json:"patientId"`
	CPF                 string             `json:"cpf"`
	Name                string             `json:"name"`
	ChronicConditions   []string           `json:"chronicConditions"`
	PreferredStoreID    string             `json:"preferredStoreId"`
	ActivePrescriptions []PrescriptionView `json:"activePrescriptions"`
}

// PatientProfile looks up a patient. The second result is false when the
// patient is unknown.
func (e *Engine) PatientProfile(ctx context.Context, patientID string) (*PatientProfile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Patients[patientID]
	if !ok {
		return nil, false
	}
	views := make([]PrescriptionView, 0, len(p.Prescriptions))
	for _, rx := range p.Prescriptions {
		views = append(views, PrescriptionView{Prescription: rx, RefillEligible: rx.RefillEligible()})
	}
	conditions := append([]string{}, p.ChronicConditions...)
	return &PatientProfile{
		PatientID:           p.PatientID,
		CPF:                 p.CPF,
		Name:                p.Name,
		ChronicConditions:   conditions,
		PreferredStoreID:    p.PreferredStoreID,
		ActivePrescriptions: views,
	}, true
}

// Inventory is a point-in-time copy of a location's stock.
type Inventory struct {
	LocationID string
	Items      map[string]StockRecord
}

// StoreInventory returns a copy of a store's stock.
func (e *Engine) StoreInventory(ctx context.Context, storeID string) (*Inventory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state.Stores[storeID]
	if !ok {
		return nil, notFoundf("store %s not found", storeID)
	}
	return &Inventory{LocationID: storeID, Items: copyItems(st.Items)}, nil
}

// StoreItem returns a copy of one SKU's stock at a store.
func (e *Engine) StoreItem(ctx context.Context, storeID, sku string) (*StockRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state.Stores[storeID]
	if !ok {
		return nil, notFoundf("store %s not found", storeID)
	}
	rec, ok := st.Items[sku]
	if !ok {
		return nil, notFoundf("sku %s not found in store %s", sku, storeID)
	}
	return rec.clone(), nil
}

// DCInventory returns a copy of a distribution center's stock.
func (e *Engine) DCInventory(ctx context.Context, dcID string) (*Inventory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dc, ok := e.state.DCs[dcID]
	if !ok {
		return nil, notFoundf("distribution center %s not found", dcID)
	}
	return &Inventory{LocationID: dcID, Items: copyItems(dc.Items)}, nil
}

// DCItem returns a copy of one SKU's stock at a distribution center.
func (e *Engine) DCItem(ctx context.Context, dcID, sku string) (*StockRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dc, ok := e.state.DCs[dcID]
	if !ok {
		return nil, notFoundf("distribution center %s not found", dcID)
	}
	rec, ok := dc.Items[sku]
	if !ok {
		return nil, notFoundf("sku %s not found in distribution center %s", sku, dcID)
	}
	return rec.clone(), nil
}

func copyItems(items map[string]*StockRecord) map[string]StockRecord {
	out := make(map[string]StockRecord, len(items))
	for sku, rec := range items {
		out[sku] = *rec.clone()
	}
	return out
}
