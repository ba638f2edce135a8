package pharmacy

func intPtr(v int) *int { return &v }

// Seed builds the demo dataset: three patients, three stores, two
// distribution centers and a small order/shipment history. Each call
// returns an independent State.
func Seed() *State {
	s := NewState()

	s.Patients["PAT-BR-001"] = &Patient{
		PatientID:         "PAT-BR-001",
		CPF:               "12345678901",
		Name:              "Ana Silva",
		ChronicConditions: []string{"DIABETES_TIPO_1"},
		PreferredStoreID:  "LOJA-SP-001",
		Prescriptions: []Prescription{{
			PrescriptionID:   "RX-PAT-BR-001-INS-2025-01",
			SKU:              "MED-INSULINA",
			Name:             "Insulina 10 ml",
			Dosage:           "10 unidades 2 vezes ao dia",
			DaysOfSupply:     30,
			Refillable:       true,
			RefillsRemaining: 2,
			LastDispensedAt:  mustTimestamp("2025-01-05T10:00:00.000Z"),
		}},
	}
	s.Patients["PAT-BR-002"] = &Patient{
		PatientID:         "PAT-BR-002",
		CPF:               "98765432100",
		Name:              "Carlos Souza",
		ChronicConditions: []string{},
		PreferredStoreID:  "LOJA-RJ-001",
		Prescriptions: []Prescription{{
			PrescriptionID:   "RX-PAT-BR-002-ATB-2025-01",
			SKU:              "MED-ANTIBIOTICO",
			Name:             "Antibiótico 500 mg",
			Dosage:           "1 cápsula a cada 12 horas",
			DaysOfSupply:     7,
			Refillable:       false,
			RefillsRemaining: 0,
			LastDispensedAt:  mustTimestamp("2025-01-03T11:00:00.000Z"),
		}},
	}
	s.Patients["PAT-BR-003"] = &Patient{
		PatientID:         "PAT-BR-003",
		CPF:               "45678912355",
		Name:              "Mariana Oliveira",
		ChronicConditions: []string{"HIPERTENSAO"},
		PreferredStoreID:  "LOJA-MG-001",
		Prescriptions: []Prescription{
			{
				PrescriptionID:   "RX-PAT-BR-003-ANTI-2025-01",
				SKU:              "MED-ANTI-HIPERTENSAO",
				Name:             "Anti-hipertensivo 20 mg",
				Dosage:           "1 comprimido ao dia",
				DaysOfSupply:     30,
				Refillable:       true,
				RefillsRemaining: 1,
				LastDispensedAt:  mustTimestamp("2025-01-08T09:30:00.000Z"),
			},
			{
				PrescriptionID:   "RX-PAT-BR-003-ANALG-2025-01",
				SKU:              "MED-ANALGESICO",
				Name:             "Analgésico 750 mg",
				Dosage:           "1 comprimido se necessário (máx. 3x/dia)",
				DaysOfSupply:     10,
				Refillable:       false,
				RefillsRemaining: 0,
				LastDispensedAt:  mustTimestamp("2025-01-09T14:15:00.000Z"),
			},
		},
	}

	s.Stores["LOJA-SP-001"] = &Store{
		StoreID: "LOJA-SP-001",
		Name:    "Drogaria Centro SP",
		Region:  "SP",
		Items: map[string]*StockRecord{
			"MED-INSULINA":    {SKU: "MED-INSULINA", Name: "Insulina 10 ml", QuantityOnHand: 3, ReorderPoint: intPtr(2), ColdChain: true},
			"MED-ANTIBIOTICO": {SKU: "MED-ANTIBIOTICO", Name: "Antibiótico 500 mg", QuantityOnHand: 20, ReorderPoint: intPtr(10)},
			"MED-ANALGESICO":  {SKU: "MED-ANALGESICO", Name: "Analgésico 750 mg", QuantityOnHand: 50, ReorderPoint: intPtr(20)},
		},
	}
	s.Stores["LOJA-RJ-001"] = &Store{
		StoreID: "LOJA-RJ-001",
		Name:    "Drogaria Zona Sul RJ",
		Region:  "RJ",
		Items: map[string]*StockRecord{
			"MED-INSULINA":    {SKU: "MED-INSULINA", Name: "Insulina 10 ml", QuantityOnHand: 0, ReorderPoint: intPtr(3), ColdChain: true},
			"MED-ANTIBIOTICO": {SKU: "MED-ANTIBIOTICO", Name: "Antibiótico 500 mg", QuantityOnHand: 5, ReorderPoint: intPtr(10)},
		},
	}
	s.Stores["LOJA-MG-001"] = &Store{
		StoreID: "LOJA-MG-001",
		Name:    "Drogaria Savassi BH",
		Region:  "MG",
		Items: map[string]*StockRecord{
			"MED-ANTI-HIPERTENSAO": {SKU: "MED-ANTI-HIPERTENSAO", Name: "Anti-hipertensivo 20 mg", QuantityOnHand: 8, ReorderPoint: intPtr(5)},
			"MED-ANALGESICO":       {SKU: "MED-ANALGESICO", Name: "Analgésico 750 mg", QuantityOnHand: 10, ReorderPoint: intPtr(20)},
		},
	}

	s.DCs["CD-SP-01"] = &DistributionCenter{
		DCID:   "CD-SP-01",
		Name:   "Centro de Distribuição SP",
		Region: "SP",
		Items: map[string]*StockRecord{
			"MED-INSULINA":    {SKU: "MED-INSULINA", QuantityOnHand: 200, ColdChain: true},
			"MED-ANTIBIOTICO": {SKU: "MED-ANTIBIOTICO", QuantityOnHand: 1000},
			"MED-ANALGESICO":  {SKU: "MED-ANALGESICO", QuantityOnHand: 500},
		},
	}
	s.DCs["CD-RJ-01"] = &DistributionCenter{
		DCID:   "CD-RJ-01",
		Name:   "Centro de Distribuição RJ",
		Region: "RJ",
		Items: map[string]*StockRecord{
			"MED-INSULINA":    {SKU: "MED-INSULINA", QuantityOnHand: 80, ColdChain: true},
			"MED-ANTIBIOTICO": {SKU: "MED-ANTIBIOTICO", QuantityOnHand: 600},
		},
	}

	// Historical records keep their original ISO-style ids.
	completed := "ORD-LOJA-SP-001-MED-INSULINA-2025-01-10T10:00:00.000Z"
	s.Orders[completed] = &Order{
		OrderID:       completed,
		PatientID:     "PAT-BR-001",
		StoreID:       "LOJA-SP-001",
		SKU:           "MED-INSULINA",
		Quantity:      1,
		Channel:       "LOJA_FISICA",
		Status:        OrderCompleted,
		SLAHours:      SLAHours,
		ColdChain:     true,
		CreatedAt:     mustTimestamp("2025-01-10T10:00:00.000Z"),
		LastUpdatedAt: mustTimestamp("2025-01-10T15:00:00.000Z"),
	}
	inProgress := "ORD-LOJA-MG-001-MED-ANTI-HIPERTENSAO-2025-01-11T09:00:00.000Z"
	s.Orders[inProgress] = &Order{
		OrderID:       inProgress,
		PatientID:     "PAT-BR-003",
		StoreID:       "LOJA-MG-001",
		SKU:           "MED-ANTI-HIPERTENSAO",
		Quantity:      1,
		Channel:       "APP_MOBILE",
		Status:        OrderInProgress,
		SLAHours:      SLAHours,
		ColdChain:     false,
		CreatedAt:     mustTimestamp("2025-01-11T09:00:00.000Z"),
		LastUpdatedAt: mustTimestamp("2025-01-11T10:30:00.000Z"),
	}

	delivered := "SHP-" + completed + "-2025-01-10T12:00:00.000Z"
	s.Shipments[delivered] = &Shipment{
		ShipmentID:    delivered,
		OrderID:       completed,
		DCID:          "CD-SP-01",
		StoreID:       "LOJA-SP-001",
		Status:        ShipmentDelivered,
		ColdChain:     true,
		ETAHours:      4,
		CreatedAt:     mustTimestamp("2025-01-10T12:00:00.000Z"),
		LastUpdatedAt: mustTimestamp("2025-01-10T16:00:00.000Z"),
	}

	return s
}
