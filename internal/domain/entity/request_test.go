package entity

import "testing"

func TestProcurementRequest_RecomputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		items    []RequestItem
		expected float64
	}{
		{
			name:     "no items",
			items:    nil,
			expected: 0,
		},
		{
			name: "single item",
			items: []RequestItem{
				{ItemName: "Microscope", Quantity: 2, ApproxAmount: 45000},
			},
			expected: 45000,
		},
		{
			name: "multiple items",
			items: []RequestItem{
				{ItemName: "Beakers", Quantity: 50, ApproxAmount: 3500},
				{ItemName: "Burner", Quantity: 10, ApproxAmount: 8000},
				{ItemName: "Reagents", Quantity: 5, ApproxAmount: 12500},
			},
			expected: 24000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ProcurementRequest{Items: tt.items}
			req.RecomputeTotal()
			if req.TotalAmount != tt.expected {
				t.Errorf("TotalAmount = %v, want %v", req.TotalAmount, tt.expected)
			}
		})
	}
}

func TestProcurementRequest_SetItems(t *testing.T) {
	req := &ProcurementRequest{
		Items:       []RequestItem{{ItemName: "Old", ApproxAmount: 100}},
		TotalAmount: 100,
	}

	req.SetItems([]RequestItem{
		{ItemName: "Projector", Quantity: 1, ApproxAmount: 30000},
		{ItemName: "Screen", Quantity: 1, ApproxAmount: 5000},
	})

	if len(req.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(req.Items))
	}
	if req.TotalAmount != 35000 {
		t.Errorf("TotalAmount = %v, want 35000", req.TotalAmount)
	}
}

func TestProcurementRequest_AddItem(t *testing.T) {
	req := &ProcurementRequest{}

	req.AddItem(RequestItem{ItemName: "Laptop", Quantity: 1, ApproxAmount: 60000})
	req.AddItem(RequestItem{ItemName: "Mouse", Quantity: 1, ApproxAmount: 800})

	if len(req.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(req.Items))
	}
	if req.TotalAmount != 60800 {
		t.Errorf("TotalAmount = %v, want 60800", req.TotalAmount)
	}
}
