package domain

import "time"

// ============================================================
// CRM customers
// ============================================================

// CustomerStatus classifies a CRM contact.
type CustomerStatus string

const (
	CustomerStatusAtivo     CustomerStatus = "ativo"
	CustomerStatusInativo   CustomerStatus = "inativo"
	CustomerStatusPotencial CustomerStatus = "potencial"
)

// CustomerStatuses lists every customer status in display order.
var CustomerStatuses = []CustomerStatus{CustomerStatusAtivo, CustomerStatusInativo, CustomerStatusPotencial}

// Valid reports whether s is a known customer status.
func (s CustomerStatus) Valid() bool {
	for _, v := range CustomerStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Customer is a sales contact managed by admins.
type Customer struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Company   *string        `json:"company,omitempty"`
	Address   *string        `json:"address,omitempty"`
	Status    CustomerStatus `json:"status"`
	Notes     *string        `json:"notes,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CustomerInput is the create/update body for a customer.
type CustomerInput struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Company *string        `json:"company,omitempty"`
	Address *string        `json:"address,omitempty"`
	Status  CustomerStatus `json:"status"`
	Notes   *string        `json:"notes,omitempty"`
}

// DashboardStats is the CRM dashboard aggregate.
type DashboardStats struct {
	TotalCustomers    int                          `json:"total_customers"`
	CustomersByStatus map[CustomerStatus]int       `json:"customers_by_status"`
	TotalDeals        int                          `json:"total_deals"`
	DealsByStatus     map[DealStatus]DealStageStat `json:"deals_by_status"`
	PipelineValue     float64                      `json:"pipeline_value"`
	TotalRevenue      float64                      `json:"total_revenue"`
}

// DealStageStat is the count and summed value of deals in one pipeline stage.
type DealStageStat struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}
