package storage

import "time"

type PackageScore struct {
	Name                    string    `json:"name"`
	VulnerabilityPercentage float64   `json:"vulnerability_percentage"`
	Typosquatting           int       `json:"typosquatting"`
	SupplyChain             int       `json:"supply_chain"`
	CodeInjection           int       `json:"code_injection"`
	CredentialHarvesting    int       `json:"credential_harvesting"`
	CheckedAt               time.Time `json:"checked_at"`
}
