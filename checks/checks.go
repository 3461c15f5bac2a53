package checks

import (
	"strings"

	"repo-scan/pypi"
)

// Result holds one flag per heuristic: 0 is clean, 1 is flagged.
type Result struct {
	Typosquatting        int `json:"typosquatting"`
	SupplyChain          int `json:"supply_chain"`
	CodeInjection        int `json:"code_injection"`
	CredentialHarvesting int `json:"credential_harvesting"`
}

const checkCount = 4

func (r Result) Flagged() int {
	return r.Typosquatting + r.SupplyChain + r.CodeInjection + r.CredentialHarvesting
}

// Percentage is the share of flagged checks, 0 to 100.
func (r Result) Percentage() float64 {
	return float64(r.Flagged()) / checkCount * 100
}

// Run scores a package. A nil pkg means it could not be found and flags
// every check.
func Run(pkg *pypi.Package) Result {
	return Result{
		Typosquatting:        Typosquatting(pkg),
		SupplyChain:          SupplyChain(pkg),
		CodeInjection:        CodeInjection(pkg),
		CredentialHarvesting: CredentialHarvesting(pkg),
	}
}

func Typosquatting(pkg *pypi.Package) int {
	if pkg == nil {
		return 1
	}
	return 0
}

// SupplyChain flags releases without any file carrying a sha256 digest.
func SupplyChain(pkg *pypi.Package) int {
	if pkg == nil {
		return 1
	}
	for _, f := range pkg.URLs {
		if f.Digests.SHA256 != "" && !f.Yanked {
			return 0
		}
	}
	return 1
}

func CodeInjection(pkg *pypi.Package) int {
	if pkg == nil {
		return 1
	}
	if strings.Contains(pkg.Info.Description, "exec(") || strings.Contains(pkg.Info.Description, "eval(") {
		return 1
	}
	return 0
}

func CredentialHarvesting(pkg *pypi.Package) int {
	if pkg == nil {
		return 1
	}
	metadata := strings.ToLower(pkg.Info.Summary + "\n" + pkg.Info.Description)
	if strings.TrimSpace(metadata) == "" {
		return 1
	}
	if strings.Contains(metadata, "username") && strings.Contains(metadata, "password") {
		return 1
	}
	return 0
}
