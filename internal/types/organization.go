// Package types provides type definitions for the documents and messages exchanged by the hiring backend.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Organization is the projection of an organization document used to build interview prompts.
// Only the fields referenced by the prompt templates are decoded.
type Organization struct {
	CompanyName        string           `json:"companyName"`
	CompanyDescription string           `json:"companyDescription"`
	CompanySize        string           `json:"companySize"`
	Industry           string           `json:"industry"`
	Location           string           `json:"location"`
	MissionStatement   string           `json:"missionStatement"`
	CompanyValues      []CompanyValue   `json:"companyValues"`
	WorkEnvironment    *WorkEnvironment `json:"workEnvironment"`
}

// CompanyValue is one core value of an organization
type CompanyValue struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Weight      *float64 `json:"weight"`
}

// WorkEnvironment describes team dynamics; shared by organizations and jobs.
type WorkEnvironment struct {
	TechMaturity       string `json:"techMaturity"`
	Structure          string `json:"structure"`
	Communication      string `json:"communication"`
	Pace               string `json:"pace"`
	GrowthExpectations string `json:"growthExpectations"`
	Collaboration      string `json:"collaboration"`
	TeamSize           string `json:"teamSize"`
}

// OrganizationFields lists the document keys read into Organization.
var OrganizationFields = []string{
	"companyName", "companyDescription", "companySize", "industry",
	"location", "missionStatement", "companyValues", "workEnvironment",
}
