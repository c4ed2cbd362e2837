package types

// Job is the projection of a job document used to build interview prompts.
type Job struct {
	JobTitle               string           `json:"jobTitle"`
	JobDepartment          string           `json:"jobDepartment"`
	JobDescription         string           `json:"jobDescription"`
	JobLocation            string           `json:"jobLocation"`
	JobType                string           `json:"jobType"`
	RiskTolerance          string           `json:"riskTolerance"`
	RequiredSkills         []SkillLevel     `json:"requiredSkills"`
	PreferredSkills        []SkillLevel     `json:"preferredSkills"`
	RequiredCertifications []string         `json:"requiredCertifications"`
	RequiredEducation      []string         `json:"requiredEducation"`
	TechStack              *TechStack       `json:"techStack"`
	SuccessCriteria        *SuccessCriteria `json:"successCriteria"`
	CandidatePersona       string           `json:"candidatePersona"`
	RequiredQuestions      []string         `json:"requiredQuestions"`
	WorkEnvironment        *WorkEnvironment `json:"workEnvironment"`
}

// SkillLevel is a named skill with an expected proficiency
type SkillLevel struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

// TechStack details the technology used in the role
type TechStack struct {
	Stack        []StackEntry `json:"stack"`
	Architecture *string      `json:"architecture"`
	Scale        *string      `json:"scale"`
	Challenges   []string     `json:"challenges"`
	Practices    []string     `json:"practices"`
}

// StackEntry is one tool or technology in a tech stack.
// Every field may be absent in stored documents.
type StackEntry struct {
	Skill                *string  `json:"skill"`
	Level                *string  `json:"level"`
	RealWorldApplication *string  `json:"realWorldApplication"`
	RedFlags             []string `json:"redFlags"`
	Weight               *float64 `json:"weight"`
}

// SuccessCriteria groups short- and long-term success metrics
type SuccessCriteria struct {
	Immediate []Metric `json:"immediate"`
	LongTerm  []Metric `json:"longTerm"`
}

// Metric is a weighted success metric
type Metric struct {
	Metric      *string  `json:"metric"`
	Description *string  `json:"description"`
	Weight      *float64 `json:"weight"`
}

// JobFields lists the document keys read into Job.
var JobFields = []string{
	"jobTitle", "jobDepartment", "jobDescription", "jobLocation", "jobType",
	"riskTolerance", "requiredSkills", "preferredSkills", "requiredCertifications",
	"requiredEducation", "techStack", "successCriteria", "candidatePersona",
	"requiredQuestions", "workEnvironment",
}
