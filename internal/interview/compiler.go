package interview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/jobchat/internal/prompts"
	"github.com/jonathan/jobchat/internal/types"
)

// Interview limits baked into the system instruction
const (
	MaxInterviewQuestions = 8
	MaxQuestionWords      = 60
)

// CompileSystemInstruction renders the interviewer system instruction for an
// assembled context. It is a pure function of its input: the same context
// always yields the same string. Every optional field is defaulted first, so
// only a missing job title or company name, or a template placeholder with no
// value, makes it fail.
func CompileSystemInstruction(ic *Context) (string, error) {
	if ic == nil {
		return "", &PromptCompilationError{Message: "interview context is nil"}
	}
	if strings.TrimSpace(ic.Organization.CompanyName) == "" {
		return "", &PromptCompilationError{Message: fmt.Sprintf("organization %s has no companyName", ic.OrgID)}
	}
	if strings.TrimSpace(ic.Job.JobTitle) == "" {
		return "", &PromptCompilationError{Message: fmt.Sprintf("job %s has no jobTitle", ic.JobID)}
	}

	job := WithDefaults(ic.Job)
	candidateName := strings.TrimSpace(ic.Candidate.Name)
	if candidateName == "" {
		candidateName = "the candidate"
	}

	instruction, err := prompts.Render(prompts.InterviewFile, prompts.KeyInterviewSystem, map[string]string{
		"CompanyName":         strings.TrimSpace(ic.Organization.CompanyName),
		"CandidateName":       candidateName,
		"JobTitle":            strings.TrimSpace(job.JobTitle),
		"OrganizationProfile": RenderOrganization(ic.Organization),
		"JobProfile":          RenderJob(ic.Job),
		"CandidateResume":     orNA(ic.Candidate.ResumeText()),
		"RequiredQuestions":   renderNumbered(job.RequiredQuestions),
		"MaxQuestions":        strconv.Itoa(MaxInterviewQuestions),
		"MaxQuestionWords":    strconv.Itoa(MaxQuestionWords),
	})
	if err != nil {
		var unresolved *prompts.UnresolvedError
		if errors.As(err, &unresolved) {
			return "", &PromptCompilationError{Message: "template references fields with no value", Cause: err}
		}
		return "", &PromptCompilationError{Message: "failed to load interview template", Cause: err}
	}
	return instruction, nil
}

// RenderOrganization renders the organization block of the instruction
func RenderOrganization(org types.Organization) string {
	var sb strings.Builder
	line(&sb, "Company", org.CompanyName)
	line(&sb, "Industry", org.Industry)
	line(&sb, "Company size", org.CompanySize)
	line(&sb, "Location", org.Location)
	line(&sb, "Description", org.CompanyDescription)
	line(&sb, "Mission", org.MissionStatement)

	sb.WriteString("Company values:")
	if len(org.CompanyValues) == 0 {
		sb.WriteString(" " + NoneSpecified + "\n")
	} else {
		sb.WriteString("\n")
		for _, v := range org.CompanyValues {
			if v.Name == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s (weight: %s)\n", v.Name, orNA(v.Description), weight(v.Weight))
		}
	}

	sb.WriteString("Work environment:\n")
	renderWorkEnvironment(&sb, org.WorkEnvironment)
	return strings.TrimRight(sb.String(), "\n")
}

// RenderJob renders the role block of the instruction. Missing optional
// fields are defaulted first, so any partially filled job renders.
func RenderJob(job types.Job) string {
	job = WithDefaults(job)

	var sb strings.Builder
	line(&sb, "Title", job.JobTitle)
	line(&sb, "Department", job.JobDepartment)
	line(&sb, "Location", job.JobLocation)
	line(&sb, "Employment type", job.JobType)
	line(&sb, "Risk tolerance", job.RiskTolerance)
	line(&sb, "Description", job.JobDescription)

	list(&sb, "Required skills", skillLines(job.RequiredSkills))
	list(&sb, "Preferred skills", skillLines(job.PreferredSkills))
	list(&sb, "Required certifications", job.RequiredCertifications)
	list(&sb, "Required education", job.RequiredEducation)

	ts := job.TechStack
	stack := make([]string, 0, len(ts.Stack))
	for _, e := range ts.Stack {
		stack = append(stack, fmt.Sprintf("%s (level: %s, weight: %s)\n  Real-world application: %s\n  Red flags: %s",
			*e.Skill, *e.Level, weight(e.Weight), *e.RealWorldApplication, joinOrNone(e.RedFlags)))
	}
	list(&sb, "Tech stack", stack)
	line(&sb, "Architecture", *ts.Architecture)
	line(&sb, "Scale", *ts.Scale)
	list(&sb, "Technical challenges", ts.Challenges)
	list(&sb, "Development practices", ts.Practices)

	list(&sb, "Success criteria (immediate)", metricLines(job.SuccessCriteria.Immediate))
	list(&sb, "Success criteria (long term)", metricLines(job.SuccessCriteria.LongTerm))

	line(&sb, "Ideal candidate persona", job.CandidatePersona)
	sb.WriteString("Work environment:\n")
	renderWorkEnvironment(&sb, job.WorkEnvironment)
	return strings.TrimRight(sb.String(), "\n")
}

func renderWorkEnvironment(sb *strings.Builder, we *types.WorkEnvironment) {
	if we == nil {
		we = &types.WorkEnvironment{}
	}
	for _, kv := range [][2]string{
		{"Tech maturity", we.TechMaturity},
		{"Structure", we.Structure},
		{"Communication", we.Communication},
		{"Pace", we.Pace},
		{"Growth expectations", we.GrowthExpectations},
		{"Collaboration", we.Collaboration},
		{"Team size", we.TeamSize},
	} {
		fmt.Fprintf(sb, "  %s: %s\n", kv[0], orNA(kv[1]))
	}
}

func skillLines(skills []types.SkillLevel) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, fmt.Sprintf("%s (%s)", s.Skill, s.Level))
	}
	return out
}

func metricLines(metrics []types.Metric) []string {
	out := make([]string, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, fmt.Sprintf("%s: %s (weight: %s)", *m.Metric, *m.Description, weight(m.Weight)))
	}
	return out
}

func renderNumbered(items []string) string {
	if len(items) == 0 {
		return NoneSpecified + "."
	}
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(item))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func line(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "%s: %s\n", label, orNA(value))
}

func list(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s: %s\n", label, NoneSpecified)
		return
	}
	fmt.Fprintf(sb, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}

func weight(w *float64) string {
	if w == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(*w, 'f', -1, 64)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return NoneSpecified
	}
	return strings.Join(items, "; ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return strings.TrimSpace(s)
}
