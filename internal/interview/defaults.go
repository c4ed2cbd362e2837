package interview

import (
	"github.com/jonathan/jobchat/internal/types"
)

// Fallbacks applied to partially filled documents before rendering
const (
	DefaultSkillLevel           = "intermediate"
	DefaultRealWorldApplication = "General application in role"
	DefaultWeight               = 0.5
	NotSpecified                = "Not specified"
	NotAvailable                = "N/A"
	NoneSpecified               = "None specified"
)

// WithDefaults returns a copy of job in which every optional nested field the
// templates dereference is present. The input is not modified.
func WithDefaults(job types.Job) types.Job {
	out := job

	out.RequiredSkills = compactSkills(job.RequiredSkills)
	out.PreferredSkills = compactSkills(job.PreferredSkills)
	out.RequiredCertifications = compact(job.RequiredCertifications)
	out.RequiredEducation = compact(job.RequiredEducation)
	out.RequiredQuestions = compact(job.RequiredQuestions)

	ts := types.TechStack{}
	if job.TechStack != nil {
		ts = *job.TechStack
	}
	stack := make([]types.StackEntry, 0, len(ts.Stack))
	for _, entry := range ts.Stack {
		if stringOr(entry.Skill, "") == "" {
			continue
		}
		stack = append(stack, types.StackEntry{
			Skill:                entry.Skill,
			Level:                stringPtrOr(entry.Level, DefaultSkillLevel),
			RealWorldApplication: stringPtrOr(entry.RealWorldApplication, DefaultRealWorldApplication),
			RedFlags:             compact(entry.RedFlags),
			Weight:               floatPtrOr(entry.Weight, DefaultWeight),
		})
	}
	out.TechStack = &types.TechStack{
		Stack:        stack,
		Architecture: stringPtrOr(ts.Architecture, NotSpecified),
		Scale:        stringPtrOr(ts.Scale, NotSpecified),
		Challenges:   compact(ts.Challenges),
		Practices:    compact(ts.Practices),
	}

	sc := types.SuccessCriteria{}
	if job.SuccessCriteria != nil {
		sc = *job.SuccessCriteria
	}
	out.SuccessCriteria = &types.SuccessCriteria{
		Immediate: defaultMetrics(sc.Immediate),
		LongTerm:  defaultMetrics(sc.LongTerm),
	}

	if job.WorkEnvironment != nil {
		we := *job.WorkEnvironment
		out.WorkEnvironment = &we
	} else {
		out.WorkEnvironment = &types.WorkEnvironment{}
	}

	return out
}

func defaultMetrics(in []types.Metric) []types.Metric {
	out := make([]types.Metric, 0, len(in))
	for _, m := range in {
		if stringOr(m.Metric, "") == "" {
			continue
		}
		out = append(out, types.Metric{
			Metric:      m.Metric,
			Description: stringPtrOr(m.Description, NotAvailable),
			Weight:      m.Weight,
		})
	}
	return out
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func compactSkills(in []types.SkillLevel) []types.SkillLevel {
	out := make([]types.SkillLevel, 0, len(in))
	for _, s := range in {
		if s.Skill == "" {
			continue
		}
		if s.Level == "" {
			s.Level = DefaultSkillLevel
		}
		out = append(out, s)
	}
	return out
}

func stringOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}

func stringPtrOr(p *string, fallback string) *string {
	v := stringOr(p, fallback)
	return &v
}

func floatPtrOr(p *float64, fallback float64) *float64 {
	v := fallback
	if p != nil {
		v = *p
	}
	return &v
}
