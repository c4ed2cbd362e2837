// Package interview implements the hiring interview flow: assembling the
// org/job/candidate context, compiling the interviewer system instruction,
// driving chat turns and compiling the final report.
package interview

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/types"
)

var tracer = otel.Tracer("github.com/jonathan/jobchat/internal/interview")

// Context is the minimal projection of the three documents an interview is built from
type Context struct {
	OrgID       string
	JobID       string
	CandidateID string

	Organization types.Organization
	Job          types.Job
	Candidate    types.Candidate
}

// Assembler reads interview contexts from the document store
type Assembler struct {
	store db.Store
}

// NewAssembler creates an Assembler over store
func NewAssembler(store db.Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble fetches the org, job and candidate projections concurrently.
// A missing document yields *NotFoundError naming it.
func (a *Assembler) Assemble(ctx context.Context, orgID, jobID, candidateID string) (*Context, error) {
	ctx, span := tracer.Start(ctx, "interview.Assemble", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("job_id", jobID),
		attribute.String("candidate_id", candidateID),
	))
	defer span.End()

	ic := &Context{OrgID: orgID, JobID: jobID, CandidateID: candidateID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.get(gctx, db.CollectionOrgs, orgID, &ic.Organization, types.OrganizationFields)
	})
	g.Go(func() error {
		return a.get(gctx, db.CollectionJobs, jobID, &ic.Job, types.JobFields)
	})
	g.Go(func() error {
		return a.get(gctx, db.CollectionCandidates, candidateID, &ic.Candidate, types.CandidateFields)
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return ic, nil
}

func (a *Assembler) get(ctx context.Context, collection, id string, dst any, fields []string) error {
	if err := a.store.Get(ctx, collection, id, dst, fields...); err != nil {
		return storeError(err, collection, id)
	}
	return nil
}
