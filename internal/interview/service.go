package interview

import (
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/logger"
)

// Default sampling temperatures
const (
	DefaultInterviewTemperature float32 = 0.5
	DefaultReportTemperature    float32 = 0.2
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	InterviewTemperature float32
	ReportTemperature    float32
	InterviewTier        llm.ModelTier
	ReportTier           llm.ModelTier
	Logger               *zap.Logger
}

// Service runs application creation, interview turns and report generation
// against a document store and a completion service.
type Service struct {
	store     db.Store
	client    llm.Client
	assembler *Assembler
	log       *zap.Logger

	interviewTemperature float32
	reportTemperature    float32
	interviewTier        llm.ModelTier
	reportTier           llm.ModelTier

	compile func(*Context) (string, error)
	now     func() time.Time
}

// NewService wires a Service
func NewService(store db.Store, client llm.Client, opts Options) *Service {
	s := &Service{
		store:                store,
		client:               client,
		assembler:            NewAssembler(store),
		log:                  logger.OrNop(opts.Logger),
		interviewTemperature: opts.InterviewTemperature,
		reportTemperature:    opts.ReportTemperature,
		interviewTier:        opts.InterviewTier,
		reportTier:           opts.ReportTier,
		compile:              CompileSystemInstruction,
		now:                  func() time.Time { return time.Now().UTC() },
	}
	if s.interviewTemperature <= 0 {
		s.interviewTemperature = DefaultInterviewTemperature
	}
	if s.reportTemperature <= 0 {
		s.reportTemperature = DefaultReportTemperature
	}
	if s.interviewTier == "" {
		s.interviewTier = llm.TierStandard
	}
	if s.reportTier == "" {
		s.reportTier = llm.TierAdvanced
	}
	return s
}

// Assembler exposes the context assembler used by the service
func (s *Service) Assembler() *Assembler {
	return s.assembler
}
