package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/interview"
)

var compilePromptCmd = &cobra.Command{
	Use:   "compile-prompt",
	Short: "Print the interviewer system instruction for an organization, job and candidate",
	Long: `Assemble the organization, job and candidate documents and print the system
instruction an interview would start with. Nothing is written to the store.`,
	RunE: runCompilePrompt,
}

var (
	compileOrgID       string
	compileJobID       string
	compileCandidateID string
)

func init() {
	compilePromptCmd.Flags().StringVar(&compileOrgID, "org", "", "Organization ID (required)")
	compilePromptCmd.Flags().StringVar(&compileJobID, "job", "", "Job ID (required)")
	compilePromptCmd.Flags().StringVar(&compileCandidateID, "candidate", "", "Candidate ID (required)")
	_ = compilePromptCmd.MarkFlagRequired("org")
	_ = compilePromptCmd.MarkFlagRequired("job")
	_ = compilePromptCmd.MarkFlagRequired("candidate")
	rootCmd.AddCommand(compilePromptCmd)
}

func runCompilePrompt(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openStore(cmd.Context()); err != nil {
		return err
	}
	return compilePrompt(cmd.Context(), a.store, compileOrgID, compileJobID, compileCandidateID, cmd.OutOrStdout())
}

// compilePrompt writes the system instruction for the given documents to w
func compilePrompt(ctx context.Context, store db.Store, orgID, jobID, candidateID string, w io.Writer) error {
	ic, err := interview.NewAssembler(store).Assemble(ctx, orgID, jobID, candidateID)
	if err != nil {
		return err
	}
	instruction, err := interview.CompileSystemInstruction(ic)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, instruction)
	return err
}
