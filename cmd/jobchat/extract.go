package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobchat/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract job or organization data from a text file and save it",
	Long: `Send free text to the model, validate the result against the job schema (with
--job) or the organization schema (without), and merge it into the stored
document. Use --in - to read from stdin.`,
	RunE: runExtract,
}

var (
	extractOrgID  string
	extractJobID  string
	extractInFile string
)

func init() {
	extractCmd.Flags().StringVar(&extractOrgID, "org", "", "Organization ID (required)")
	extractCmd.Flags().StringVar(&extractJobID, "job", "", "Job ID; extracts organization data when omitted")
	extractCmd.Flags().StringVarP(&extractInFile, "in", "i", "", "Path to the text file, or - for stdin (required)")
	_ = extractCmd.MarkFlagRequired("org")
	_ = extractCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(extractCmd)
}

// extractor is the part of the extraction service used by the command
type extractor interface {
	ExtractAndSaveJob(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error)
	ExtractAndSaveOrg(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	text, err := readInput(extractInFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openStore(cmd.Context()); err != nil {
		return err
	}
	if err := a.openClient(cmd.Context()); err != nil {
		return err
	}

	req := &types.ExtractRequest{OrgID: extractOrgID, JobID: extractJobID, TextInput: text}
	return extractAndPrint(cmd.Context(), a.extractionService(), req, cmd.OutOrStdout())
}

// extractAndPrint runs the extraction for req and writes the saved data as JSON
func extractAndPrint(ctx context.Context, ex extractor, req *types.ExtractRequest, w io.Writer) error {
	var (
		resp *types.ExtractResponse
		err  error
	)
	if req.JobID != "" {
		resp, err = ex.ExtractAndSaveJob(ctx, req)
	} else {
		resp, err = ex.ExtractAndSaveOrg(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.ExtractedData)
}

// readInput reads the whole input file, or stdin when path is "-"
func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
