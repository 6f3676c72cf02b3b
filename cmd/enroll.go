package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/memory"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Register face descriptors in bulk from a file",
	Long: `Register face descriptors from a YAML or JSON file. Each record has the same
shape as the register-face request body:

  - userId: alice
    faceDescriptor: [0.012, -0.094, ...]

Records go through the same validation as the HTTP endpoint. Existing users are
overwritten. A durable store (DATABASE_DRIVER other than memory) is required
unless --dry-run is given.

Examples:
  # Validate a file without writing anything
  face-auth enroll --file users.yaml --dry-run

  # Import
  face-auth enroll --file users.json`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("file", "", "YAML or JSON file with {userId, faceDescriptor} records")
	enrollCmd.Flags().Bool("dry-run", false, "Validate records without storing them")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
	_ = enrollCmd.MarkFlagRequired("file")
}

// EnrollRecord is a single entry of an enrollment file.
type EnrollRecord struct {
	UserID         string    `json:"userId" yaml:"userId"`
	FaceDescriptor []float64 `json:"faceDescriptor" yaml:"faceDescriptor"`
}

// EnrollFailure describes a record that could not be registered.
type EnrollFailure struct {
	Index  int    `json:"index"`
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// EnrollResult represents the result of an enroll operation
type EnrollResult struct {
	Success       bool            `json:"success"`
	Total         int             `json:"total"`
	Registered    int             `json:"registered"`
	Failed        int             `json:"failed"`
	Failures      []EnrollFailure `json:"failures,omitempty"`
	DryRun        bool            `json:"dry_run"`
	DurationMs    int64           `json:"duration_ms"`
	DurationHuman string          `json:"duration_human,omitempty"`
}

// readEnrollFile parses an enrollment file; .json files are decoded as JSON,
// everything else as YAML.
func readEnrollFile(path string) ([]EnrollRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is given by the operator
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []EnrollRecord
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &records)
	} else {
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	path := mustGetString(cmd, "file")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !dryRun {
		if err := requireDurableStore(cfg); err != nil {
			return err
		}
	}

	records, err := readEnrollFile(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found in %s", path)
	}

	ctx := context.Background()
	startTime := time.Now()

	var store database.IdentityStore
	if dryRun {
		store = memory.New()
	} else {
		store, err = database.Open(ctx, &cfg.Database)
		if err != nil {
			return err
		}
	}
	defer store.Close()

	service := newService(cfg, store, nil, newObserver(cfg))
	result := EnrollResult{Total: len(records), DryRun: dryRun}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetDescription("Enrolling faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	for i, record := range records {
		if _, err := service.Register(ctx, record.UserID, record.FaceDescriptor); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, EnrollFailure{Index: i, UserID: record.UserID, Error: err.Error()})
		} else {
			result.Registered++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	elapsed := time.Since(startTime)
	result.Success = result.Failed == 0
	result.DurationMs = elapsed.Milliseconds()
	result.DurationHuman = elapsed.Round(time.Millisecond).String()

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println()
	if dryRun {
		fmt.Printf("Dry run: %d of %d records valid\n", result.Registered, result.Total)
	} else {
		fmt.Printf("Registered %d of %d faces in %s\n", result.Registered, result.Total, result.DurationHuman)
	}
	for _, f := range result.Failures {
		fmt.Printf("  record %d (%q): %s\n", f.Index, f.UserID, f.Error)
	}
	if !result.Success {
		return fmt.Errorf("%d records failed", result.Failed)
	}
	return nil
}
