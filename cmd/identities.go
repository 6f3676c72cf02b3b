package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	Long: `List enrolled user IDs in enrollment order, with descriptor size and
registration times. Descriptors themselves are never printed.`,
	RunE: runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)

	identitiesCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentitySummary is the printable part of an identity.
type IdentitySummary struct {
	UserID       string    `json:"user_id"`
	EnrollmentID string    `json:"enrollment_id"`
	Dimension    int       `json:"dimension"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func summarize(identities []database.Identity) []IdentitySummary {
	out := make([]IdentitySummary, len(identities))
	for i := range identities {
		out[i] = IdentitySummary{
			UserID:       identities[i].UserID,
			EnrollmentID: identities[i].EnrollmentID,
			Dimension:    identities[i].Dim(),
			EnrolledAt:   identities[i].EnrolledAt,
			UpdatedAt:    identities[i].UpdatedAt,
		}
	}
	return out
}

func runIdentities(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireDurableStore(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	identities, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	summaries := summarize(identities)

	if jsonOutput {
		return outputJSON(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	fmt.Printf("%-32s  %-4s  %-20s  %-20s\n", "USER ID", "DIM", "ENROLLED", "UPDATED")
	for _, s := range summaries {
		fmt.Printf("%-32s  %-4d  %-20s  %-20s\n", s.UserID, s.Dimension,
			s.EnrolledAt.UTC().Format(time.DateTime), s.UpdatedAt.UTC().Format(time.DateTime))
	}
	fmt.Printf("\n%d identities\n", len(summaries))
	return nil
}
