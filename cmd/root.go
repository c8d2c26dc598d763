package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/store"
)

// Options holds shared configuration for the watch, enroll, find, and
// summary commands.
type Options struct {
	StorePath   string
	Camera      string
	LogDir      string
	SnapDir     string
	Threshold   float64
	Grace       int
	Reannounce  int
	Cooldown    int
	Model       string
	Annotate    string
	FPS         float64
	MaskUnknown bool
	MaskStyle   string
}

var (
	// DB is the optional Postgres event mirror shared by subcommands. It
	// stays nil when neither --db nor POSTGRES_HOST is configured; every
	// command then runs file-only.
	DB *store.Store
	// dbURL is the connection string
	dbURL string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "vigil",
	Short:   "Face-Recognition Security Camera",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// If no flag was provided, try to build the connection string from the environment
		if dbURL == "" {
			host := os.Getenv("POSTGRES_HOST")
			if host == "" {
				// No mirror configured; events go to CSV files only.
				return nil
			}
			user := os.Getenv("POSTGRES_USER")
			pass := os.Getenv("POSTGRES_PASSWORD")
			name := os.Getenv("POSTGRES_DB")
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
		}

		// Initialize DB connection
		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadEnvFile)
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the event mirror (optional)")
}

func loadEnvFile() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
