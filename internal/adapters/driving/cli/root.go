// Package cli parses flags and wires the object graph for the
// semdocstore server binary using spf13/cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/semdocstore/internal/adapters/driven/annindex/hnsw"
	"github.com/custodia-labs/semdocstore/internal/adapters/driven/inference/transformer"
	"github.com/custodia-labs/semdocstore/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/semdocstore/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
	"github.com/custodia-labs/semdocstore/internal/core/services"
	"github.com/custodia-labs/semdocstore/internal/logger"
)

var (
	flagHost      string
	flagPort      int
	flagModel     string
	flagTokenizer string
	flagDatabase  string
	flagIndex     string
	flagNewDB     bool
	flagLevel     int
)

// rootCmd is the sole command this binary exposes: the system has one
// runtime mode, so there is no command tree.
var rootCmd = &cobra.Command{
	Use:   "semdocstore",
	Short: "A single-node semantic document store",
	Long: `semdocstore ingests free-text documents with optional metadata,
embeds them with a transformer encoder, and serves k-nearest-neighbor,
substring, and metadata search over HTTP.`,
	RunE:         runServe,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&flagHost, "host", "localhost", "host to bind")
	rootCmd.Flags().IntVar(&flagPort, "port", 8080, "port to bind")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "path to the transformer model (ONNX)")
	rootCmd.Flags().StringVar(&flagTokenizer, "tokenizer", "", "path to the serialized tokenizer JSON")
	rootCmd.Flags().StringVar(&flagDatabase, "database", "semdocstore.db", "path to the Document Store file")
	rootCmd.Flags().StringVar(&flagIndex, "index", "semdocstore.index", "path to the ANN Index file")
	rootCmd.Flags().BoolVar(&flagNewDB, "new-db", false, "delete database and index files at startup")
	rootCmd.Flags().IntVar(&flagLevel, "level", 1, "log verbosity: 1=warning, 2=info, 3=verbose")
}

// Execute runs the root command, returning a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyLogLevel(flagLevel); err != nil {
		return err
	}

	if flagModel == "" || flagTokenizer == "" {
		return fmt.Errorf("--model and --tokenizer are required")
	}

	if flagNewDB {
		if err := os.Remove(flagDatabase); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database file: %w", err)
		}
		if err := os.Remove(flagIndex); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing index file: %w", err)
		}
		if err := os.Remove(flagIndex + ".meta"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing index metadata file: %w", err)
		}
	}

	store, err := sqlite.NewStore(flagDatabase)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer store.Close()

	engine := transformer.New()

	newIndex := func(dimension int) driven.VectorIndex { return hnsw.New(dimension) }

	coordinator := services.NewCoordinator(store, engine, newIndex)
	if err := coordinator.Initialize(flagModel, flagTokenizer, flagIndex, false); err != nil {
		return fmt.Errorf("initializing coordinator: %w", err)
	}
	defer engine.Close()

	server := httpapi.New(coordinator)
	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)

	logger.Info("semdocstore listening on %s", addr)
	if err := server.ListenAndServe(addr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func applyLogLevel(level int) error {
	switch level {
	case 1:
		logger.SetLevel(logger.LevelWarn)
	case 2:
		logger.SetLevel(logger.LevelInfo)
	case 3:
		logger.SetLevel(logger.LevelVerbose)
	default:
		return fmt.Errorf("%w: invalid --level %d: must be 1, 2, or 3", domain.ErrConfig, level)
	}
	return nil
}
