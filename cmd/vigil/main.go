package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigilator/vigil/internal/backup"
	"github.com/vigilator/vigil/internal/encoding"
	"github.com/vigilator/vigil/internal/server"
	"github.com/vigilator/vigil/pkg/core"
	"github.com/vigilator/vigil/pkg/vigil"
)

var (
	dbPath      string
	configPath  string
	compression string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "CLI tool for recording model outputs in SQLite",
	Long:  `A command-line interface for storing and inspecting inference outputs (text, token ids, logits) in a SQLite database.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the output table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Output database initialized at %s (table %s)\n", cfg.Store.Path, cfg.Store.Table)
		return nil
	},
}

var storeCmd = &cobra.Command{
	Use:   "store <text>",
	Short: "Store one model output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idsStr, _ := cmd.Flags().GetString("token-ids")
		logitsStr, _ := cmd.Flags().GetString("logits")

		ids, err := parseTokenIDs(idsStr)
		if err != nil {
			return err
		}
		scores, err := parseScores(logitsStr)
		if err != nil {
			return err
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.StoreRecord(cmd.Context(), args[0], ids, scores)
		if err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}
		fmt.Println(rec.ID())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <value>",
	Short: "Fetch a record by one field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, _ := cmd.Flags().GetString("field")

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.FetchByField(cmd.Context(), field, args[0])
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(rec.JSON(), "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("UUID:      %s\n", rec.ID())
		fmt.Printf("Timestamp: %s\n", rec.Timestamp.Value)
		fmt.Printf("Text:      %s\n", rec.Text.Value)
		fmt.Printf("Tokens:    %d\n", len(rec.TokenIDs.Value))
		fmt.Printf("Logits:    %d\n", len(rec.Scores.Value))
		return nil
	},
}

var topkCmd = &cobra.Command{
	Use:   "topk <text>",
	Short: "Show the highest-scoring tokens of a stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("top-k")

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err := db.FetchByText(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}
		top, err := db.TopK(rec, k)
		if err != nil {
			return err
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(top, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for i, ts := range top {
			fmt.Printf("%d. token=%d score=%.6f\n", i+1, ts.TokenID, ts.Score)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Store().Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write every record as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		w := os.Stdout
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		stats, err := db.Store().Dump(cmd.Context(), w)
		if err != nil {
			return err
		}
		if w != os.Stdout {
			fmt.Printf("Dumped %d records to %s\n", stats.TotalRecords, out)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [path]",
	Short: "Snapshot the database to a file or to object storage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		upload, _ := cmd.Flags().GetBool("upload")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if upload {
			uploader, err := backup.NewUploader(backup.Target(cfg.Backup), newLogger(cfg))
			if err != nil {
				return err
			}
			key, err := backup.Snapshot(cmd.Context(), db.Store(), uploader)
			if err != nil {
				return fmt.Errorf("failed to upload snapshot: %w", err)
			}
			fmt.Printf("Snapshot uploaded to %s/%s\n", cfg.Backup.Bucket, key)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("backup path is required without --upload")
		}
		if err := db.Store().Backup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", args[0])
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve records and top-k queries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(db, newLogger(cfg), cfg.Server.DefaultTopK)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

func parseTokenIDs(str string) ([]uint32, error) {
	if strings.TrimSpace(str) == "" {
		return nil, nil
	}
	parts := strings.Split(str, ",")
	ids := make([]uint32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", part, err)
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
}

func parseScores(str string) ([]float32, error) {
	if strings.TrimSpace(str) == "" {
		return nil, nil
	}
	parts := strings.Split(str, ",")
	scores := make([]float32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid logit %q: %w", part, err)
		}
		scores = append(scores, float32(v))
	}
	return scores, nil
}

// loadConfig reads the config file and applies the global flags over it.
func loadConfig(cmd *cobra.Command) (vigil.Config, error) {
	base := vigil.DefaultConfig()
	base.Store.Path = dbPath

	cfg, err := vigil.LoadConfigOver(configPath, base)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if flags.Changed("compression") {
		cfg.Store.Compression = encoding.Compression(compression)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg vigil.Config) core.Logger {
	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = core.LevelInfo
	}
	return core.NewLogger(os.Stderr, level)
}

func openDB(ctx context.Context, cfg vigil.Config) (*vigil.DB, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("database path not specified")
	}
	db, err := vigil.Open(ctx, cfg.Store, vigil.WithLogger(newLogger(cfg)))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

func openFromFlags(cmd *cobra.Command) (*vigil.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openDB(cmd.Context(), cfg)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "outputs.db", "Database file path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: vigil.yaml or configs/vigil.yaml)")
	rootCmd.PersistentFlags().StringVar(&compression, "compression", "none", "Sequence column compression (none/lz4/zstd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	storeCmd.Flags().String("token-ids", "", "Token ids (comma-separated)")
	storeCmd.Flags().String("logits", "", "Logits (comma-separated)")

	getCmd.Flags().String("field", "text", "Field to match (uuid/timestamp/text)")
	getCmd.Flags().Bool("json", false, "Output as JSON")

	topkCmd.Flags().Int("top-k", 5, "Number of tokens")
	topkCmd.Flags().Bool("json", false, "Output as JSON")

	dumpCmd.Flags().StringP("output", "o", "-", "Output file (- for stdout)")

	backupCmd.Flags().Bool("upload", false, "Upload the snapshot to the configured bucket")

	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")

	ingestCmd.Flags().Int("workers", 4, "Concurrent writers")
	ingestCmd.Flags().Float64("rate", 0, "Maximum records per second (0 for unlimited)")

	rootCmd.AddCommand(
		initCmd,
		storeCmd,
		getCmd,
		topkCmd,
		countCmd,
		dumpCmd,
		ingestCmd,
		backupCmd,
		serveCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
