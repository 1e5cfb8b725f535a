package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/config"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/httpapi"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/learner"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/optimizer"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/persistence"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/publish"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
)

var (
	configPath string
	logLevel   string
	whyQuestion string
)

// rootCmd is the base command for the adaptived CLI
var rootCmd = &cobra.Command{
	Use:   "adaptived",
	Short: "Adaptive signal weighting and causal analysis daemon",
	Long: `adaptived learns per-component signal weights from realized trade
outcomes and explains which market contexts make each signal work. It exports
effective weights to the composite scorer over HTTP and Redis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

// serveCmd runs the HTTP API until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	RunE:  runServe,
}

// recordCmd ingests trade outcomes from a JSONL file
var recordCmd = &cobra.Command{
	Use:   "record <trades.jsonl>",
	Short: "Record realized trade outcomes from a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

// updateCmd runs one guarded weight update
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run a guarded weight update and print the report",
	RunE:  runUpdate,
}

// weightsCmd prints the current effective weights
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print effective weights and multipliers",
	RunE:  runWeights,
}

// insightsCmd generates and prints the causal insight bundle
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate causal insights from recorded trades",
	RunE:  runInsights,
}

// whyCmd answers a causal question about one component
var whyCmd = &cobra.Command{
	Use:   "why <component>",
	Short: "Explain when a signal component works or fails",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhy,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	whyCmd.Flags().StringVar(&whyQuestion, "question", "", "Question to answer, e.g. \"why does it lose money\"")

	rootCmd.AddCommand(serveCmd, recordCmd, updateCmd, weightsCmd, insightsCmd, whyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging configures zerolog: console output on a TTY, JSON otherwise.
func setupLogging(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func loadOptimizer() (*config.Config, *optimizer.Optimizer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, optimizer.New(optimizer.DefaultOptions(cfg.DataDir)), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := httpapi.NewServer(cfg.HTTP, opt)

	var archive *persistence.Archive
	if cfg.Postgres.DSN != "" {
		archive, err = persistence.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer archive.Close()
		server.OnTradeRecorded = archive.ArchiveTrade
	}

	var pub *publish.Publisher
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pub = publish.NewPublisher(client, cfg.Redis.Key)
		if err := pub.Publish(ctx, publish.Snapshot{
			Multipliers:      opt.Multipliers(),
			EffectiveWeights: opt.EffectiveWeights(),
			UpdatedAt:        time.Now().UTC(),
		}); err != nil {
			log.Warn().Err(err).Msg("initial weights publish failed")
		}
	}

	server.OnWeightUpdate = func(ctx context.Context, report *learner.UpdateReport) error {
		if archive != nil {
			if err := archive.ArchiveUpdateReport(ctx, report); err != nil {
				log.Warn().Err(err).Msg("archive update report failed")
			}
		}
		if pub != nil {
			return pub.Publish(ctx, publish.Snapshot{
				Multipliers:      opt.Multipliers(),
				EffectiveWeights: opt.EffectiveWeights(),
				UpdatedAt:        time.Now().UTC(),
			})
		}
		return nil
	}

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	_, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open trades file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	recorded := 0
	for decoder.More() {
		var record trade.Record
		if err := decoder.Decode(&record); err != nil {
			return fmt.Errorf("decode trade record %d: %w", recorded+1, err)
		}
		opt.RecordTrade(&record)
		recorded++
	}

	if err := opt.Save(); err != nil {
		return err
	}
	log.Info().Int("recorded", recorded).Msg("trade outcomes ingested")
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	_, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	report, err := opt.UpdateWeights()
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runWeights(cmd *cobra.Command, args []string) error {
	_, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	effective := opt.EffectiveWeights()
	multipliers := opt.Multipliers()

	components := make([]string, 0, len(effective))
	for component := range effective {
		components = append(components, component)
	}
	sort.Strings(components)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tMULTIPLIER\tEFFECTIVE")
	for _, component := range components {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\n", component, multipliers[component], effective[component])
	}
	return w.Flush()
}

func runInsights(cmd *cobra.Command, args []string) error {
	_, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	bundle, err := opt.GenerateInsights()
	if err != nil {
		return err
	}
	return printJSON(bundle)
}

func runWhy(cmd *cobra.Command, args []string) error {
	_, opt, err := loadOptimizer()
	if err != nil {
		return err
	}

	answer := opt.AnswerWhy(args[0], whyQuestion)
	return printJSON(answer)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
