package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spigell/candidate-matcher/internal/documents"
	"github.com/spigell/candidate-matcher/internal/filtering"
	"github.com/spigell/candidate-matcher/internal/logger"
	"github.com/spigell/candidate-matcher/internal/ranking"
	"github.com/spigell/candidate-matcher/internal/report"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowReport          = "Show report"
	PromptReportByRecommend   = "Report by recommendation"
	PromptExportXLSX          = "Export to xlsx"
	PromptDumpToFile          = "Dump results to file"
	PromptAppendToExcludeFile = "Append shown candidates to exclude file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var rankCmd = &cobra.Command{
	Use:   "rank [files or directories...]",
	Short: "Rank candidate documents against a job description",
	Args:  cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) {
		viper.BindPFlag("analysis.enabled", cmd.Flags().Lookup("analyze"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		rank(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("jd", "", "job description text")
	rankCmd.Flags().String("jd-file", "", "file with the job description (txt, md or pdf)")
	rankCmd.Flags().String("csv-column", documents.DefaultCSVColumn, "csv column holding the resume text")
	rankCmd.Flags().String("csv-id-column", "", "csv column used as the candidate label")
	rankCmd.Flags().StringP("exclude-file", "e", "", "special file with candidates to exclude. Default is unset.")
	rankCmd.Flags().IntP("top-k", "k", filtering.DefaultTopK, "number of candidates to show, 0 shows all")
	rankCmd.Flags().Float64("minimum-score", 0, "hide candidates with a weighted score below this value")
	rankCmd.Flags().Int("concurrency", ranking.DefaultConcurrency, "parallel embedding requests")
	rankCmd.Flags().Bool("analyze", false, "ask the completion model for strengths, concerns and potential")
	rankCmd.Flags().BoolP("yes", "y", false, "do not ask for actions, print the report and exit")
	rankCmd.Flags().String("xlsx", "", "export the report to this xlsx file")
	rankCmd.Flags().Bool("append-excluded", false, "append shown candidates to the exclude file after the run")
	rankCmd.Flags().StringSlice("disable-filter", nil, "filters to skip: min_score, exclude_file, top_k")

	viper.BindPFlag("jd-file", rankCmd.Flags().Lookup("jd-file"))
	viper.BindPFlag("csv-column", rankCmd.Flags().Lookup("csv-column"))
	viper.BindPFlag("csv-id-column", rankCmd.Flags().Lookup("csv-id-column"))
	viper.BindPFlag("exclude-file", rankCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("top-k", rankCmd.Flags().Lookup("top-k"))
	viper.BindPFlag("minimum-score", rankCmd.Flags().Lookup("minimum-score"))
	viper.BindPFlag("concurrency", rankCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("disable-filters", rankCmd.Flags().Lookup("disable-filter"))
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command, paths []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()

	baseLogger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	logger := logger.WithRun(baseLogger, runID)

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the candidate-matcher", zap.String("version", buildVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	steps, err := filterSteps(config.DisableFilters)
	if err != nil {
		logger.Fatal("configuring filters", zap.Error(err))
	}

	jd, err := jobDescription(cmd, config)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	store, err := documents.NewLoader(config.CSVColumn, config.CSVIDColumn, logger).LoadPaths(paths...)
	if err != nil {
		logger.Fatal("loading documents", zap.Error(err))
	}

	embedder, analyzer, err := newAIBackends(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating ai clients", zap.Error(err))
	}

	opts := []ranking.Option{ranking.WithConcurrency(config.Concurrency), ranking.WithLogger(logger)}
	if analyzer != nil {
		opts = append(opts, ranking.WithAnalyzer(analyzer))
	}

	logger.Info("ranking documents", zap.Int("count", store.Len()), zap.Bool("analysis", analyzer != nil))

	result, err := ranking.Rank(ctx, jd, store.All(), config.Weights, embedder, opts...)
	if err != nil {
		if errors.Is(err, ranking.ErrBatchCancelled) {
			logger.Info("exiting", zap.String("reason", "ranking cancelled"))
			return
		}
		logger.Fatal("ranking failed", zap.Error(err))
	}

	filterCfg := &filtering.Config{
		MinimumScore: config.MinimumScore,
		ExcludeFile:  config.ExcludeFile,
		TopK:         config.TopK,
	}

	shown, err := filtering.Run(ctx, filterCfg, filtering.Deps{Logger: logger}, steps, result)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	logger.Debug("filters", zap.Any("steps", filtering.Describe(steps)))

	rep := report.New(runID, jd, config.Weights, result, shown)

	if len(result.Ranked) == 0 {
		rep.Log(logger)
		logger.Info("exiting", zap.String("reason", "no documents could be ranked"))
		return
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		if err := autoActions(cmd, logger, config, rep); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	prompt := promptui.Select{
		Label: "Choose an action",
		Items: promptItems(config),
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, config, rep); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func promptItems(config *Config) []string {
	items := []string{PromptShowReport, PromptReportByRecommend, PromptExportXLSX, PromptDumpToFile}
	if strings.TrimSpace(config.ExcludeFile) != "" {
		items = append(items, PromptAppendToExcludeFile)
	}
	return append(items, PromptExit)
}

func handleAction(action string, logger *zap.Logger, config *Config, rep *report.Report) error {
	switch action {
	case PromptShowReport:
		rep.Log(logger)
		return nil
	case PromptReportByRecommend:
		pretty, _ := json.MarshalIndent(rep.ByRecommendation(), "", "  ")
		logger.Info(string(pretty), zap.Int("candidates count", len(rep.Shown)))
		return nil
	case PromptExportXLSX:
		path, err := (&promptui.Prompt{Label: "xlsx file", Default: "candidates-" + rep.RunID[:8] + ".xlsx"}).Run()
		if err != nil {
			return err
		}
		return exportXLSX(logger, rep, path)
	case PromptDumpToFile:
		filename, err := rep.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendExcluded(logger, config.ExcludeFile, rep)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func autoActions(cmd *cobra.Command, logger *zap.Logger, config *Config, rep *report.Report) error {
	rep.Log(logger)

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		if err := exportXLSX(logger, rep, path); err != nil {
			return err
		}
	}

	if appendExcl, _ := cmd.Flags().GetBool("append-excluded"); appendExcl {
		if strings.TrimSpace(config.ExcludeFile) == "" {
			return errors.New("--append-excluded requires an exclude file")
		}
		return appendExcluded(logger, config.ExcludeFile, rep)
	}

	return nil
}

func exportXLSX(logger *zap.Logger, rep *report.Report, path string) error {
	saved, err := rep.ToXLSX(path)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	logger.Info("exported report", zap.String("filename", saved))
	return nil
}

func appendExcluded(logger *zap.Logger, path string, rep *report.Report) error {
	added, err := filtering.AppendToFile(path, rep.Shown, rep.RunID)
	if err != nil {
		return err
	}
	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("added", added))
	return nil
}

// filterSteps returns the default pipeline with the named filters disabled.
func filterSteps(disabled []string) ([]filtering.Filter, error) {
	steps := filtering.Default()
	for _, name := range disabled {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !filtering.DisableByName(steps, name, "disabled by configuration") {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}
	return steps, nil
}

// jobDescription takes the job description from --jd or from the jd-file setting.
func jobDescription(cmd *cobra.Command, config *Config) (ranking.JobDescription, error) {
	inline, _ := cmd.Flags().GetString("jd")
	inline = strings.TrimSpace(inline)
	file := strings.TrimSpace(config.JDFile)

	switch {
	case inline != "" && file != "":
		return ranking.JobDescription{}, errors.New("use either --jd or --jd-file, not both")
	case inline != "":
		return ranking.JobDescription{Text: inline}, nil
	case file != "":
		text, err := documents.ReadText(file)
		if err != nil {
			return ranking.JobDescription{}, err
		}
		return ranking.JobDescription{Text: strings.TrimSpace(text)}, nil
	default:
		return ranking.JobDescription{}, errors.New("job description is required (--jd or --jd-file)")
	}
}
