package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgen/internal/exam"
	"github.com/pavelanni/examgen/internal/handler"
	appI18n "github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/latex"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/render"
	"github.com/pavelanni/examgen/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgen",
		Short: "Multiple-choice exam variations and answer keys as LaTeX PDFs",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), regenerateCmd(), importCmd(), showConfigCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "examgen.db", "SQLite path or PostgreSQL connection URL")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addGeneratorFlags(f *pflag.FlagSet) {
	f.String("latex-bin", latex.DefaultBin, "LaTeX toolchain binary")
	f.Duration("latex-timeout", latex.DefaultTimeout, "Timeout for one toolchain run")
	f.Int("compile-workers", 2, "Maximum concurrent toolchain runs")
	f.Int("parallelism", 1, "Variations built at the same time")
	f.Uint64("seed", 0, "Random seed; a fixed seed reproduces question sets and option order (0 = fresh seed per run)")
	f.StringP("lang", "l", "en", "Document language (en, pt)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("questions", "q", nil, "Question bank JSON files to import on start (repeatable)")
	addStoreFlags(f)
	addGeneratorFlags(f)
	addLogFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate exam variations from a JSON request",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("request", "r", "", "Generation request JSON file (- for stdin)")
	f.StringP("output", "o", "exams.zip", "Output archive path (- for stdout)")
	addStoreFlags(f)
	addGeneratorFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func regenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Generate new variations from a stored exam config",
		RunE:  runRegenerate,
	}
	f := cmd.Flags()
	f.Int64("config-id", 0, "Exam config ID (required)")
	f.IntP("variations", "n", 1, "Number of variations")
	f.StringP("output", "o", "exams.zip", "Output archive path (- for stdout)")
	addStoreFlags(f)
	addGeneratorFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("config-id")

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import question bank JSON files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.StringSliceP("questions", "q", nil, "Question bank JSON files (repeatable)")
	addStoreFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("questions")

	return cmd
}

func showConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-config",
		Short: "Print a stored exam config and its exam count as JSON",
		RunE:  runShowConfig,
	}
	f := cmd.Flags()
	f.Int64("config-id", 0, "Exam config ID (required)")
	addStoreFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("config-id")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgen")
	v.AddConfigPath("/etc/examgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	db, err := store.New(ctx, store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newGenerator(v *viper.Viper, db *store.Store) *exam.Generator {
	compiler := latex.New(latex.Options{
		Bin:     v.GetString("latex-bin"),
		Timeout: v.GetDuration("latex-timeout"),
		Workers: v.GetInt("compile-workers"),
	})
	return exam.NewGenerator(db, compiler, render.New(), exam.Options{
		Parallelism: v.GetInt("parallelism"),
		Seed:        v.GetUint64("seed"),
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := loadQuestions(ctx, db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen := newGenerator(v, db)
	h := handler.New(db, gen)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", lang,
		"latex_bin", v.GetString("latex-bin"),
		"latex_timeout", v.GetDuration("latex-timeout"),
		"compile_workers", v.GetInt("compile-workers"),
		"parallelism", v.GetInt("parallelism"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := readInput(v.GetString("request"))
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req model.GenerationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	ctx, err := localizedContext(cmd.Context(), v)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := newGenerator(v, db).Generate(ctx, req)
	if err != nil {
		return err
	}
	return writeResult(v.GetString("output"), res)
}

func runRegenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, err := localizedContext(cmd.Context(), v)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := newGenerator(v, db).Regenerate(ctx, v.GetInt64("config-id"), v.GetInt("variations"))
	if err != nil {
		return err
	}
	return writeResult(v.GetString("output"), res)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	return loadQuestions(ctx, db, v.GetStringSlice("questions"))
}

func runShowConfig(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	id := v.GetInt64("config-id")
	view, err := db.ConfigView(ctx, id)
	if err != nil {
		return err
	}
	exams, err := db.ListExams(ctx, id)
	if err != nil {
		return err
	}

	out := struct {
		*model.ExamConfigView
		Exams int `json:"exams"`
	}{view, len(exams)}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func localizedContext(ctx context.Context, v *viper.Viper) (context.Context, error) {
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return appI18n.WithLang(ctx, lang), nil
}

func writeResult(path string, res *exam.Result) error {
	if err := writeOutput(path, res.Archive); err != nil {
		return err
	}
	slog.Info("wrote exam archive",
		"path", path,
		"config_id", res.ConfigID,
		"run_id", res.RunID,
		"produced", res.Produced,
		"failed", res.Failed,
		"bytes", len(res.Archive),
	)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// loadQuestions imports bank files, skipping any whose content was already
// imported under the same path.
func loadQuestions(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid duplicate questions",
				"path", path)
			continue
		}

		var bank model.BankImport
		if err := json.Unmarshal(data, &bank); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		count, err := db.ImportBank(ctx, bank)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "subject", bank.Subject, "count", count)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
