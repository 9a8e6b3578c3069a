package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/builder"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/ledger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/publisher"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/validator"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/postgres"
)

const maxPrintedWarnings = 25

// setup loads the config (which applies KB_MIN_DOCS) and logs to stderr so
// stdout carries only the command's report.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fail(c, err)
	}
	slog.SetDefault(logger.New(c.App.ErrWriter, c.String("log-level"), "text"))
	c.App.Metadata = map[string]any{"config": cfg}
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return &config.Config{KB: config.KBConfig{Dir: ".", MinDocs: config.DefaultMinDocs}}
}

// options resolves the KB dir and gate: flag, then config/env, then default.
func options(c *cli.Context) (string, int) {
	cfg := loadedConfig(c)
	dir := cfg.KB.Dir
	if v := c.String("kb-dir"); v != "" {
		dir = v
	}
	minDocs := cfg.KB.MinDocs
	if c.IsSet("min-docs") {
		minDocs = c.Int("min-docs")
	}
	return dir, minDocs
}

func validateCommand(c *cli.Context) error {
	dir, minDocs := options(c)
	_, report, err := validate(c, dir, minDocs)
	if err != nil {
		return fail(c, err)
	}
	printReport(c.App.Writer, report)
	return nil
}

func buildCommand(c *cli.Context) error {
	dir, minDocs := options(c)
	corpus, report, err := validate(c, dir, minDocs)
	if err != nil {
		return fail(c, err)
	}
	printReport(c.App.Writer, report)

	res, err := builder.Build(corpus.Sources, corpus.Sections, builder.Options{MinDocs: minDocs})
	if err != nil {
		return fail(c, err)
	}
	out := c.String("out")
	if out == "" {
		out = filepath.Join(dir, corpus.Manifest.SearchIndexFile())
	}
	generatedAt := time.Now().UTC()
	idx := builder.NewSearchIndex(corpus.Manifest.KBVersion, generatedAt, res.Docs)
	if err := builder.WriteArtifact(out, idx); err != nil {
		return fail(c, err)
	}

	// Re-read what was written so a truncated or mangled artifact never ships.
	written, err := loader.LoadArtifact(out)
	if err != nil {
		return fail(c, fmt.Errorf("re-reading artifact: %w", err))
	}
	if err := builder.CheckGate(len(written.Docs), minDocs); err != nil {
		return fail(c, err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %d docs -> %s\n", len(written.Docs), out)

	if c.Bool("record") || c.Bool("notify") {
		if err := publish(c, corpus, dir, out, written); err != nil {
			return fail(c, err)
		}
	}
	return nil
}

func validate(c *cli.Context, dir string, minDocs int) (*kb.Corpus, *validator.Report, error) {
	raw, err := loader.LoadCorpus(c.Context, dir)
	if err != nil {
		return nil, nil, err
	}
	return validator.Validate(raw, minDocs)
}

func publish(c *cli.Context, corpus *kb.Corpus, dir, out string, idx *kb.SearchIndex) error {
	cfg := loadedConfig(c)
	var (
		recorder publisher.Recorder
		notifier publisher.Notifier
	)
	if c.Bool("record") {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to publication ledger: %w", err)
		}
		defer pg.Close()
		l := ledger.New(pg)
		if err := l.EnsureSchema(c.Context); err != nil {
			return err
		}
		recorder = l
	}
	if c.Bool("notify") {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.KBPublished)
		defer producer.Close()
		notifier = producer
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	res, err := publisher.New(recorder, notifier).Publish(c.Context, publisher.Request{
		KBVersion:     idx.KBVersion,
		EffectiveDate: corpus.Manifest.EffectiveDate,
		KBDir:         absDir,
		ArtifactPath:  out,
		Sources:       len(corpus.Sources),
		Docs:          len(idx.Docs),
		GeneratedAt:   idx.GeneratedAt,
	})
	if err != nil {
		return err
	}
	if res.Publication != nil {
		fmt.Fprintf(c.App.Writer, "recorded publication #%d (%s)\n", res.Publication.ID, res.Checksum)
	}
	if res.Notified {
		fmt.Fprintf(c.App.Writer, "notified searchers on %s\n", cfg.Kafka.Topics.KBPublished)
	}
	return nil
}

func printReport(w io.Writer, r *validator.Report) {
	fmt.Fprintf(w, "OK: sources=%d sections=%d (min=%d)\n", r.Sources, r.Sections, r.MinDocs)
	if len(r.Warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "Warnings (%d):\n", len(r.Warnings))
	for i, warning := range r.Warnings {
		if i == maxPrintedWarnings {
			fmt.Fprintf(w, "- ...and %d more\n", len(r.Warnings)-maxPrintedWarnings)
			break
		}
		fmt.Fprintf(w, "- %s\n", warning)
	}
}

// fail prints the FAIL line and returns an exit error with an empty message
// so urfave/cli does not print it a second time.
func fail(c *cli.Context, err error) error {
	fmt.Fprintf(c.App.ErrWriter, "FAIL: %v\n", err)
	return cli.Exit("", 1)
}
