package anomaly

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/negolab/negosim/pkg/results"
	"github.com/rs/zerolog"
)

// annotationKey is the JSON key the pass adds to each result file. The
// negotiation content itself is never touched; re-running the pass simply
// replaces this one key.
const annotationKey = "anomalies"

// Annotator runs the offline classification pass over a results tree.
type Annotator struct {
	classifier *Classifier
	root       string
	backupDir  string
	logger     zerolog.Logger
}

// Stats summarizes one annotation pass.
type Stats struct {
	Total                int
	Annotated            int
	Errors               int
	Overpayments         int
	ConstraintViolations int
	Deadlocks            int
}

// NewAnnotator creates an annotation pass over root. When backupDir is
// non-empty, each file is copied there (preserving its relative path) before
// being rewritten.
func NewAnnotator(classifier *Classifier, root, backupDir string, logger zerolog.Logger) *Annotator {
	return &Annotator{
		classifier: classifier,
		root:       root,
		backupDir:  backupDir,
		logger:     logger,
	}
}

// Run annotates every result file under the root. Individual file failures
// are counted and logged, not fatal: one bad file never blocks the pass.
func (a *Annotator) Run() (*Stats, error) {
	stats := &Stats{}

	err := results.Walk(a.root, func(path string, rec results.Record) error {
		stats.Total++

		report := a.classifier.Classify(rec)

		if err := a.annotateFile(path, report); err != nil {
			stats.Errors++
			a.logger.Error().Err(err).Str("path", path).Msg("Failed to annotate result")
			return nil
		}

		stats.Annotated++
		if report.HasLabel(Overpayment) {
			stats.Overpayments++
		}
		if report.HasLabel(ConstraintViolation) {
			stats.ConstraintViolations++
		}
		if report.HasLabel(Deadlock) {
			stats.Deadlocks++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("annotation pass failed: %w", err)
	}

	a.logger.Info().
		Int("total", stats.Total).
		Int("annotated", stats.Annotated).
		Int("errors", stats.Errors).
		Msg("Annotation pass finished")

	return stats, nil
}

// annotateFile merges the report into the file under the annotation key,
// leaving every other key byte-for-byte intact in value terms.
func (a *Annotator) annotateFile(path string, report Report) error {
	if a.backupDir != "" {
		if err := a.backupFile(path); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read result file: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse result file: %w", err)
	}

	annotation, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation: %w", err)
	}
	doc[annotationKey] = annotation

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal annotated result: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write annotated result: %w", err)
	}
	return nil
}

func (a *Annotator) backupFile(path string) error {
	rel, err := filepath.Rel(a.root, path)
	if err != nil {
		return fmt.Errorf("failed to resolve backup path: %w", err)
	}

	dst := filepath.Join(a.backupDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source for backup: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to copy backup: %w", err)
	}
	return nil
}
