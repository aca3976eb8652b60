package digest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/slack-go/slack"

	"inspectmetrics/internal/config"
	"inspectmetrics/internal/integrations/llm"
	slackbot "inspectmetrics/internal/integrations/slack"
)

var (
	autoClassifiedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inspectmetrics_auto_classified_percentage",
		Help: "Share of items auto-classified over the last digest window.",
	}, []string{"use_case"})

	accuracyGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inspectmetrics_accuracy_percentage",
		Help: "Accuracy of auto-classified items over the last digest window.",
	}, []string{"use_case"})

	digestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectmetrics_digest_runs_total",
		Help: "Digest runs by outcome.",
	}, []string{"outcome"})
)

// RecordGauges exports the digest's percentages. A use case without a
// percentage has its series removed rather than reported as zero.
func RecordGauges(d *Digest) {
	for _, s := range d.UseCases {
		setOrDelete(autoClassifiedGauge, s.UseCase.Name, s.AutoClassification.Percentage)
		setOrDelete(accuracyGauge, s.UseCase.Name, s.Accuracy.Percentage)
	}
}

func setOrDelete(g *prometheus.GaugeVec, label string, v *float64) {
	if v == nil {
		g.DeleteLabelValues(label)
		return
	}
	g.WithLabelValues(label).Set(*v)
}

func WriteDigestFile(content, outputDir string, date time.Time, prefix string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(prefix), date.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(s)
}

type Narrator interface {
	Narrate(ctx context.Context, digestMarkdown string) (string, llm.Usage, error)
}

// Runner builds and publishes one digest. Narrator and Slack are optional.
type Runner struct {
	Source   Source
	Config   config.Config
	Narrator Narrator
	Slack    *slack.Client
}

// Run builds the digest for now, adds the narrative, writes the Markdown
// file, posts to Slack and updates the gauges. A narrative or Slack failure
// is logged and does not fail the run.
func (r *Runner) Run(ctx context.Context, now time.Time) (string, error) {
	start := time.Now()
	d, err := Build(ctx, r.Source, r.Config, now)
	if err != nil {
		digestRuns.WithLabelValues("error").Inc()
		return "", fmt.Errorf("build digest: %w", err)
	}

	if r.Narrator != nil && len(d.UseCases) > 0 {
		narrative, usage, err := r.Narrator.Narrate(ctx, d.Markdown())
		if err != nil {
			log.Printf("digest narrative skipped: %v", err)
		} else {
			d.Narrative = narrative
			log.Printf("digest narrative tokens=%d", usage.TotalTokens())
		}
	}

	path, err := WriteDigestFile(d.Markdown(), r.Config.DigestOutputDir, now, "digest")
	if err != nil {
		digestRuns.WithLabelValues("error").Inc()
		return "", fmt.Errorf("write digest: %w", err)
	}
	RecordGauges(d)

	if r.Slack != nil && r.Config.DigestChannelID != "" {
		_, err := slackbot.PostDigest(r.Slack, r.Config.DigestChannelID, slackbot.DigestMessage{
			Title:     d.Title(),
			Narrative: d.Narrative,
			Lines:     d.Lines(),
			FilePath:  path,
		})
		if err != nil {
			log.Printf("digest slack post failed: %v", err)
		}
	}

	digestRuns.WithLabelValues("ok").Inc()
	log.Printf("digest done use_cases=%d file=%s elapsed=%s", len(d.UseCases), path, time.Since(start).Round(time.Millisecond))
	return path, nil
}
