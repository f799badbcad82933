package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/service"
	"github.com/Veraticus/artmap/internal/workflow"
	"github.com/schollz/progressbar/v3"
)

// ErrInputTerminated is returned when the operator's input stream ends mid-prompt.
var ErrInputTerminated = errors.New("input terminated")

// Reviewer is the approval workflow driven by the prompter.
type Reviewer interface {
	Next(ctx context.Context) (model.PendingMapping, error)
	Commit(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Override(ctx context.Context, description, articleNumber string) (workflow.Decision, error)
	Reject(ctx context.Context, description string) (int, error)
	Release(ctx context.Context, id int64) error
	Stats() service.ReviewStats
}

type choice string

const (
	choiceApprove choice = "a"
	choiceReject  choice = "r"
	choiceManual  choice = "m"
	choiceSkip    choice = "s"
	choiceQuit    choice = "q"
)

var reviewChoices = []choice{choiceApprove, choiceReject, choiceManual, choiceSkip, choiceQuit}

// ReviewPrompter walks an operator through the unmapped queue on a terminal.
type ReviewPrompter struct {
	reviewer    Reviewer
	reader      *NonBlockingReader
	writer      io.Writer
	progressBar *progressbar.ProgressBar
	logger      *slog.Logger
	skipped     []int64
}

// NewReviewPrompter creates a prompter that reads decisions from reader and
// renders to writer.
func NewReviewPrompter(reviewer Reviewer, reader io.Reader, writer io.Writer) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &ReviewPrompter{
		reviewer: reviewer,
		reader:   NewNonBlockingReader(reader),
		writer:   writer,
		logger:   slog.Default(),
	}
}

// Run reviews queue entries until the queue is exhausted, the operator quits
// or ctx is canceled. Skipped entries stay claimed for the session so the
// loop moves on, and are handed back to the queue when Run returns.
func (p *ReviewPrompter) Run(ctx context.Context) (service.ReviewStats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return p.finish(), err
		}

		pending, err := p.reviewer.Next(ctx)
		if errors.Is(err, common.ErrNotFound) {
			p.println(FormatSuccess("No more unmapped components."))
			return p.finish(), nil
		}
		if err != nil {
			return p.finish(), err
		}

		p.initProgressBar(pending.Remaining)

		quit, err := p.review(ctx, pending)
		if err != nil {
			p.skipped = append(p.skipped, pending.Entry.ID)
			return p.finish(), err
		}
		if quit {
			return p.finish(), nil
		}
		p.updateProgress()
	}
}

func (p *ReviewPrompter) review(ctx context.Context, pending model.PendingMapping) (bool, error) {
	p.println(RenderBox("Unmapped Component", formatPending(pending)))
	p.println(FormatPrompt("Options:"))
	p.println(fmt.Sprintf("  [A] Approve %s", SuccessStyle.Render(pending.Prediction.ArticleNumber)))
	p.println("  [R] Reject (drop from queue)")
	p.println("  [M] Enter article number manually")
	p.println("  [S] Skip for now")
	p.println("  [Q] Quit")
	p.println("")

	description := pending.Entry.Description
	for {
		c, err := p.promptChoice(ctx, "Choice")
		if err != nil {
			return false, err
		}

		switch c {
		case choiceApprove:
			d, err := p.reviewer.Commit(ctx, description, pending.Prediction.ArticleNumber)
			if err != nil {
				return false, err
			}
			p.println(FormatSuccess(fmt.Sprintf("Mapped to %s (%d queue entries cleared)", d.Mapping.ArticleNumber, d.Removed)))
			return false, nil
		case choiceReject:
			removed, err := p.reviewer.Reject(ctx, description)
			if err != nil {
				return false, err
			}
			p.println(FormatWarning(fmt.Sprintf("Rejected (%d queue entries cleared)", removed)))
			return false, nil
		case choiceManual:
			value, err := p.promptLine(ctx, "Article number (blank to use the proposal)")
			if err != nil {
				return false, err
			}
			d, err := p.reviewer.Override(ctx, description, value)
			if err != nil {
				return false, err
			}
			p.println(FormatSuccess(fmt.Sprintf("Mapped to %s (%s)", d.Mapping.ArticleNumber, d.Mapping.Source)))
			return false, nil
		case choiceSkip:
			p.skipped = append(p.skipped, pending.Entry.ID)
			p.println(SubtleStyle.Render("Skipped"))
			return false, nil
		case choiceQuit:
			p.skipped = append(p.skipped, pending.Entry.ID)
			return true, nil
		}
	}
}

func formatPending(pending model.PendingMapping) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Component:"), pending.Entry.Description)
	if pending.Entry.ContextID != "" {
		fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Serial:"), pending.Entry.ContextID)
	}
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Proposal:"), SuccessStyle.Render(pending.Prediction.ArticleNumber))
	fmt.Fprintf(&b, "%s %s", BoldStyle.Render("Stage:"), stageLabel(pending.Prediction))
	fmt.Fprintf(&b, "\n%s %d", BoldStyle.Render("Remaining:"), pending.Remaining)
	return b.String()
}

func stageLabel(prediction model.Prediction) string {
	switch prediction.Stage {
	case model.StageSynthesized:
		return WarningStyle.Render("new identifier")
	case model.StagePrimary, model.StageFallback:
		return InfoStyle.Render(fmt.Sprintf("%s (%.0f%%)", strings.ToLower(string(prediction.Stage)), prediction.Confidence*100))
	default:
		return string(prediction.Stage)
	}
}

func (p *ReviewPrompter) promptChoice(ctx context.Context, prompt string) (choice, error) {
	for {
		input, err := p.promptLine(ctx, prompt)
		if err != nil {
			return "", err
		}

		c := choice(strings.ToLower(input))
		for _, valid := range reviewChoices {
			if c == valid {
				return c, nil
			}
		}

		p.println(FormatError("Invalid choice. Please try again."))
	}
}

func (p *ReviewPrompter) promptLine(ctx context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := p.reader.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", ErrInputTerminated
	}
	if errors.Is(err, ErrInputCancelled) {
		return "", context.Canceled
	}
	return line, err
}

func (p *ReviewPrompter) initProgressBar(total int) {
	if p.progressBar != nil || total <= 0 {
		return
	}
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing queue...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *ReviewPrompter) updateProgress() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Add(1); err != nil {
		p.logger.Warn("Failed to update progress bar", "error", err)
	}
	p.println("")
}

func (p *ReviewPrompter) releaseSkipped() {
	// The session context may already be canceled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range p.skipped {
		if err := p.reviewer.Release(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
			p.logger.Warn("Failed to release skipped entry", "id", id, "error", err)
		}
	}
	p.skipped = nil
}

func (p *ReviewPrompter) finish() service.ReviewStats {
	p.releaseSkipped()
	if p.progressBar != nil {
		if err := p.progressBar.Exit(); err != nil {
			p.logger.Warn("Failed to close progress bar", "error", err)
		}
		p.println("")
	}
	return p.reviewer.Stats()
}

// ShowSummary renders a session summary box.
func (p *ReviewPrompter) ShowSummary(stats service.ReviewStats) {
	summary := fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Decisions: %d\n", stats.Total()) +
		fmt.Sprintf("  • Approved: %d\n", stats.Approved) +
		fmt.Sprintf("  • Entered manually: %d\n", stats.Overridden) +
		fmt.Sprintf("  • Rejected: %d\n", stats.Rejected) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s", stats.Duration.Round(time.Second))

	p.println(RenderBox("Review Complete", summary))
}

func (p *ReviewPrompter) println(line string) {
	if _, err := fmt.Fprintln(p.writer, line); err != nil {
		p.logger.Warn("Failed to write output", "error", err)
	}
}
