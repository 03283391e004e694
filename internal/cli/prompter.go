package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shelfwise/shelfwise/internal/model"
)

// ReviewAction is what the user chose to do with a pending match.
type ReviewAction int

// Review actions.
const (
	ActionConfirm ReviewAction = iota
	ActionNewItem
	ActionSkip
	ActionNoMatch
	ActionSkipAll
)

// ReviewChoice is the outcome of prompting for one pending match.
type ReviewChoice struct {
	Action ReviewAction
	// Candidate is the chosen snapshot entry when Action is ActionConfirm.
	Candidate model.CandidateMatch
	// Name and Category are filled when Action is ActionNewItem.
	Name     string
	Category string
}

// Prompter drives the interactive pending-match review loop.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewPrompter creates a prompter with the given reader and writer. Nil
// arguments default to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Review presents one pending match and returns the user's decision.
// Position and total drive the "n of total" progress header.
func (p *Prompter) Review(ctx context.Context, match model.PendingMatch, position, total int) (ReviewChoice, error) {
	select {
	case <-ctx.Done():
		return ReviewChoice{}, ctx.Err()
	default:
	}

	content := p.formatLine(match)
	title := fmt.Sprintf("Receipt line %d of %d", position, total)
	if _, err := fmt.Fprintln(p.writer, RenderBox(title, content)); err != nil {
		return ReviewChoice{}, fmt.Errorf("failed to write match box: %w", err)
	}

	valid := []string{"n", "s", "m", "a"}
	if len(match.Candidates) == 0 {
		if _, err := fmt.Fprintln(p.writer, SubtleStyle.Render("  No catalog candidates for this line.")); err != nil {
			return ReviewChoice{}, fmt.Errorf("failed to write empty notice: %w", err)
		}
	}
	for i, candidate := range match.Candidates {
		if _, err := fmt.Fprintf(p.writer, "  [%d] %s\n", i+1, p.formatCandidate(candidate)); err != nil {
			return ReviewChoice{}, fmt.Errorf("failed to write candidate: %w", err)
		}
		valid = append(valid, strconv.Itoa(i+1))
	}

	options := []string{
		"  [N] New item",
		"  [S] Skip",
		"  [M] No match (never suggest this name)",
		"  [A] Skip all remaining",
	}
	if _, err := fmt.Fprintln(p.writer, strings.Join(options, "\n")); err != nil {
		return ReviewChoice{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return ReviewChoice{}, err
	}

	switch choice {
	case "n":
		name, category, err := p.promptNewItem(ctx, match.Line.Name)
		if err != nil {
			return ReviewChoice{}, err
		}
		return ReviewChoice{Action: ActionNewItem, Name: name, Category: category}, nil
	case "s":
		return ReviewChoice{Action: ActionSkip}, nil
	case "m":
		return ReviewChoice{Action: ActionNoMatch}, nil
	case "a":
		return ReviewChoice{Action: ActionSkipAll}, nil
	default:
		index, convErr := strconv.Atoi(choice)
		if convErr != nil || index < 1 || index > len(match.Candidates) {
			return ReviewChoice{}, fmt.Errorf("invalid candidate choice %q", choice)
		}
		return ReviewChoice{Action: ActionConfirm, Candidate: match.Candidates[index-1]}, nil
	}
}

func (p *Prompter) formatLine(match model.PendingMatch) string {
	var b strings.Builder
	b.WriteString(BoldStyle.Render(match.Line.Name))
	b.WriteString("\n")
	if match.Line.Quantity > 1 {
		fmt.Fprintf(&b, "Quantity: %.0f\n", match.Line.Quantity)
	}
	if match.Line.TotalPrice.IsPositive() {
		fmt.Fprintf(&b, "Price: £%s\n", match.Line.TotalPrice.StringFixed(2))
	}
	if match.Line.Confidence > 0 && match.Line.Confidence < 0.8 {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Low OCR confidence (%.0f%%)", match.Line.Confidence*100)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Prompter) formatCandidate(candidate model.CandidateMatch) string {
	labels := make([]string, 0, len(candidate.Reasons))
	for _, reason := range candidate.Reasons {
		labels = append(labels, reason.Label())
	}

	line := fmt.Sprintf("%s %s", BoldStyle.Render(candidate.TargetName), scoreStyle(candidate.Score).Render(fmt.Sprintf("(%d)", candidate.Score)))
	if candidate.TargetPrice != "" {
		line += SubtleStyle.Render(" £" + candidate.TargetPrice)
	}
	if len(labels) > 0 {
		line += SubtleStyle.Render(" — " + strings.Join(labels, ", "))
	}
	return line
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 75:
		return SuccessStyle
	case score >= 50:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

// promptNewItem collects the name and category for a "new item" resolution.
// Hitting enter keeps the raw receipt name.
func (p *Prompter) promptNewItem(ctx context.Context, defaultName string) (string, string, error) {
	prompt := fmt.Sprintf("Item name [%s]", defaultName)
	name, err := p.promptLine(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	if name == "" {
		name = defaultName
	}

	category, err := p.promptLine(ctx, "Category (optional)")
	if err != nil {
		return "", "", err
	}
	return name, category, nil
}

// ConfirmMerge asks the user to approve one dedup merge plan.
func (p *Prompter) ConfirmMerge(ctx context.Context, group model.DuplicateGroup, plan model.MergePlan) (bool, error) {
	var b strings.Builder
	for _, item := range group.Items {
		marker := "archive"
		style := SubtleStyle
		if item.ID == plan.KeepID {
			marker = "keep"
			style = SuccessStyle
		}
		fmt.Fprintf(&b, "%s %s (purchases: %d, source: %s)\n",
			style.Render("["+marker+"]"), item.Name, item.PurchaseCount, priceSourceLabel(item.PriceSource))
	}

	title := fmt.Sprintf("Merge %q", group.NormalizedName)
	if _, err := fmt.Fprintln(p.writer, RenderBox(title, strings.TrimRight(b.String(), "\n"))); err != nil {
		return false, fmt.Errorf("failed to write merge box: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Apply merge? [y/n]", []string{"y", "n"})
	if err != nil {
		return false, err
	}
	return choice == "y", nil
}

func priceSourceLabel(source model.PriceSource) string {
	if source == model.PriceSourceNone {
		return "none"
	}
	return string(source)
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, valid []string) (string, error) {
	for {
		answer, err := p.promptLine(ctx, prompt)
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(answer)
		for _, v := range valid {
			if answer == v {
				return answer, nil
			}
		}
		if _, err := fmt.Fprintln(p.writer, ErrorStyle.Render("Please choose one of: "+strings.Join(valid, ", "))); err != nil {
			return "", fmt.Errorf("failed to write retry notice: %w", err)
		}
	}
}

func (p *Prompter) promptLine(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
