// Package report publishes run summaries to the configured channel.
package report

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adrata/buyergroup/internal/domain"
	"github.com/adrata/buyergroup/internal/ports"
)

// Telegram posts run summaries to a chat via bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Reporter = (*Telegram)(nil)

// NewTelegram registers bot token and chat identifier.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishSummary posts a Markdown digest of the run.
func (t *Telegram) PublishSummary(ctx context.Context, summary domain.RunSummary) error {
	if t.botToken == "" || t.chatID == "" || t.client == nil {
		return fmt.Errorf("telegram reporter misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", FormatSummary(summary))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatSummary renders the run summary as a Markdown digest.
func FormatSummary(summary domain.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Buyer group run %s*\n", summary.RunID)
	fmt.Fprintf(&b, "Companies: %d (%d failed)\n", summary.Companies, summary.CompaniesFailed)
	fmt.Fprintf(&b, "People: %d discovered, %d excluded\n", summary.PeopleDiscovered, summary.PeopleExcluded)
	fmt.Fprintf(&b, "Groups: %d assembled, %d empty\n", summary.GroupsAssembled, summary.EmptyGroups)
	fmt.Fprintf(&b, "Credits: %d total\n", summary.TotalCredits)

	for provider, credits := range summary.CreditsByProvider {
		fmt.Fprintf(&b, "  - %s: %d\n", provider, credits)
	}

	if summary.StoppedCostCeiling {
		b.WriteString("Run stopped at the cost ceiling\n")
	}
	for _, failure := range summary.Failures {
		fmt.Fprintf(&b, "Failed %s: %s\n", failure.Company, failure.Reason)
	}

	if !summary.FinishedAt.IsZero() && !summary.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))
	}

	return b.String()
}
