package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Alert levels.
const (
	AlertInfo     = "info"
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// Notifier is the operator notification channel: fire-and-forget,
// best-effort, failures are logged only.
type Notifier interface {
	Notify(level, title, message string, fields map[string]string)
}

var levelColors = map[string]int{
	AlertInfo:     0x3498db,
	AlertWarning:  0xf39c12,
	AlertCritical: 0xe74c3c,
}

var levelEmoji = map[string]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// AlertService posts to Discord and Slack webhooks. Either URL may be
// empty; every alert is also written to the log.
type AlertService struct {
	DiscordWebhook string
	SlackWebhook   string
	HTTPClient     *http.Client
}

func NewAlertService(discordWebhook, slackWebhook string) *AlertService {
	return &AlertService{
		DiscordWebhook: discordWebhook,
		SlackWebhook:   slackWebhook,
		HTTPClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *AlertService) Notify(level, title, message string, fields map[string]string) {
	zap.S().Infof("[Alert:%s] %s: %s %v", level, title, message, fields)

	go func() {
		okDiscord := s.sendDiscord(level, title, message, fields)
		okSlack := s.sendSlack(level, title, message, fields)
		if !okDiscord && !okSlack && (s.DiscordWebhook != "" || s.SlackWebhook != "") {
			zap.S().Errorf("[Alerts] all alert channels failed for: %s", title)
		}
	}()
}

func (s *AlertService) sendDiscord(level, title, message string, fields map[string]string) bool {
	if s.DiscordWebhook == "" {
		return false
	}

	type field struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	}
	var embedFields []field
	for k, v := range fields {
		embedFields = append(embedFields, field{Name: k, Value: v, Inline: true})
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{{
			"title":       fmt.Sprintf("%s %s", levelEmoji[level], title),
			"description": message,
			"color":       levelColors[level],
			"fields":      embedFields,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"footer":      map[string]string{"text": "OSINT Market Alert System"},
		}},
	}
	return s.post(s.DiscordWebhook, payload)
}

func (s *AlertService) sendSlack(level, title, message string, fields map[string]string) bool {
	if s.SlackWebhook == "" {
		return false
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]string{"type": "plain_text", "text": fmt.Sprintf("%s %s", levelEmoji[level], title)},
		},
		{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": message},
		},
	}
	if len(fields) > 0 {
		detail, _ := json.MarshalIndent(fields, "", "  ")
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": "```" + string(detail) + "```"},
		})
	}
	return s.post(s.SlackWebhook, map[string]interface{}{"blocks": blocks})
}

func (s *AlertService) post(url string, payload interface{}) bool {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	resp, err := s.HTTPClient.Post(url, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		zap.S().Errorf("[Alerts] webhook post failed: %v", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 300
}

// Convenience wrappers for the standing alert catalogue.

func alertPaymentFailed(n Notifier, bountyID, wallet, cause string, amount float64, token string) {
	n.Notify(AlertCritical, "Payment Failed",
		"Failed to send payout for bounty resolution. Hunter may be owed funds.",
		map[string]string{
			"bounty_id": bountyID,
			"wallet":    wallet,
			"amount":    fmt.Sprintf("%g %s", amount, token),
			"error":     cause,
			"action":    "Manual payout required",
		})
}

func alertRefundFailed(n Notifier, bountyID, wallet, cause string, amount float64, token string) {
	n.Notify(AlertCritical, "Refund Failed",
		"Failed to refund poster after bounty rejection/expiry.",
		map[string]string{
			"bounty_id": bountyID,
			"wallet":    wallet,
			"amount":    fmt.Sprintf("%g %s", amount, token),
			"error":     cause,
			"action":    "Manual refund required",
		})
}

func alertResolverFailed(n Notifier, bountyID, cause string) {
	n.Notify(AlertCritical, "Resolver Unavailable",
		"Judgment oracle failed after all retries. Submission needs manual review.",
		map[string]string{
			"bounty_id": bountyID,
			"error":     cause,
			"action":    "Manual review required",
		})
}

func alertDisputeOpened(n Notifier, bountyID, wallet, reason string) {
	if len(reason) > 200 {
		reason = reason[:200]
	}
	n.Notify(AlertWarning, "Dispute Opened",
		"Hunter has disputed a bounty resolution.",
		map[string]string{
			"bounty_id": bountyID,
			"wallet":    wallet,
			"reason":    reason,
		})
}

func alertLargeBounty(n Notifier, bountyID, wallet string, amount float64, token string) {
	n.Notify(AlertInfo, "Large Bounty Created",
		"A high-value bounty was created.",
		map[string]string{
			"bounty_id": bountyID,
			"wallet":    wallet,
			"amount":    fmt.Sprintf("%g %s", amount, token),
		})
}
