package notifications

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
)

const (
	DefaultMailTitle   = "Motion detection"
	DefaultMailContent = "Detected motion on:"
)

type EmailNotificationSettings struct {
	Recipient   string
	Title       string
	Content     string // prefix put in front of every message
	MinInterval time.Duration
}

// EmailSettingsFromConfig maps the mail section, filling in default texts.
func EmailSettingsFromConfig(cfg config.MailConfig) EmailNotificationSettings {
	settings := EmailNotificationSettings{
		Recipient:   cfg.Account.ToAddress,
		Title:       cfg.MailTypes.MotionDetectionTitle,
		Content:     cfg.MailTypes.MotionDetectionContent,
		MinInterval: time.Duration(cfg.MinIntervalSeconds) * time.Second,
	}
	if settings.Title == "" {
		settings.Title = DefaultMailTitle
	}
	if settings.Content == "" {
		settings.Content = DefaultMailContent
	}
	return settings
}

// EmailNotifier mails one message per notification, but never more often
// than MinInterval. Suppressed notifications are not an error.
type EmailNotifier struct {
	settings EmailNotificationSettings
	sender   EmailSender
	logger   common.Logger
	now      func() time.Time

	mu               sync.Mutex
	lastNotification time.Time
}

func NewEmailNotifier(settings EmailNotificationSettings, sender EmailSender, logger common.Logger) *EmailNotifier {
	if logger == nil {
		logger = common.NopLogger
	}
	return &EmailNotifier{
		settings: settings,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, kind events.Kind, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if !n.lastNotification.IsZero() && now.Sub(n.lastNotification) < n.settings.MinInterval {
		n.logger.Info("Skipping notification due to rate limiting", "kind", string(kind))
		return nil
	}

	body := strings.TrimSpace(n.settings.Content + " " + message)

	n.logger.Info("Sending notification mail", "kind", string(kind), "recipient", n.settings.Recipient)
	if err := n.sender.SendEmail(n.settings.Recipient, n.settings.Title, body); err != nil {
		n.logger.Error("Failed to send notification mail", "error", err, "kind", string(kind))
		return err
	}

	n.lastNotification = now
	return nil
}
