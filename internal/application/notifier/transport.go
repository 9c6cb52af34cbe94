package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rezkam/growmaster/internal/domain"
)

// Transport delivers a notification to the user. Implementations must be
// safe for use from the notifier's single worker goroutine.
type Transport interface {
	// Show displays the notification for the given on-screen duration.
	Show(ctx context.Context, title, body string, duration time.Duration) error
}

// displayDuration maps notification priority to on-screen time.
func displayDuration(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityCritical:
		return 20 * time.Second
	case domain.PriorityHigh:
		return 15 * time.Second
	case domain.PriorityMedium:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

// LogTransport writes notifications to the structured log. Used as the
// fallback delivery path and in headless deployments.
type LogTransport struct{}

var _ Transport = LogTransport{}

func (LogTransport) Show(ctx context.Context, title, body string, duration time.Duration) error {
	slog.InfoContext(ctx, "notification",
		"title", title,
		"body", body,
		"display_duration", duration)
	return nil
}

// ExecTransport delivers desktop notifications through notify-send.
type ExecTransport struct {
	// Command overrides the binary name. Empty means notify-send.
	Command string
}

var _ Transport = ExecTransport{}

func (t ExecTransport) Show(ctx context.Context, title, body string, duration time.Duration) error {
	command := t.Command
	if command == "" {
		command = "notify-send"
	}

	cmd := exec.CommandContext(ctx, command,
		"--expire-time", fmt.Sprintf("%d", duration.Milliseconds()),
		"--app-name", "growmaster",
		title, body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", command, err, out)
	}
	return nil
}
