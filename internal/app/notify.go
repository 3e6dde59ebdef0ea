package app

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/sandeepkv93/dailyd/internal/model"
)

// Alert is a desktop notification.
type Alert struct {
	Title string
	Body  string
}

type DesktopNotifier interface {
	Send(Alert) error
}

type NoopDesktopNotifier struct{}

func (NoopDesktopNotifier) Send(Alert) error { return nil }

type ExecDesktopNotifier struct{}

func (ExecDesktopNotifier) Send(a Alert) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("notify-send", a.Title, a.Body).Run()
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(a.Body), escapeAppleScript(a.Title))
		return exec.Command("osascript", "-e", script).Run()
	default:
		return nil
	}
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// alertFor describes a fired notification, or reports false when the kind
// is not worth interrupting the user for.
func alertFor(n model.Notification, title func(id string) string) (Alert, bool) {
	switch n.Payload.Kind {
	case model.KindTaskCompletion:
		snap := n.Payload.Task
		body := "Completed."
		if snap.SubtractedDays != 0 {
			body = fmt.Sprintf("Completed, %d day(s) spent.", snap.SubtractedDays)
		}
		return Alert{Title: title(snap.ID), Body: body}, true
	case model.KindTaskCooldown:
		return Alert{Title: title(n.Payload.Task.ID), Body: "Available again."}, true
	case model.KindDailyTaskReset:
		return Alert{Title: "dailyd", Body: "Daily reset applied."}, true
	default:
		return Alert{}, false
	}
}
