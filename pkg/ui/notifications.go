package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const notifyTimeout = 5 * time.Second

// NotificationSender shows one desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform tool to show a notification
type commandSender struct {
	name string
	args func(title, message string) []string
}

func (c commandSender) Send(title, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	return exec.CommandContext(ctx, c.name, c.args(title, message)...).Run()
}

// PlatformSender returns the notification sender for goos, or nil when the
// platform has none.
func PlatformSender(goos string) NotificationSender {
	switch goos {
	case "linux":
		return commandSender{name: "notify-send", args: func(t, m string) []string {
			return []string{"--app-name=pinscraper", t, m}
		}}
	case "darwin":
		return commandSender{name: "osascript", args: func(t, m string) []string {
			return []string{"-e", fmt.Sprintf(`display notification %s with title %s`, appleQuote(m), appleQuote(t))}
		}}
	case "windows":
		return commandSender{name: "powershell", args: func(t, m string) []string {
			return []string{"-NoProfile", "-NonInteractive", "-Command", toastScript(t, m)}
		}}
	}
	return nil
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func toastScript(title, message string) string {
	q := func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }
	return strings.Join([]string{
		"$t = [Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime]",
		"$xml = $t::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)",
		"$text = $xml.GetElementsByTagName('text')",
		"$text.Item(0).AppendChild($xml.CreateTextNode(" + q(title) + ")) | Out-Null",
		"$text.Item(1).AppendChild($xml.CreateTextNode(" + q(message) + ")) | Out-Null",
		"$t::CreateToastNotifier('pinscraper').Show([Windows.UI.Notifications.ToastNotification]::new($xml))",
	}, "; ")
}

// Notifier prints run outcomes and mirrors them as desktop notifications.
// A nil sender only prints.
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a Notifier for the current platform printing to stdout
func NewNotifier() *Notifier {
	return &Notifier{sender: PlatformSender(runtime.GOOS), out: os.Stdout}
}

// NewNotifierWithSender creates a Notifier over sender printing to out
func NewNotifierWithSender(sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, out: out}
}

// RunFinished reports a committed run
func (n *Notifier) RunFinished(grabbed, categories int, elapsed time.Duration) {
	n.notify(Green, fmt.Sprintf("Grabbed %d items across %d categories in %s",
		grabbed, categories, formatDuration(elapsed)))
}

// RunFailed reports a run that ended with an error
func (n *Notifier) RunFailed(err error) {
	n.notify(Red, "Run failed: "+err.Error())
}

// notify never fails the run; a missing notification tool is ignored
func (n *Notifier) notify(color func(string) string, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", color("pinscraper"), color(message))
	if n.sender != nil {
		_ = n.sender.Send("pinscraper", message)
	}
}
