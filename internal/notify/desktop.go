package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier shows notifications through notify-send on Linux and
// osascript on macOS. Other platforms are a no-op.
type DesktopNotifier struct {
	run func(ctx context.Context, name string, args ...string) error
}

func NewDesktopNotifier() DesktopNotifier {
	return DesktopNotifier{run: runCommand}
}

func (d DesktopNotifier) Deliver(ctx context.Context, _ string, n Notification) error {
	name, args, ok := desktopCommand(runtime.GOOS, n)
	if !ok {
		return nil
	}
	run := d.run
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, name, args...); err != nil {
		return fmt.Errorf("notify: %s: %w", name, err)
	}
	return nil
}

func desktopCommand(goos string, n Notification) (string, []string, bool) {
	switch goos {
	case "linux":
		return "notify-send", []string{"--app-name=todobot", n.Title(), n.Summary()}, true
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Summary()), escapeAppleScript(n.Title()))
		return "osascript", []string{"-e", script}, true
	default:
		return "", nil, false
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
