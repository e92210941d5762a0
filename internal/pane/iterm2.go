package pane

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ITerm2 drives iTerm2 sessions through AppleScript.
type ITerm2 struct {
	Runner Runner

	getenv   func(string) string
	lookPath func(string) (string, error)
}

func NewITerm2(r Runner) *ITerm2 {
	if r == nil {
		r = ExecRunner{}
	}
	return &ITerm2{Runner: r, getenv: os.Getenv, lookPath: exec.LookPath}
}

func (i *ITerm2) Kind() Kind { return KindITerm2 }

func (i *ITerm2) Available(context.Context) bool {
	if i.getenv("TERM_PROGRAM") != "iTerm.app" {
		return false
	}
	_, err := i.lookPath("osascript")
	return err == nil
}

func (i *ITerm2) Alive(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	out, err := i.script(ctx, withSession(id, `return "alive"`))
	return err == nil && strings.TrimSpace(string(out)) == "alive"
}

func (i *ITerm2) CreateSplit(ctx context.Context, command string) (string, error) {
	src := fmt.Sprintf(`tell application "iTerm2"
	tell current session of current window
		set newSession to (split vertically with default profile)
	end tell
	tell newSession to write text %s
	return id of newSession
end tell`, appleString(command))
	out, err := i.script(ctx, src)
	if err != nil {
		return "", fmt.Errorf("iterm2 split: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("iterm2 split: no session id returned")
	}
	return id, nil
}

func (i *ITerm2) Interrupt(ctx context.Context, id string) error {
	_, err := i.script(ctx, withSession(id, `tell s to write text (ASCII character 3) newline no`))
	return err
}

func (i *ITerm2) SendKeys(ctx context.Context, id, text string) error {
	_, err := i.script(ctx, withSession(id, "tell s to write text "+appleString(text)))
	return err
}

func (i *ITerm2) Destroy(ctx context.Context, id string) error {
	_, err := i.script(ctx, withSession(id, `tell s to close`))
	return err
}

func (i *ITerm2) script(ctx context.Context, src string) ([]byte, error) {
	return i.Runner.Run(ctx, "osascript", "-e", src)
}

// withSession wraps body so it runs with s bound to the session whose id
// matches. The script fails when no session matches.
func withSession(id, body string) string {
	return fmt.Sprintf(`tell application "iTerm2"
	repeat with w in windows
		repeat with t in tabs of w
			repeat with s in sessions of t
				if id of s is %s then
					%s
					return "alive"
				end if
			end repeat
		end repeat
	end repeat
	error "session not found"
end tell`, appleString(id), body)
}

func appleString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
