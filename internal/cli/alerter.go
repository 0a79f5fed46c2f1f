package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tekrabyte/pos-sub000/internal/notify"
)

var errSoundDisabled = errors.New("notification sound disabled")

// terminalAlerter prints toasts as lines and rings the terminal bell.
type terminalAlerter struct {
	mu    sync.Mutex
	out   io.Writer
	sound atomic.Bool
	now   func() time.Time
}

func newTerminalAlerter(out io.Writer, sound bool) *terminalAlerter {
	t := &terminalAlerter{out: out, now: time.Now}
	t.sound.Store(sound)
	return t
}

func (t *terminalAlerter) SetSound(enabled bool) {
	t.sound.Store(enabled)
}

func (t *terminalAlerter) PlaySound(context.Context) error {
	if !t.sound.Load() {
		return errSoundDisabled
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, "\a")
	return err
}

func (t *terminalAlerter) Toast(n notify.Toast) {
	color, mark := ansiGreen, "✔"
	if n.Error {
		color, mark = ansiRed, "✖"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s[%s]%s %s%s %s%s\n", ansiGray, t.now().Format("15:04:05"), ansiReset, ansiBold+color, mark, n.Title, ansiReset)
	if n.Description != "" {
		fmt.Fprintf(t.out, "    %s\n", n.Description)
	}
}

var _ notify.Alerter = (*terminalAlerter)(nil)
