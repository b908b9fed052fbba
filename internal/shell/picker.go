package shell

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/lexiqai/interview-transcriber/internal/media"
)

// AudioFilters are the file patterns offered by the picker
var AudioFilters = []string{"*.mp3", "*.wav"}

// Picker chooses the source audio. An empty path with a nil error means the
// user cancelled.
type Picker interface {
	Pick(ctx context.Context, submitted string) (string, error)
}

// FormPicker uses the path submitted with the run request
type FormPicker struct{}

func (FormPicker) Pick(ctx context.Context, submitted string) (string, error) {
	return strings.TrimSpace(submitted), nil
}

// ZenityPicker opens a native file dialog with zenity
type ZenityPicker struct {
	Binary string
	Runner media.Runner
}

// NewZenityPicker creates a picker that runs zenity through runner
func NewZenityPicker(runner media.Runner) *ZenityPicker {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &ZenityPicker{Binary: "zenity", Runner: runner}
}

func (z *ZenityPicker) Pick(ctx context.Context, submitted string) (string, error) {
	args := []string{
		"--file-selection",
		"--title=Select audio file",
		"--file-filter=Audio files | " + strings.Join(AudioFilters, " "),
	}
	if submitted != "" {
		args = append(args, "--filename="+submitted)
	}

	res, err := z.Runner.Run(ctx, media.Command{Binary: z.Binary, Args: args})
	if err != nil {
		// zenity exits 1 when the dialog is cancelled
		var exitErr *media.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Revealer opens a folder in the desktop file manager
type Revealer interface {
	Reveal(ctx context.Context, dir string) error
}

// OpenRevealer uses the platform opener
type OpenRevealer struct {
	Runner media.Runner
	GOOS   string
}

// NewOpenRevealer creates a revealer for the running platform
func NewOpenRevealer(runner media.Runner) *OpenRevealer {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &OpenRevealer{Runner: runner, GOOS: runtime.GOOS}
}

func (o *OpenRevealer) Reveal(ctx context.Context, dir string) error {
	_, err := o.Runner.Run(ctx, media.Command{Binary: openerFor(o.GOOS), Args: []string{dir}})
	if err != nil {
		// explorer.exe returns 1 even when it succeeds
		var exitErr *media.ExitError
		if o.GOOS == "windows" && errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
			return nil
		}
	}
	return err
}

func openerFor(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	}
	return "xdg-open"
}
