package monitor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

const (
	fieldSeparator = "\x1f"
	nullMarker     = "<null>"
	stateStopped   = "stopped"
	statePlaying   = "playing"
)

// musicScript prints the Music app state as unit-separated fields:
// state, name, artist, album, genre, position, duration, favorited, played count.
// It never launches Music when it is not already running.
const musicScript = `
if application "Music" is not running then return "stopped"
tell application "Music"
	if player state is not playing then return "stopped"
	set sep to character id 31
	try
		set t to current track
	on error
		return "playing"
	end try
	set out to "playing" & sep & my field(name of t) & sep & my field(artist of t)
	set out to out & sep & my field(album of t) & sep & my field(genre of t)
	set out to out & sep & (player position as text) & sep & (duration of t as text)
	set fav to "false"
	try
		set fav to (favorited of t) as text
	end try
	set cnt to "0"
	try
		set cnt to (played count of t) as text
	end try
	return out & sep & fav & sep & cnt
end tell

on field(v)
	if v is missing value then return "<null>"
	if v is "" then return "<null>"
	return v as text
end field
`

// CommandRunner executes an external command and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes the command
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return output, nil
}

// AppleScriptProvider reads Apple Music through osascript
type AppleScriptProvider struct {
	logger *zap.Logger
	runner CommandRunner
}

// NewAppleScriptProvider creates a provider using runner to execute osascript
func NewAppleScriptProvider(logger *zap.Logger, runner CommandRunner) *AppleScriptProvider {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &AppleScriptProvider{logger: logger, runner: runner}
}

// Poll runs the query script once
func (a *AppleScriptProvider) Poll(ctx context.Context) (domain.ProviderResult, error) {
	output, err := a.runner.Run(ctx, "osascript", "-e", musicScript)
	if err != nil {
		return domain.ProviderResult{}, err
	}
	return parseScriptOutput(string(output))
}

func parseScriptOutput(output string) (domain.ProviderResult, error) {
	fields := strings.Split(strings.TrimRight(output, "\r\n"), fieldSeparator)

	switch fields[0] {
	case stateStopped:
		return domain.ProviderResult{Playing: false}, nil
	case statePlaying:
	default:
		return domain.ProviderResult{}, fmt.Errorf("unexpected script output: %q", output)
	}

	if len(fields) == 1 {
		return domain.ProviderResult{Playing: true}, nil
	}
	if len(fields) != 9 {
		return domain.ProviderResult{}, fmt.Errorf("unexpected field count %d in script output", len(fields))
	}

	raw := &domain.RawSnapshot{
		TrackName:  nullable(fields[1]),
		ArtistName: nullable(fields[2]),
		Album:      nullable(fields[3]),
		Genre:      nullable(fields[4]),
		Progress:   parseLocaleFloat(fields[5]),
		Duration:   parseLocaleFloat(fields[6]),
		Favourited: fields[7] == "true",
	}
	if n, err := strconv.Atoi(strings.TrimSpace(fields[8])); err == nil {
		raw.PlayedCount = n
	}

	return domain.ProviderResult{Playing: true, Track: raw}, nil
}

func nullable(field string) *string {
	if field == nullMarker {
		return nil
	}
	return &field
}

// parseLocaleFloat accepts both "12.5" and "12,5"; AppleScript formats
// reals with the user's decimal separator
func parseLocaleFloat(field string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(field), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
