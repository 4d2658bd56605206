package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/vijay-prabhu/jobrank/internal/pipeline"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"
)

// Spinner frames for animated progress
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Terminal provides terminal-aware output utilities
type Terminal struct {
	IsTerminal   bool
	UseColor     bool
	spinnerIndex int
}

// NewTerminal creates a new Terminal instance
func NewTerminal() *Terminal {
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	return &Terminal{
		IsTerminal: isTerminal,
		UseColor:   isTerminal, // Only use color in terminal
	}
}

// ClearLine clears the current line (terminal only)
func (t *Terminal) ClearLine() {
	if t.IsTerminal {
		fmt.Print("\r\033[K")
	}
}

// Flush ensures output is written immediately
func (t *Terminal) Flush() {
	os.Stdout.Sync()
}

// Spinner returns the next spinner frame
func (t *Terminal) Spinner() string {
	if !t.IsTerminal {
		return ""
	}
	frame := spinnerFrames[t.spinnerIndex]
	t.spinnerIndex = (t.spinnerIndex + 1) % len(spinnerFrames)
	return frame
}

// Color wraps text in ANSI color codes (terminal only)
func (t *Terminal) Color(color, text string) string {
	if !t.UseColor {
		return text
	}
	return color + text + ColorReset
}

// FormatETA formats a duration as a human-readable ETA string
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s > 0 {
			return fmt.Sprintf("%dm%ds", m, s)
		}
		return fmt.Sprintf("%dm", m)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// PhaseColor returns the appropriate color for a pipeline phase
func PhaseColor(phase pipeline.Phase) string {
	switch phase {
	case pipeline.PhaseDetecting, pipeline.PhaseDetectingURL:
		return ColorCyan
	case pipeline.PhaseMerging:
		return ColorYellow
	case pipeline.PhaseAnalyzing:
		return ColorPurple
	case pipeline.PhaseScoring:
		return ColorGreen
	default:
		return ColorWhite
	}
}

// progressPrinter renders pipeline progress on one line in a terminal and as
// occasional lines otherwise
type progressPrinter struct {
	terminal   *Terminal
	lastPhase  pipeline.Phase
	phaseStart time.Time
}

func newProgressPrinter(t *Terminal) *progressPrinter {
	return &progressPrinter{terminal: t}
}

func (pp *progressPrinter) print(p pipeline.Progress) {
	// Track phase start time for ETA
	if p.Phase != pp.lastPhase {
		pp.phaseStart = time.Now()
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = pp.phaseStart
	}

	t := pp.terminal
	t.ClearLine()

	var msg string
	if p.Total > 0 {
		var eta string
		if etaDur := p.ETA(); etaDur > 0 {
			eta = fmt.Sprintf(" (ETA: %s)", FormatETA(etaDur))
		}
		msg = fmt.Sprintf("%s: %d/%d (%d%%)%s", p.Description, p.Current, p.Total, p.Percentage(), eta)
	} else {
		msg = strings.TrimSpace(fmt.Sprintf("%s %s...", t.Spinner(), p.Description))
	}

	if t.UseColor {
		msg = t.Color(PhaseColor(p.Phase), msg)
	}

	if t.IsTerminal {
		fmt.Print(msg)
		t.Flush()
	} else {
		// For non-terminals, print on phase change or every 10 items
		shouldPrint := p.Phase != pp.lastPhase || p.Current%10 == 0 || (p.Total > 0 && p.Current == p.Total)
		if shouldPrint {
			fmt.Println(msg)
		}
	}
	pp.lastPhase = p.Phase
}
