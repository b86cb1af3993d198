// Package summary renders the block printed at the end of every command.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mukan-bot/OpenStackBuilder/pkg/cleanup"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

var (
	// Colors
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	okStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	warnMark  = "[??]"
	skipMark  = "[--]"
)

// Outcome is the overall result shown in the header
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
	Partial Outcome = "partial"
)

func (o Outcome) style() lipgloss.Style {
	switch o {
	case Success:
		return okStyle
	case Partial:
		return warningStyle
	default:
		return failedStyle
	}
}

// Bootstrap describes a finished bootstrap run
type Bootstrap struct {
	Role    types.Role
	State   types.InstallState
	HostIP  string
	PeerIP  string
	RunID   string
	Backup  string
	LogFile string
	Err     error
}

// RenderBootstrap renders the bootstrap summary
func RenderBootstrap(b Bootstrap) string {
	outcome := Success
	if b.Err != nil {
		outcome = Failure
	}

	var sb strings.Builder
	header(&sb, fmt.Sprintf("osb bootstrap: %s", b.Role), outcome)
	field(&sb, "State", string(b.State))
	field(&sb, "Host", b.HostIP)
	if b.PeerIP != "" {
		field(&sb, "Controller", b.PeerIP)
	}
	if b.RunID != "" {
		field(&sb, "Run", b.RunID)
	}
	if b.Backup != "" {
		field(&sb, "Backup", b.Backup)
	}
	failure(&sb, b.Err)
	field(&sb, "Log", b.LogFile)
	return sb.String()
}

// RenderHealth renders one line per category plus findings
func RenderHealth(r types.HealthReport, logFile string) string {
	var outcome Outcome
	switch r.Overall() {
	case types.HealthOK:
		outcome = Success
	case types.HealthWarning:
		outcome = Partial
	default:
		outcome = Failure
	}

	var sb strings.Builder
	header(&sb, fmt.Sprintf("osb healthcheck: %s", r.Role), outcome)
	for _, e := range r.Entries {
		mark, style := checkMark, okStyle
		switch e.Status {
		case types.HealthWarning:
			mark, style = warnMark, warningStyle
		case types.HealthError:
			mark, style = crossMark, failedStyle
		}
		sb.WriteString(fmt.Sprintf("    %s %-10s %s\n", style.Render(mark), e.Category, dimStyle.Render(log.Redact(e.Detail))))
	}

	if len(r.Findings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("  Findings"))
		sb.WriteString("\n")
		for _, f := range r.Findings {
			sb.WriteString("    " + failedStyle.Render(crossMark) + " " + f + "\n")
		}
	}
	field(&sb, "Log", logFile)
	return sb.String()
}

// RenderCleanup renders the cleanup report
func RenderCleanup(r cleanup.Report, logFile string) string {
	outcome := Success
	switch {
	case len(r.Errors()) > 0:
		outcome = Failure
	case r.Partial():
		outcome = Partial
	}

	var sb strings.Builder
	header(&sb, "osb cleanup", outcome)
	for _, s := range r.Steps {
		mark, style := checkMark, okStyle
		switch s.Outcome {
		case cleanup.OutcomeNothing:
			mark, style = checkMark, dimStyle
		case cleanup.OutcomeSkipped:
			mark, style = skipMark, warningStyle
		case cleanup.OutcomeFailed:
			mark, style = crossMark, failedStyle
		}
		detail := log.Redact(s.Detail)
		if s.Outcome == cleanup.OutcomeNothing {
			detail = "nothing to do"
		}
		sb.WriteString(fmt.Sprintf("    %s %-16s %s\n", style.Render(mark), s.Step, dimStyle.Render(detail)))
	}
	field(&sb, "State", string(r.State))
	field(&sb, "Log", logFile)
	return sb.String()
}

// RenderStatus renders the detected state and recent history
func RenderStatus(det state.Detection, runs []*types.RunRecord) string {
	outcome := Success
	if det.State == types.StateFailed {
		outcome = Failure
	}

	var sb strings.Builder
	header(&sb, "osb status", outcome)
	field(&sb, "State", string(det.State))
	if det.Marker != nil {
		field(&sb, "Role", string(det.Marker.Role))
		field(&sb, "Host", det.Marker.HostIP)
		field(&sb, "Since", det.Marker.CompletedAt.Format(time.RFC3339))
	}
	if det.MarkerMissingAfterSuccess() {
		sb.WriteString("    " + failedStyle.Render(crossMark) + " last run succeeded but the completion marker is missing\n")
	}

	if len(runs) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("  Recent runs"))
		sb.WriteString("\n")
		for _, run := range runs {
			line := fmt.Sprintf("    %s  %-10s %-10s %s", run.StartedAt.Format(time.RFC3339), run.Role, run.State, run.ID)
			if run.Error != "" {
				line += "  " + failedStyle.Render(run.Error)
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

func header(sb *strings.Builder, title string, outcome Outcome) {
	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render("  " + title))
	sb.WriteString("  ")
	sb.WriteString(outcome.style().Render(strings.ToUpper(string(outcome))))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 40)))
	sb.WriteString("\n")
}

func field(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("    %-11s %s\n", name+":", value))
}

func failure(sb *strings.Builder, err error) {
	if err == nil {
		return
	}
	kind := string(types.KindOf(err))
	if kind == "" {
		kind = "Error"
	}
	sb.WriteString(fmt.Sprintf("    %-11s %s\n", "Failure:", failedStyle.Render(kind)))
	sb.WriteString(fmt.Sprintf("    %-11s %s\n", "", log.Redact(err.Error())))
}
