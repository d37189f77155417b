package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Xyri1/bili-assetizer/core"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

func statusStyle(s core.StageStatus) lipgloss.Style {
	switch s {
	case core.StageCompleted:
		return okStyle
	case core.StageFailed:
		return failStyle
	case core.StageMissing, core.StageInProgress:
		return warnStyle
	default:
		return labelStyle
	}
}

func printStageResult(r core.StageResult) {
	status := statusStyle(r.Status).Render(string(r.Status))
	line := fmt.Sprintf("%s %s", titleStyle.Render(r.Stage), status)
	if r.Skipped {
		line += labelStyle.Render(" (cached)")
	}
	if r.Detail != "" {
		line += "  " + detailStyle.Render(r.Detail)
	}
	fmt.Println(line)
	for _, e := range r.Errors {
		fmt.Fprintln(os.Stderr, failStyle.Render("  "+e))
	}
}

func printPipelineResult(r core.PipelineResult) {
	fmt.Println(titleStyle.Render("asset " + r.AssetID))
	for _, sr := range r.Stages {
		printStageResult(sr)
	}
	if r.Halted {
		fmt.Println(failStyle.Render("pipeline halted"))
	}
}

func printKV(label, value string) {
	fmt.Printf("%s %s\n", labelStyle.Render(label+":"), value)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
