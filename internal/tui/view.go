package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuibooth/internal/capture"
	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/machineid"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/selection"
)

const templateListWidth = 28

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := footerStyle.Render(m.help.ShortHelpView(m.keys.helpFor(m.screen)))
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, m.renderBody(bodyHeight))
	return header + "\n" + body + "\n" + footer
}

func (m *Model) renderHeader() string {
	left := titleStyle.Render("tuibooth")
	right := ""
	if m.screen != screenLocked {
		right = mutedStyle.Render(fmt.Sprintf("%d sessions left", m.remaining))
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *Model) renderBody(height int) string {
	var body string
	switch m.screen {
	case screenLocked:
		body = m.renderLocked()
	case screenWelcome:
		body = m.renderWelcome()
	case screenSettings:
		body = m.renderSettings()
	case screenTemplates:
		body = m.renderTemplates(height)
	case screenCapture:
		body = m.renderCapture(height)
	case screenSelect:
		body = m.renderSelect(height)
	case screenProcessing:
		body = m.spin.View() + " Creating your photos..."
	case screenPrint:
		body = m.renderPrint(height)
	case screenPrinting:
		body = m.spin.View() + " Printing... please collect your photos."
	}
	return body
}

func (m *Model) renderLocked() string {
	lines := []string{
		titleStyle.Render("This booth is not active"),
		"",
		"Machine ID",
		accentStyle.Render(machineid.Format(m.deps.MachineID)),
		"",
	}
	if m.activating {
		lines = append(lines, m.spin.View()+" "+activationText(m.activation))
	} else {
		lines = append(lines, mutedStyle.Render("Press R to try again."))
	}
	if m.lockReason != "" {
		lines = append(lines, warningStyle.Render(m.lockReason))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func activationText(p cloud.Progress) string {
	switch p.Phase {
	case cloud.PhaseRegistering:
		return fmt.Sprintf("Registering device (attempt %d)...", max(p.Attempt, 1))
	case cloud.PhaseRetrying:
		return fmt.Sprintf("Server unreachable, retrying (attempt %d)...", p.Attempt)
	case cloud.PhaseAwaitingActivation:
		return "Waiting for the operator to activate this booth..."
	case cloud.PhaseActivated:
		return "Activated."
	default:
		return "Connecting..."
	}
}

func (m *Model) renderWelcome() string {
	lines := []string{
		titleStyle.Render("Welcome!"),
		"",
		accentStyle.Render("Press ENTER to start"),
	}
	if m.notice != "" {
		lines = append(lines, "", mutedStyle.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) renderSettings() string {
	settings := m.deps.Settings.Get()
	lines := []string{titleStyle.Render("Settings"), ""}
	for i, item := range settingItems() {
		line := fmt.Sprintf("%-20s %s", item.label, item.value(settings))
		if i == m.settingIndex {
			line = selectedRow.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if m.notice != "" {
		lines = append(lines, "", warningStyle.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderTemplates(height int) string {
	list := []string{titleStyle.Render("Choose a template"), ""}
	for i, tmpl := range m.templates {
		marker := "  "
		if i == m.chosen {
			marker = "✓ "
		}
		name := runewidth.Truncate(fmt.Sprintf("%d. %s", i+1, tmpl.Name), templateListWidth-2, "…")
		line := marker + name
		if i == m.templateIndex {
			line = selectedRow.Render(line)
		}
		list = append(list, line)
	}
	list = append(list, "")
	switch {
	case !m.timerDone:
		list = append(list, mutedStyle.Render(fmt.Sprintf("Starting in %ds", m.secondsLeft())))
	case m.chosen < 0:
		list = append(list, accentStyle.Render("Pick a template to continue"))
	}
	left := lipgloss.NewStyle().Width(templateListWidth).Render(strings.Join(list, "\n"))

	preview := renderHalfBlocks(m.displayImage(m.templateIndex), m.width-templateListWidth-4, height-2)
	return lipgloss.JoinHorizontal(lipgloss.Center, left, "  ", preview)
}

// displayImage loads the preview image of template i once. Failures are cached as nil.
func (m *Model) displayImage(i int) *image.RGBA {
	if img, ok := m.displays[i]; ok {
		return img
	}
	img, err := m.templates[i].LoadDisplay()
	if err != nil {
		m.deps.Logger.Warn("template preview unavailable", "template", m.templates[i].Name, "error", err)
		img = nil
	}
	m.displays[i] = img
	return img
}

func (m *Model) renderCapture(height int) string {
	status := m.captureStatus()
	lines := []string{status}
	if m.demo {
		lines = append(lines, mutedStyle.Render("Demo frames"))
	}
	if m.warning != "" {
		lines = append(lines, warningStyle.Render(m.warning))
	}
	info := lipgloss.JoinVertical(lipgloss.Center, lines...)

	previewHeight := height - lipgloss.Height(info) - 1
	preview := renderHalfBlocks(m.preview, m.width, previewHeight)
	if preview == "" {
		preview = mutedStyle.Render("Starting camera...")
	}
	return lipgloss.JoinVertical(lipgloss.Center, preview, info)
}

func (m *Model) captureStatus() string {
	shot := fmt.Sprintf("Photo %d of %d", min(m.shotCount+1, model.ShotCount), model.ShotCount)
	switch m.capState {
	case capture.StateCountdown:
		if m.cue {
			return lipgloss.JoinHorizontal(lipgloss.Center, countStyle.Render(fmt.Sprint(m.count)), "  ", accentStyle.Render("Get ready!"))
		}
		return lipgloss.JoinHorizontal(lipgloss.Center, countStyle.Render(fmt.Sprint(m.count)), "  ", shot)
	case capture.StateSmile, capture.StateCapturing:
		return countStyle.Render("SMILE!")
	case capture.StatePostCapture:
		return accentStyle.Render(fmt.Sprintf("Got it! %d of %d", m.shotCount, model.ShotCount))
	case capture.StateFinished:
		return accentStyle.Render("All done!")
	case capture.StateWaitingForCamera:
		return mutedStyle.Render("Waiting for the camera...")
	default:
		return mutedStyle.Render("Get ready...")
	}
}

func (m *Model) renderSelect(height int) string {
	const perRow = 3
	cellWidth := max((m.width-perRow*2)/perRow, 4)
	rowsAvail := max((height-4)/((len(m.shots)+perRow-1)/perRow), 2)

	slots := m.pick.Slots()
	var rows []string
	var row []string
	for i, shot := range m.shots {
		label := fmt.Sprintf("[%d]", i+1)
		for slot, v := range slots {
			if v == i {
				label = selectedRow.Render(fmt.Sprintf("[%d] slot %d", i+1, slot+1))
			}
		}
		thumb := renderHalfBlocks(shot.Image, cellWidth, rowsAvail-1)
		row = append(row, lipgloss.JoinVertical(lipgloss.Center, thumb, label), "  ")
		if len(row) == perRow*2 || i == len(m.shots)-1 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	title := titleStyle.Render(fmt.Sprintf("Pick %d photos (%d/%d)", selection.Size, m.pick.Count(), selection.Size))
	parts := []string{title, ""}
	parts = append(parts, rows...)
	if m.notice != "" {
		parts = append(parts, warningStyle.Render(m.notice))
	} else if m.pick.Ready() {
		parts = append(parts, accentStyle.Render("Press ENTER to continue"))
	}
	return lipgloss.JoinVertical(lipgloss.Center, parts...)
}

func (m *Model) renderPrint(height int) string {
	strip := m.session != nil && m.session.Template.Meta.IsStrip()
	lines := []string{titleStyle.Render("How would you like your prints?"), ""}
	for _, opt := range []model.PrintOption{model.PrintOriginalPair, model.PrintMixed, model.PrintStyledPair} {
		lines = append(lines, fmt.Sprintf("%d. %s", int(opt), printOptionLabel(opt, strip)))
	}
	if m.session != nil && m.session.Link != "" {
		lines = append(lines, "", mutedStyle.Render("Scan the QR code on your print or visit:"), accentStyle.Render(m.session.Link))
	}
	if m.notice != "" {
		lines = append(lines, "", warningStyle.Render(m.notice))
	}
	menu := strings.Join(lines, "\n")
	if m.session == nil || m.session.Plain == nil {
		return menu
	}
	thumb := renderHalfBlocks(m.session.Plain, m.width/3, height-2)
	return lipgloss.JoinHorizontal(lipgloss.Center, thumb, "    ", menu)
}

func printOptionLabel(opt model.PrintOption, strip bool) string {
	switch opt {
	case model.PrintOriginalPair:
		if strip {
			return "Two original strips"
		}
		return "Two original prints"
	case model.PrintMixed:
		if strip {
			return "One original + one AI strip"
		}
		return "One original + one AI print"
	case model.PrintStyledPair:
		if strip {
			return "Two AI strips"
		}
		return "Two AI prints"
	default:
		return opt.String()
	}
}
