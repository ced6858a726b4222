// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kiprim"
	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kunkin"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const dashMaxLogEntries = 50

// Focus states
const (
	focusLoadSetpoint = iota
	focusPSVoltage
	focusPSCurrent
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// dashLogEntry is one line of the event log
type dashLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// dashModel is the Bubble Tea model for the dashboard TUI
type dashModel struct {
	driver   *kunkin.Driver
	supply   *kiprim.Supply // nil when no --ps-port was given
	connInfo string

	// Last load snapshot; nil means the most recent poll got no reply
	load        *kunkin.Measurements
	loadPolled  bool
	loadChanErr error

	// Last supply readback
	psVoltage float64
	psCurrent float64
	psOK      bool

	// Setpoint inputs
	setpointInput textinput.Model
	psVoltInput   textinput.Model
	psCurrInput   textinput.Model
	focusedField  int

	// Event log
	eventLog []dashLogEntry

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type dashTickMsg time.Time

type loadStatusMsg struct {
	m   *kunkin.Measurements
	err error
}

type psStatusMsg struct {
	voltage float64
	current float64
	err     error
}

type writeResultMsg struct {
	label     string
	confirmed bool
	err       error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialDashModel(driver *kunkin.Driver, supply *kiprim.Supply, connInfo string) dashModel {
	setpoint := textinput.New()
	setpoint.Placeholder = "1.000"
	setpoint.CharLimit = 8
	setpoint.Width = 10
	setpoint.Focus()

	psVolt := textinput.New()
	psVolt.Placeholder = "12.00"
	psVolt.CharLimit = 8
	psVolt.Width = 10

	psCurr := textinput.New()
	psCurr.Placeholder = "1.000"
	psCurr.CharLimit = 8
	psCurr.Width = 10

	return dashModel{
		driver:        driver,
		supply:        supply,
		connInfo:      connInfo,
		setpointInput: setpoint,
		psVoltInput:   psVolt,
		psCurrInput:   psCurr,
		focusedField:  focusLoadSetpoint,
		eventLog:      make([]dashLogEntry, 0),
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(dashTickCmd(), m.pollLoadCmd(), m.pollSupplyCmd())
}

func dashTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

// pollLoadCmd reads the load's common block off the UI goroutine. The
// driver serializes requests internally, so a poll and a submitted write
// never interleave on the wire.
func (m dashModel) pollLoadCmd() tea.Cmd {
	driver := m.driver
	return func() tea.Msg {
		snapshot, err := driver.GetMeasurements()
		return loadStatusMsg{m: snapshot, err: err}
	}
}

func (m dashModel) pollSupplyCmd() tea.Cmd {
	supply := m.supply
	if supply == nil {
		return nil
	}
	return func() tea.Msg {
		v, err := supply.MeasureVoltage()
		if err != nil {
			return psStatusMsg{err: err}
		}
		c, err := supply.MeasureCurrent()
		if err != nil {
			return psStatusMsg{err: err}
		}
		return psStatusMsg{voltage: v, current: c}
	}
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dashTickMsg:
		return m, tea.Batch(dashTickCmd(), m.pollLoadCmd(), m.pollSupplyCmd())

	case loadStatusMsg:
		m.loadPolled = true
		m.loadChanErr = msg.err
		if msg.err == nil {
			m.load = msg.m
		}

	case psStatusMsg:
		if msg.err == nil {
			m.psVoltage = msg.voltage
			m.psCurrent = msg.current
			m.psOK = true
		} else {
			m.psOK = false
		}

	case writeResultMsg:
		switch {
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.label, msg.err), true)
		case !msg.confirmed:
			m.addLogEntry(fmt.Sprintf("%s: NOT confirmed", msg.label), true)
		default:
			m.addLogEntry(fmt.Sprintf("%s: confirmed", msg.label), false)
		}
	}

	// Pass everything else to the focused input
	var cmd tea.Cmd
	switch m.focusedField {
	case focusLoadSetpoint:
		m.setpointInput, cmd = m.setpointInput.Update(msg)
	case focusPSVoltage:
		m.psVoltInput, cmd = m.psVoltInput.Update(msg)
	case focusPSCurrent:
		m.psCurrInput, cmd = m.psCurrInput.Update(msg)
	}
	return m, cmd
}

func (m dashModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()

	case "o":
		return m, m.loadPowerCmd(true)

	case "f":
		return m, m.loadPowerCmd(false)

	case "O":
		return m, m.supplyOutputCmd(true)

	case "F":
		return m, m.supplyOutputCmd(false)
	}

	// Pass through to the focused input
	var cmd tea.Cmd
	switch m.focusedField {
	case focusLoadSetpoint:
		m.setpointInput, cmd = m.setpointInput.Update(msg)
	case focusPSVoltage:
		m.psVoltInput, cmd = m.psVoltInput.Update(msg)
	case focusPSCurrent:
		m.psCurrInput, cmd = m.psCurrInput.Update(msg)
	}
	return m, cmd
}

func (m dashModel) cycleFocus(delta int) dashModel {
	fields := focusCount
	if m.supply == nil {
		fields = 1 // only the load setpoint input exists
	}
	m.focusedField = (m.focusedField + delta + fields) % fields

	m.setpointInput.Blur()
	m.psVoltInput.Blur()
	m.psCurrInput.Blur()
	switch m.focusedField {
	case focusLoadSetpoint:
		m.setpointInput.Focus()
	case focusPSVoltage:
		m.psVoltInput.Focus()
	case focusPSCurrent:
		m.psCurrInput.Focus()
	}
	return m
}

//////////////////////////////////////////////////////////////
// Command submission
//////////////////////////////////////////////////////////////

func (m dashModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focusedField {
	case focusLoadSetpoint:
		value, err := strconv.ParseFloat(strings.TrimSpace(m.setpointInput.Value()), 64)
		if err != nil {
			m.addLogEntry("setpoint: not a number", true)
			return m, nil
		}
		m.setpointInput.SetValue("")
		return m, m.loadSetpointCmd(value)

	case focusPSVoltage:
		value, err := strconv.ParseFloat(strings.TrimSpace(m.psVoltInput.Value()), 64)
		if err != nil {
			m.addLogEntry("PS voltage: not a number", true)
			return m, nil
		}
		m.psVoltInput.SetValue("")
		return m, m.supplySetCmd("PS voltage", value, m.supply.SetVoltage)

	case focusPSCurrent:
		value, err := strconv.ParseFloat(strings.TrimSpace(m.psCurrInput.Value()), 64)
		if err != nil {
			m.addLogEntry("PS current: not a number", true)
			return m, nil
		}
		m.psCurrInput.SetValue("")
		return m, m.supplySetCmd("PS current", value, m.supply.SetCurrent)
	}
	return m, nil
}

// loadSetpointCmd writes the entered value to the register matching the
// load's active mode.
func (m dashModel) loadSetpointCmd(value float64) tea.Cmd {
	driver := m.driver
	mode := kunkin.ModeCC
	if m.load != nil {
		mode = m.load.Mode
	}
	return func() tea.Msg {
		var confirmed bool
		var err error
		var label string
		switch mode {
		case kunkin.ModeCV:
			label = fmt.Sprintf("load voltage %.3f V", value)
			confirmed, err = driver.SetVoltage(value)
		case kunkin.ModeCC:
			label = fmt.Sprintf("load current %.3f A", value)
			confirmed, err = driver.SetCurrent(value)
		case kunkin.ModeCR:
			label = fmt.Sprintf("load resistance %.3f Ohm", value)
			confirmed, err = driver.SetResistance(value)
		case kunkin.ModeCW:
			label = fmt.Sprintf("load power %.3f W", value)
			confirmed, err = driver.SetPower(value)
		}
		return writeResultMsg{label: label, confirmed: confirmed, err: err}
	}
}

func (m dashModel) loadPowerCmd(on bool) tea.Cmd {
	driver := m.driver
	label := "load input off"
	if on {
		label = "load input on"
	}
	return func() tea.Msg {
		confirmed, err := driver.SetPowerState(on)
		return writeResultMsg{label: label, confirmed: confirmed, err: err}
	}
}

func (m dashModel) supplyOutputCmd(on bool) tea.Cmd {
	supply := m.supply
	if supply == nil {
		return nil
	}
	label := "PS output off"
	op := supply.OutputOff
	if on {
		label = "PS output on"
		op = supply.OutputOn
	}
	return func() tea.Msg {
		err := op()
		return writeResultMsg{label: label, confirmed: err == nil, err: err}
	}
}

func (m dashModel) supplySetCmd(label string, value float64, op func(float64) error) tea.Cmd {
	if m.supply == nil {
		return nil
	}
	return func() tea.Msg {
		err := op(value)
		return writeResultMsg{label: fmt.Sprintf("%s %.3f", label, value), confirmed: err == nil, err: err}
	}
}

func (m *dashModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, dashLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > dashMaxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-dashMaxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m dashModel) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Loadctl Dashboard"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s", m.connInfo)))
	b.WriteString("\n\n")

	// Load panel
	var load strings.Builder
	load.WriteString(labelStyle.Render("KUNKIN Load"))
	load.WriteString("\n")
	switch {
	case !m.loadPolled:
		load.WriteString("polling...")
	case m.loadChanErr != nil:
		load.WriteString(errorStyle.Render(fmt.Sprintf("channel error: %v", m.loadChanErr)))
	case m.load == nil:
		load.WriteString(errorStyle.Render("no reply"))
	default:
		load.WriteString(fmt.Sprintf("Mode:    %s\n", valueStyle.Render(m.load.Mode.String())))
		load.WriteString(fmt.Sprintf("Input:   %s\n", valueStyle.Render(onOff(m.load.On))))
		load.WriteString(fmt.Sprintf("Voltage: %s\n", valueStyle.Render(fmt.Sprintf("%7.3f V", m.load.VoltageV))))
		load.WriteString(fmt.Sprintf("Current: %s\n", valueStyle.Render(fmt.Sprintf("%7.3f A", m.load.CurrentA))))
		load.WriteString(fmt.Sprintf("Power:   %s", valueStyle.Render(fmt.Sprintf("%7.3f W", m.load.PowerW()))))
	}

	// Supply panel
	var ps strings.Builder
	ps.WriteString(labelStyle.Render("Kiprim Supply"))
	ps.WriteString("\n")
	switch {
	case m.supply == nil:
		ps.WriteString(headerStyle.Render("not connected"))
	case !m.psOK:
		ps.WriteString(errorStyle.Render("no readback"))
	default:
		ps.WriteString(fmt.Sprintf("Voltage: %s\n", valueStyle.Render(fmt.Sprintf("%7.3f V", m.psVoltage))))
		ps.WriteString(fmt.Sprintf("Current: %s", valueStyle.Render(fmt.Sprintf("%7.3f A", m.psCurrent))))
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(34).Render(load.String()),
		boxStyle.Width(30).Render(ps.String()))
	b.WriteString(panels)
	b.WriteString("\n")

	// Inputs
	var inputs strings.Builder
	setpointLabel := "Load setpoint"
	if m.load != nil {
		switch m.load.Mode {
		case kunkin.ModeCV:
			setpointLabel = "Load voltage (V)"
		case kunkin.ModeCC:
			setpointLabel = "Load current (A)"
		case kunkin.ModeCR:
			setpointLabel = "Load resistance (Ohm)"
		case kunkin.ModeCW:
			setpointLabel = "Load power (W)"
		}
	}
	inputs.WriteString(fmt.Sprintf("%-24s %s\n", setpointLabel, m.setpointInput.View()))
	if m.supply != nil {
		inputs.WriteString(fmt.Sprintf("%-24s %s\n", "PS voltage (V)", m.psVoltInput.View()))
		inputs.WriteString(fmt.Sprintf("%-24s %s\n", "PS current (A)", m.psCurrInput.View()))
	}
	b.WriteString(boxStyle.Width(66).Render(strings.TrimRight(inputs.String(), "\n")))
	b.WriteString("\n")

	// Event log, newest last
	var log strings.Builder
	log.WriteString(labelStyle.Render("Events"))
	log.WriteString("\n")
	entries := m.eventLog
	if len(entries) > 8 {
		entries = entries[len(entries)-8:]
	}
	if len(entries) == 0 {
		log.WriteString(headerStyle.Render("(none)"))
	}
	for i, e := range entries {
		line := fmt.Sprintf("%s %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		log.WriteString(line)
		if i < len(entries)-1 {
			log.WriteString("\n")
		}
	}
	b.WriteString(boxStyle.Width(66).Render(log.String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("tab: next field | enter: submit | o/f: load on/off | O/F: PS on/off | q: quit"))
	b.WriteString("\n")

	return b.String()
}
