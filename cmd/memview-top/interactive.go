package main

import (
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/memviewlab/memview/wire"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type topModel struct {
	err    error
	addr   string
	view   *streamView
	table  table.Model
	frames chan tea.Msg
	done   bool
}

type frameMsg wire.Frame

type streamErrMsg struct{ err error }

type streamEndMsg struct{}

func newTopModel(addr string) *topModel {
	cols := []table.Column{
		{Title: "Region", Width: 10},
		{Title: "Live", Width: 8},
		{Title: "Bytes", Width: 12},
		{Title: "Total alloc", Width: 12},
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithHeight(12),
		table.WithFocused(true),
	)
	return &topModel{
		addr:   addr,
		view:   newStreamView(),
		table:  t,
		frames: make(chan tea.Msg, 64),
	}
}

// runInteractive connects to the instrumented process and renders its
// stream as a live per-region table.
func runInteractive(addr string) error {
	m := newTopModel(addr)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go m.readStream(conn)

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// readStream decodes frames off the connection into the model's channel.
func (m *topModel) readStream(conn net.Conn) {
	dec := wire.NewDecoder(conn)
	if _, err := dec.ReadStreamHeader(); err != nil {
		m.frames <- streamErrMsg{err: err}
		return
	}
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			m.frames <- streamEndMsg{}
			return
		}
		if err != nil {
			m.frames <- streamErrMsg{err: err}
			return
		}
		m.frames <- frameMsg(frame)
	}
}

func (m *topModel) nextFrame() tea.Msg {
	return <-m.frames
}

func (m *topModel) Init() tea.Cmd {
	return m.nextFrame
}

func (m *topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case frameMsg:
		m.view.apply(wire.Frame(msg))
		m.refreshRows()
		return m, m.nextFrame

	case streamErrMsg:
		m.err = msg.err
		return m, nil

	case streamEndMsg:
		m.done = true
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *topModel) refreshRows() {
	ids := make([]uint64, 0, len(m.view.regions))
	for id := range m.view.regions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.view.regions[ids[i]].liveBytes > m.view.regions[ids[j]].liveBytes
	})

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		r := m.view.regions[id]
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", id),
			fmt.Sprintf("%d", r.liveCount),
			humanize.IBytes(r.liveBytes),
			humanize.IBytes(r.totalAlloc),
		})
	}
	m.table.SetRows(rows)
}

func (m *topModel) View() string {
	s := titleStyle.Render("memview-top "+m.addr) + "\n\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("stream error: %v", m.err)) + "\n"
		s += helpStyle.Render("q quit")
		return s
	}

	s += m.table.View() + "\n\n"
	s += statusStyle.Render(fmt.Sprintf(
		"frames %d   live %d (%s)   markers %d",
		m.view.frames, m.view.liveCount,
		humanize.IBytes(m.view.liveBytes), m.view.markers))
	if m.done {
		s += "\n" + errorStyle.Render("stream ended")
	}
	s += "\n" + helpStyle.Render("q quit • arrows scroll")
	return s
}
