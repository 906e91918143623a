package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tbd/internal/analysis"
	"tbd/internal/archs"
	"tbd/internal/exports"
	"tbd/internal/extract"
	"tbd/internal/stub"
	"tbd/internal/tbd/styles"
	"tbd/internal/ui/colorize"
)

type viewMode int

const (
	viewInfo viewMode = iota
	viewExports
	viewStub
)

func newBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Explore the exports of a Mach-O file interactively",
		Long: heredoc.Doc(`
			Browse opens a terminal UI with three views: the file report, a
			filterable list of exports and the generated stub.`),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				return errors.New("browse needs a terminal; use list or info instead")
			}
			lg := newLogger(cmd, cfg)
			defer lg.Close()

			analysis.ResetDemangleCache()
			defer logDemangleStats(lg.Logger)

			opts := cfg.ExtractOptions(lg.Logger)
			program := tea.NewProgram(
				newBrowseModel(cmd.Context(), args[0], opts),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := program.Run(); err != nil {
				lg.Error("TUI run error", "error", err)
				return errors.Wrap(err, "TUI error")
			}
			return nil
		},
	}
	addExtractFlags(cmd)
	return cmd
}

// exportItem is one row of the exports list.
type exportItem struct {
	info      exports.Info
	archs     string
	demangled string
}

func (i exportItem) FilterValue() string {
	return i.info.Kind.String() + " " + i.archs + " " + i.demangled
}

type exportDelegate struct {
	palette styles.Palette
}

func (d exportDelegate) Height() int                               { return 1 }
func (d exportDelegate) Spacing() int                              { return 0 }
func (d exportDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d exportDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(exportItem)
	if !ok {
		return
	}
	indicator := " "
	if index == m.Index() {
		indicator = d.palette.Pointer.Render(">")
	}
	fmt.Fprintf(w, " %s %s  %s  %s",
		indicator,
		d.palette.Kind[i.info.Kind].Render(fmt.Sprintf("%-15s", i.info.Kind)),
		d.palette.Arch.Render(i.archs),
		d.palette.Name.Render(i.demangled),
	)
}

// extractedMsg carries the finished extraction into the model.
type extractedMsg struct {
	res *extract.Result
	err error
}

type browseModel struct {
	ctx      context.Context
	path     string
	opts     extract.Options
	report   viewport.Model
	stubView viewport.Model
	exports  list.Model
	spinner  spinner.Model
	palette  styles.Palette
	mode     viewMode
	res      *extract.Result
	err      error
	loading  bool
	width    int
	height   int
}

func newBrowseModel(ctx context.Context, path string, opts extract.Options) browseModel {
	report := viewport.New()
	report.SetWidth(80)
	report.SetHeight(24)
	stubView := viewport.New()
	stubView.SetWidth(80)
	stubView.SetHeight(24)

	palette := styles.NewPalette(false)
	exportsList := list.New([]list.Item{}, exportDelegate{palette: palette}, 80, 24)
	exportsList.SetShowStatusBar(false)
	exportsList.SetFilteringEnabled(true)
	exportsList.SetShowHelp(true)
	exportsList.Title = "Exports"
	exportsList.Styles.Title = palette.Title

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = palette.Pointer

	m := browseModel{
		ctx:      ctx,
		path:     path,
		opts:     opts,
		report:   report,
		stubView: stubView,
		exports:  exportsList,
		spinner:  s,
		palette:  palette,
		loading:  true,
		width:    80,
		height:   24,
	}
	m.updateReport()
	return m
}

func extractCmd(ctx context.Context, path string, opts extract.Options) tea.Cmd {
	return func() tea.Msg {
		res, err := extract.File(ctx, path, opts)
		return extractedMsg{res: res, err: err}
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(extractCmd(m.ctx, m.path, m.opts), m.spinner.Tick)
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case extractedMsg:
		m.loading = false
		m.res, m.err = msg.res, msg.err
		if m.err == nil {
			m.updateExports()
			m.updateStub()
		}
		m.updateReport()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateReport()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.report.SetWidth(msg.Width)
		m.report.SetHeight(msg.Height - 2)
		m.stubView.SetWidth(msg.Width)
		m.stubView.SetHeight(msg.Height - 2)
		m.exports.SetWidth(msg.Width)
		m.exports.SetHeight(msg.Height - 2)
		m.updateReport()

	case tea.KeyMsg:
		filtering := m.mode == viewExports && m.exports.FilterState() == list.Filtering
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !filtering {
				return m, tea.Quit
			}
		case "tab":
			if !filtering && m.res != nil {
				m.mode = (m.mode + 1) % 3
				return m, nil
			}
		case "shift+tab":
			if !filtering && m.res != nil {
				m.mode = (m.mode + 2) % 3
				return m, nil
			}
		case "i":
			if !filtering {
				m.mode = viewInfo
				return m, nil
			}
		case "e":
			if !filtering && m.res != nil {
				m.mode = viewExports
				return m, nil
			}
		case "s":
			if !filtering && m.res != nil {
				m.mode = viewStub
				return m, nil
			}
		}
	}

	switch m.mode {
	case viewExports:
		m.exports, cmd = m.exports.Update(msg)
	case viewStub:
		m.stubView, cmd = m.stubView.Update(msg)
	default:
		m.report, cmd = m.report.Update(msg)
	}
	return m, cmd
}

func (m browseModel) View() string {
	var content, menu string
	switch m.mode {
	case viewExports:
		content = m.exports.View()
		menu = " /: filter • I: info • S: stub • Tab: cycle • Q: quit "
	case viewStub:
		content = m.stubView.View()
		menu = " I: info • E: exports • Tab: cycle • Q: quit "
	default:
		content = m.report.View()
		if m.res != nil {
			menu = " E: exports • S: stub • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}
	return content + "\n" + m.palette.Menu.Width(m.width).Render(menu)
}

func (m *browseModel) updateReport() {
	var markdown string
	switch {
	case m.loading:
		markdown = fmt.Sprintf("# %s\n\n%s Reading exports...", m.path, m.spinner.View())
	case m.err != nil:
		markdown = fmt.Sprintf("# %s\n\n**Error** %s", m.path, m.err)
	default:
		markdown = infoMarkdown(m.res)
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	r, err := styles.GetMarkdownRenderer(width-2, false)
	if err != nil {
		m.report.SetContent(markdown)
		return
	}
	rendered, err := r.Render(markdown)
	if err != nil {
		rendered = markdown
	}
	m.report.SetContent(strings.TrimSuffix(rendered, "\n"))
}

func (m *browseModel) updateExports() {
	items := make([]list.Item, 0, m.res.Exports.Len())
	for info := range m.res.Exports.All() {
		items = append(items, exportItem{
			info:      info,
			archs:     strings.Join(archs.Names(info.Archs), ","),
			demangled: analysis.DisplayName(info.Name, true),
		})
	}
	m.exports.SetItems(items)
	m.exports.Title = fmt.Sprintf("Exports (%d total)", len(items))
}

func (m *browseModel) updateStub() {
	out, err := stub.Marshal(m.res)
	if err != nil {
		m.stubView.SetContent(lipgloss.NewStyle().Bold(true).Render(err.Error()))
		return
	}
	text := string(out)
	if colored, err := colorize.Stub(text); err == nil {
		text = colored
	}
	m.stubView.SetContent(text)
	m.stubView.GotoTop()
}
