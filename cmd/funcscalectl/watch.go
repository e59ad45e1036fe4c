package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lewta/funcscale/internal/concurrency"
	"github.com/lewta/funcscale/internal/config"
	"github.com/lewta/funcscale/internal/controller"
	"github.com/lewta/funcscale/internal/health"
	"github.com/lewta/funcscale/internal/obsmetrics"
)

func watchCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the controller with a live terminal dashboard",
		Long: `Starts the controller and renders a live view of the process
health verdict and every function's current parallelism.

Press q or Ctrl-C to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			initLogger(cfg.Daemon.LogLevel, cfg.Daemon.LogFormat)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctl, err := controller.New(cfg, obsmetrics.Noop())
			if err != nil {
				return fmt.Errorf("creating controller: %w", err)
			}
			go ctl.Run(ctx)

			p := tea.NewProgram(newWatchModel(ctl))
			go func() {
				<-ctx.Done()
				p.Quit()
			}()
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config/example.yaml", "Path to YAML config file")
	return cmd
}

type tickMsg struct {
	verdict health.Verdict
	snap    concurrency.Snapshot
}

type watchModel struct {
	ctl     *controller.Controller
	verdict health.Verdict
	snap    concurrency.Snapshot
}

func newWatchModel(ctl *controller.Controller) watchModel {
	return watchModel{ctl: ctl}
}

func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

func (m watchModel) poll() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{
			verdict: m.ctl.Health.Status(nil),
			snap:    m.ctl.Manager.Status(),
		}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.verdict = msg.verdict
		m.snap = msg.snap
		return m, m.poll()
	}
	return m, nil
}

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	styleOk      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleRow     = lipgloss.NewStyle().PaddingLeft(2)
)

func (m watchModel) View() string {
	var verdictStyle lipgloss.Style
	switch m.verdict {
	case health.Ok:
		verdictStyle = styleOk
	case health.Overloaded:
		verdictStyle = styleWarn
	default:
		verdictStyle = styleUnknown
	}

	out := styleTitle.Render("funcscale — dynamic concurrency controller") + "\n\n"
	out += fmt.Sprintf("health:   %s\n", verdictStyle.Render(m.verdict.String()))
	out += fmt.Sprintf("throttle: %v\n\n", m.snap.ThrottleEnabled)

	ids := make([]string, 0, len(m.snap.Functions))
	for id := range m.snap.Functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) == 0 {
		out += styleRow.Render("(no functions registered yet)") + "\n"
	}
	for _, id := range ids {
		r := m.snap.Functions[id]
		out += styleRow.Render(fmt.Sprintf("%-24s parallelism=%-4d outstanding=%-4d fetch=%d", id, r.CurrentParallelism, r.OutstandingInvocations, r.FetchCount)) + "\n"
	}

	out += "\nq to quit\n"
	return out
}
