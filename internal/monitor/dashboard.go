// Package monitor is a terminal dashboard over a running vectord daemon.
// It polls /v1/stats and /healthz and renders breaker state, cache
// effectiveness, and operation/search rates derived from successive counter
// snapshots.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model is the BubbleTea dashboard model.
type Model struct {
	baseURL    string
	interval   time.Duration
	lastUpdate time.Time
	stats      *vectorstore.Stats
	health     *vectorstore.Health
	err        error
	quitting   bool

	cacheProgress progress.Model

	// Rates are deltas between successive counter snapshots.
	prevTotal    int64
	prevSearches int64
	prevTime     time.Time
	opRate       float64
	searchRate   float64

	opRateHistory     []float64
	searchRateHistory []float64
	hitRateHistory    []float64
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling the daemon at baseURL.
func NewModel(baseURL string, interval time.Duration) Model {
	cacheProg := progress.New(
		progress.WithGradient("#ff0000", "#00ff00"),
		progress.WithWidth(40),
	)

	return Model{
		baseURL:           baseURL,
		interval:          interval,
		cacheProgress:     cacheProg,
		opRateHistory:     make([]float64, 0, historySize),
		searchRateHistory: make([]float64, 0, historySize),
		hitRateHistory:    make([]float64, 0, historySize),
	}
}

// healthBadge renders overall store health.
func healthBadge(status string) string {
	switch status {
	case vectorstore.HealthHealthy:
		return healthyStyle.Render("✓ HEALTHY")
	case vectorstore.HealthDegraded:
		return warningStyle.Render("⚠ DEGRADED")
	default:
		return errorStyle.Render("✗ UNHEALTHY")
	}
}

// breakerBadge renders breaker state. OPEN is the alarming one: requests are
// being rejected without reaching the database.
func breakerBadge(state string) string {
	switch state {
	case "CLOSED":
		return healthyStyle.Render("● CLOSED")
	case "HALF_OPEN":
		return warningStyle.Render("◐ HALF_OPEN")
	default:
		return errorStyle.Render("○ OPEN")
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time

type snapshotMsg struct {
	stats  *vectorstore.Stats
	health *vectorstore.Health
}

type errMsg error

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.baseURL),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshot fetches stats and health from the daemon.
func fetchSnapshot(baseURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := NewClient(baseURL)

		stats, err := client.Stats(ctx)
		if err != nil {
			return errMsg(err)
		}
		health, err := client.Health(ctx)
		if err != nil {
			return errMsg(err)
		}

		return snapshotMsg{stats: stats, health: health}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.baseURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.baseURL),
		)

	case snapshotMsg:
		now := time.Now()
		total := msg.stats.Operations.Total()
		searches := msg.stats.Operations.VectorSearches +
			msg.stats.Operations.TextSearches +
			msg.stats.Operations.HybridSearches

		// Counters reset when the daemon restarts; a negative delta is
		// rendered as zero rather than a plunge below the axis.
		if !m.prevTime.IsZero() && now.After(m.prevTime) {
			elapsed := now.Sub(m.prevTime).Seconds()
			m.opRate = rateDelta(total, m.prevTotal, elapsed)
			m.searchRate = rateDelta(searches, m.prevSearches, elapsed)
			m.opRateHistory = appendToHistory(m.opRateHistory, m.opRate)
			m.searchRateHistory = appendToHistory(m.searchRateHistory, m.searchRate)
		}
		m.hitRateHistory = appendToHistory(m.hitRateHistory, msg.stats.Cache.HitRate*100)

		m.prevTotal = total
		m.prevSearches = searches
		m.prevTime = now
		m.stats = msg.stats
		m.health = msg.health
		m.lastUpdate = now
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

func rateDelta(current, previous int64, elapsedSeconds float64) float64 {
	if current < previous || elapsedSeconds <= 0 {
		return 0
	}
	return float64(current-previous) / elapsedSeconds
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render(" vectord Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach vectord") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.baseURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure:") + "\n"
	content += dimStyle.Render("  1. vectord is running") + "\n"
	content += dimStyle.Render("  2. the --url flag points at its listen address") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

// renderDashboard renders the main view with sparklines and progress bars.
func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	header := headerStyle.Render(" vectord Monitor ")
	content += header + "\n"

	status := vectorstore.HealthUnhealthy
	if m.health != nil {
		status = m.health.Status
	}
	identity := ""
	if m.stats != nil {
		identity = m.stats.Database + "." + m.stats.Collection
	}
	content += fmt.Sprintf("%s   %s   %s",
		healthBadge(status),
		valueStyle.Render(identity),
		dimStyle.Render(lastUpdateStr)) + "\n"

	if m.stats == nil {
		content += "\n" + dimStyle.Render("Waiting for first snapshot...") + "\n"
		content += "\n" + m.renderFooter()
		return containerStyle.Render(content)
	}
	stats := m.stats

	// Operations
	content += "\n" + sectionStyle.Render("┃ Operations") + "\n"
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.opRate)) +
		"   " + createSparkline(m.opRateHistory) + "\n"
	content += labelStyle.Render("  Inserts: ") + valueStyle.Render(FormatCount(stats.Operations.Inserts+stats.Operations.BulkInserts)) +
		labelStyle.Render("  Reads: ") + valueStyle.Render(FormatCount(stats.Operations.Reads)) +
		labelStyle.Render("  Updates: ") + valueStyle.Render(FormatCount(stats.Operations.Updates)) +
		labelStyle.Render("  Deletes: ") + valueStyle.Render(FormatCount(stats.Operations.Deletes)) +
		labelStyle.Render("  Failures: ") + valueStyle.Render(FormatCount(stats.Operations.Failures)) + "\n"

	// Search
	content += "\n" + sectionStyle.Render("┃ Search") + "\n"
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.searchRate)) +
		"   " + createSparkline(m.searchRateHistory) + "\n"
	content += labelStyle.Render("  Vector: ") + valueStyle.Render(FormatCount(stats.Operations.VectorSearches)) +
		labelStyle.Render("  Text: ") + valueStyle.Render(FormatCount(stats.Operations.TextSearches)) +
		labelStyle.Render("  Hybrid: ") + valueStyle.Render(FormatCount(stats.Operations.HybridSearches)) + "\n"

	// Cache
	content += "\n" + sectionStyle.Render("┃ Cache") + "\n"
	if stats.Cache.Enabled {
		hitRate := stats.Cache.HitRate
		if hitRate > 1.0 {
			hitRate = 1.0
		}
		content += labelStyle.Render("  Hit rate: ") +
			m.cacheProgress.ViewAs(hitRate) +
			" " + dimStyle.Render(FormatPercentage(hitRate)) + "\n"
		content += labelStyle.Render("  Entries: ") +
			valueStyle.Render(fmt.Sprintf("%d/%d", stats.Cache.Entries, stats.Cache.MaxSize)) +
			labelStyle.Render("  Hits: ") + valueStyle.Render(FormatCount(stats.Cache.Hits)) +
			labelStyle.Render("  Misses: ") + valueStyle.Render(FormatCount(stats.Cache.Misses)) +
			labelStyle.Render("  Evictions: ") + valueStyle.Render(FormatCount(stats.Cache.Evictions)) +
			labelStyle.Render("  Expired: ") + valueStyle.Render(FormatCount(stats.Cache.Expired)) + "\n"
	} else {
		content += dimStyle.Render("  disabled") + "\n"
	}

	// Circuit breaker
	content += "\n" + sectionStyle.Render("┃ Circuit Breaker") + "\n"
	content += "  " + breakerBadge(stats.Breaker.State) +
		labelStyle.Render("   Failures: ") +
		valueStyle.Render(fmt.Sprintf("%d/%d", stats.Breaker.FailureCount, stats.Breaker.FailureThreshold)) +
		labelStyle.Render("  Reset: ") + valueStyle.Render(FormatMillis(stats.Breaker.ResetTimeoutMS)) +
		labelStyle.Render("  Trips: ") + valueStyle.Render(FormatCount(stats.Operations.BreakerTrips)) + "\n"

	// Documents (best-effort; absent while the store is unreachable)
	if stats.Documents != nil {
		content += "\n" + sectionStyle.Render("┃ Documents") + "\n"
		line := labelStyle.Render("  Total: ") + valueStyle.Render(FormatCount(stats.Documents.Total))
		for _, status := range []string{"active", "archived", "deprecated"} {
			if n, ok := stats.Documents.ByStatus[status]; ok {
				line += labelStyle.Render("  "+status+": ") + valueStyle.Render(FormatCount(n))
			}
		}
		content += line + "\n"
	}

	content += "\n" + m.renderFooter()
	return containerStyle.Render(content)
}

func (m Model) renderFooter() string {
	return footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
}
