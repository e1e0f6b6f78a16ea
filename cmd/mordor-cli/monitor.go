package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chainApp "github.com/fd1az/mordor-monitor/business/chain/app"
	gasApp "github.com/fd1az/mordor-monitor/business/gas/app"
	monitorApp "github.com/fd1az/mordor-monitor/business/monitor/app"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/wsconn"
	"github.com/fd1az/mordor-monitor/pkg/ui"
)

const (
	sourceAuto   = "auto"
	sourceStream = "stream"
	sourceNode   = "node"
)

type sendFunc func(tea.Msg)

func (c *cli) monitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	interval := fs.Int("interval", 5, "Refresh interval in seconds")
	source := fs.String("source", sourceAuto, "Data source: auto, stream or node")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval <= 0 {
		return apperror.Validation(apperror.CodeInvalidInput, "interval must be positive")
	}
	switch *source {
	case sourceAuto, sourceStream, sourceNode:
	default:
		return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("unknown source %q", *source))
	}

	p := ui.NewProgram(ui.New("Mordor Testnet Monitor"))

	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := c.feed(feedCtx, p.Send, time.Duration(*interval)*time.Second, *source); err != nil {
			p.Send(ui.ErrorMsg{Error: err})
		}
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// feed prefers the daemon stream and falls back to polling the node in
// process when the daemon cannot be reached.
func (c *cli) feed(ctx context.Context, send sendFunc, interval time.Duration, source string) error {
	if source != sourceNode {
		err := c.streamFeed(ctx, send, interval)
		if err == nil || source == sourceStream {
			return err
		}
		send(ui.LogMsg{Level: "warn", Message: "monitor stream unavailable, polling the node directly"})
	}
	return c.nodeFeed(ctx, send, interval)
}

// streamURL turns the API base URL into the websocket endpoint.
func streamURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func (c *cli) streamFeed(ctx context.Context, send sendFunc, interval time.Duration) error {
	api, err := c.apiClient("monitor-api", apperror.CodeMonitorAPIError)
	if err != nil {
		return err
	}

	wcfg := wsconn.DefaultConfig(streamURL(c.cfg.CLI.MonitorURL), "monitor-stream")
	wcfg.HTTPClient = api.HTTPClient()
	stream, err := wsconn.New(wcfg)
	if err != nil {
		return err
	}

	stream.OnStateChange(func(state wsconn.State, err error) {
		send(ui.ConnectionStatusMsg{
			Name:      "monitor stream",
			State:     string(state),
			Connected: state == wsconn.StateConnected,
		})
		if err != nil && state != wsconn.StateConnected {
			send(ui.LogMsg{Level: "warn", Message: err.Error()})
		}
	})
	stream.OnMessage(func(_ context.Context, data []byte) {
		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			send(ui.ErrorMsg{Error: apperror.New(apperror.CodeMonitorAPIError,
				apperror.WithCause(err), apperror.WithContext("decode stream event"))})
			return
		}
		for _, msg := range eventMsgs(ev) {
			send(msg)
		}
	})

	if err := stream.Connect(ctx); err != nil {
		return err
	}
	defer stream.Close()

	refresh := func() {
		var rec domain.RecommendationView
		if err := api.GetJSON(ctx, "/api/gas", &rec); err != nil {
			if ctx.Err() == nil {
				send(ui.ErrorMsg{Error: err})
			}
			return
		}
		send(ui.RecommendationMsg{Recommendation: rec})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}

// eventMsgs maps one stream event to dashboard messages.
func eventMsgs(ev domain.Event) []tea.Msg {
	switch ev.Type {
	case domain.EventTick:
		if ev.Status != nil {
			return []tea.Msg{ui.StatusMsg{Status: *ev.Status}}
		}
	case domain.EventFork:
		if ev.Fork != nil {
			return []tea.Msg{ui.ForkMsg{Fork: *ev.Fork, Outcomes: ev.Outcomes}}
		}
	}
	return nil
}

// nodeFeed runs the fork detector and the gas oracle inside the CLI.
func (c *cli) nodeFeed(ctx context.Context, send sendFunc, interval time.Duration) error {
	svc, closeNode, err := c.node(ctx)
	if err != nil {
		return err
	}
	defer closeNode()

	detector := chainApp.NewForkDetector(chainApp.DetectorConfig{
		RetentionWindow: c.cfg.Fork.RetentionWindow,
		MaxBranches:     c.cfg.Fork.MaxBranches,
		HistorySize:     c.cfg.Fork.HistorySize,
		ResolveDepth:    uint64(c.cfg.Fork.ResolveDepth),
	})
	oracle := gasApp.NewOracle(c.cfg.Gas.WindowSize)
	query := monitorApp.NewQueryService(detector, oracle, monitorApp.NewPollState(), svc)

	pcfg := monitorApp.PollerConfig{
		Interval:       interval,
		MaxRetries:     c.cfg.Node.MaxRetries,
		InitialBackoff: c.cfg.Node.InitialBackoff,
		MaxBackoff:     c.cfg.Node.MaxBackoff,
		BackfillLimit:  c.cfg.Node.BackfillLimit,
		ReanchorLag:    c.cfg.Fork.RetentionWindow,
	}
	poller, err := monitorApp.NewPoller(pcfg, svc.Source(), query, nil,
		&uiBroadcaster{send: send, query: query}, &uiLogger{send: send})
	if err != nil {
		return err
	}

	send(ui.ConnectionStatusMsg{Name: "node " + c.cfg.Node.RPCURL, State: "polling", Connected: true})
	return poller.Run(ctx)
}

// uiBroadcaster forwards in-process poll events to the dashboard, with the
// current recommendation on every tick.
type uiBroadcaster struct {
	send  sendFunc
	query *monitorApp.QueryService
}

func (b *uiBroadcaster) Broadcast(ev domain.Event) {
	for _, msg := range eventMsgs(ev) {
		b.send(msg)
	}
	if ev.Type == domain.EventTick {
		b.send(ui.RecommendationMsg{Recommendation: b.query.Recommendation()})
	}
}

// uiLogger routes poller diagnostics into the dashboard instead of the
// terminal the TUI owns. Debug and Info are dropped.
type uiLogger struct {
	send sendFunc
}

func (l *uiLogger) Debug(context.Context, string, ...any)       {}
func (l *uiLogger) Debugc(context.Context, int, string, ...any) {}
func (l *uiLogger) Info(context.Context, string, ...any)        {}
func (l *uiLogger) Infoc(context.Context, int, string, ...any)  {}

func (l *uiLogger) Warn(_ context.Context, msg string, args ...any) {
	l.send(ui.LogMsg{Level: "warn", Message: formatLog(msg, args)})
}

func (l *uiLogger) Warnc(ctx context.Context, _ int, msg string, args ...any) {
	l.Warn(ctx, msg, args...)
}

func (l *uiLogger) Error(_ context.Context, msg string, args ...any) {
	l.send(ui.ErrorMsg{Error: fmt.Errorf("%s", formatLog(msg, args))})
}

func (l *uiLogger) Errorc(ctx context.Context, _ int, msg string, args ...any) {
	l.Error(ctx, msg, args...)
}

// formatLog renders key/value pairs after the message.
func formatLog(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
