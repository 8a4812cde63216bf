package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/meshnode/internal/manager"
	"github.com/1ureka/meshnode/internal/meshnode"
)

// maxLatencyWarn colors a row's latency cell when it exceeds this, matching
// the channel's own MaxLatency default.
const maxLatencyWarn = 300 * time.Millisecond

func fixedTicker(ms int) *time.Ticker {
	return time.NewTicker(time.Duration(ms) * time.Millisecond)
}

type row struct {
	kind      string
	key       string
	state     string
	stable    bool
	latency   time.Duration
	highLat   bool
}

func collectRows(mgr *manager.ChannelManager, nodes, accounts bool) []row {
	var rows []row
	if nodes {
		for _, k := range mgr.ListNodes() {
			nc, ok := mgr.NodeChannel(k)
			if !ok {
				continue
			}
			rows = append(rows, row{
				kind:    "node",
				key:     string(k),
				state:   nc.State().String(),
				stable:  nc.IsStable(),
				latency: nc.Latency(),
				highLat: nc.IsHighLatency(),
			})
		}
	}
	if accounts {
		for _, k := range mgr.ListAccounts() {
			ac, ok := mgr.AccountChannel(k)
			if !ok {
				continue
			}
			rows = append(rows, row{
				kind:    "account",
				key:     fmt.Sprintf("%s/%s", k.Account, k.Signer),
				state:   ac.State().String(),
				stable:  ac.IsStable(),
				latency: ac.Latency(),
				highLat: ac.IsHighLatency(),
			})
		}
	}
	return rows
}

func paginate(rows []row, skip, take int) []row {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if take > 0 && take < len(rows) {
		rows = rows[:take]
	}
	return rows
}

func renderTable(mgr *manager.ChannelManager, nodes, accounts bool, skip, take int) string {
	rows := paginate(collectRows(mgr, nodes, accounts), skip, take)

	data := [][]string{{"Kind", "Key", "State", "Stable", "Latency"}}
	for _, r := range rows {
		latency := r.latency.Round(time.Millisecond).String()
		if r.highLat {
			latency = pterm.FgRed.Sprint(latency)
		} else if r.latency > maxLatencyWarn {
			latency = pterm.FgYellow.Sprint(latency)
		}
		data = append(data, []string{
			r.kind,
			r.key,
			stateColor(r.state),
			fmt.Sprintf("%v", r.stable),
			latency,
		})
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Sprintf("failed to render table: %v", err)
	}
	return out
}

func stateColor(s string) string {
	switch s {
	case meshnode.StateOpen.String():
		return pterm.FgGreen.Sprint(s)
	case meshnode.StateFailed.String(), meshnode.StateRejected.String():
		return pterm.FgRed.Sprint(s)
	case meshnode.StateDisposed.String(), meshnode.StateDisposing.String(), meshnode.StateClosed.String(), meshnode.StateClosing.String():
		return pterm.FgGray.Sprint(s)
	default:
		return pterm.FgYellow.Sprint(s)
	}
}

func printList(mgr *manager.ChannelManager, nodes, accounts bool, skip, take int) {
	pterm.Println(renderTable(mgr, nodes, accounts, skip, take))
}
