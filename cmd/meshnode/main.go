// Meshnode — CLI entry point.
//
// Runs a single mesh node: a WebRTC peer that other nodes dial into over a
// WebSocket signalling listener, exchanges envelopes over stable channels,
// and can itself dial out to other nodes. Launched with a subcommand:
//
//	meshnode run [--stream]       start the node and enter its command loop
//	meshnode v                    print the version
//
// Once running, the command loop reads these commands from stdin:
//
//	status                        print a one-shot status table
//	stream                        switch the running loop into live-refresh mode
//	list --nodes|--accounts [--skip N] [--take M]
//	connect --node <address@wsURL>
//	exit                          leave the command loop
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/config"
	"github.com/1ureka/meshnode/internal/logging"
	"github.com/1ureka/meshnode/internal/manager"
	"github.com/1ureka/meshnode/internal/meshnode"
	"github.com/1ureka/meshnode/internal/signaling"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		pterm.Error.Println("missing subcommand: run | v")
		os.Exit(1)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "v":
		pterm.Info.Println(fmt.Sprintf("meshnode — v%s", version))
	case "run":
		runNode(ctx, args)
	default:
		pterm.Error.Println(fmt.Sprintf("unknown subcommand %q", sub))
		os.Exit(1)
	}
}

func runNode(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	listenPort := fs.Int("port", 0, "signalling listen port (0 picks one)")
	pin := fs.String("pin", "", "optional inbound signalling PIN")
	debug := fs.Bool("debug", false, "enable debug logging")
	stream := fs.Bool("stream", false, "start directly in live-refresh stream mode")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if *debug {
		logging.EnableDebug()
	}

	cfg := config.FromEnv(config.Default())
	if *listenPort != 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", *listenPort)
	}
	if *pin != "" {
		cfg.PIN = *pin
	}

	local, err := loadIdentity(cfg)
	if err != nil {
		pterm.Error.Println(fmt.Sprintf("failed to load identity: %v", err))
		os.Exit(1)
	}
	acctMgr := account.NewManager(local)

	chCfg := meshnode.DefaultConfig()
	chCfg.ICEServers = cfg.ICEServers
	mgr := manager.New(acctMgr, chCfg)
	mgr.Start()
	defer mgr.Dispose()

	listener := signaling.NewListener(cfg.PIN, logging.Default)
	port, err := listener.Start(cfg.ListenAddr)
	if err != nil {
		pterm.Error.Println(fmt.Sprintf("failed to start signalling listener: %v", err))
		os.Exit(1)
	}
	defer listener.Close()

	pterm.Success.Println(fmt.Sprintf("node %s listening for signalling on port %d", acctMgr.Address(), port))
	go acceptLoop(ctx, listener, mgr)

	if *stream {
		runStream(ctx, mgr)
		return
	}
	runREPL(ctx, mgr)
}

func loadIdentity(cfg config.Config) (*account.LocalAccount, error) {
	if cfg.PrivateKeyHex != "" {
		return account.NewLocalAccountFromSeed(cfg.PrivateKeyHex, cfg.DerivationIndex)
	}
	return account.NewLocalAccount(cfg.DerivationIndex)
}

func acceptLoop(ctx context.Context, listener *signaling.Listener, mgr *manager.ChannelManager) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			return
		}
		mgr.AcceptSignalling(ctx, conn)
	}
}

func runREPL(ctx context.Context, mgr *manager.ChannelManager) {
	scanner := bufio.NewScanner(os.Stdin)
	pterm.Println("type a command (status | stream | list | connect | exit):")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "status":
			printStatus(mgr)
		case "stream":
			runStream(ctx, mgr)
		case "list":
			handleList(mgr, fields[1:])
		case "connect":
			handleConnect(ctx, mgr, fields[1:])
		case "exit":
			return
		default:
			pterm.Warning.Println(fmt.Sprintf("unknown command %q", fields[0]))
		}
	}
}

func handleList(mgr *manager.ChannelManager, args []string) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	nodesOnly := fs.Bool("nodes", false, "list node channels")
	accountsOnly := fs.Bool("accounts", false, "list account channels")
	skip := fs.Int("skip", 0, "skip the first N entries")
	take := fs.Int("take", 0, "take at most M entries (0 means all)")
	if err := fs.Parse(args); err != nil {
		return
	}
	printList(mgr, *nodesOnly, *accountsOnly, *skip, *take)
}

func handleConnect(ctx context.Context, mgr *manager.ChannelManager, args []string) {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	node := fs.String("node", "", "remote endpoint as address@wsURL")
	if err := fs.Parse(args); err != nil {
		return
	}
	if *node == "" {
		pterm.Warning.Println("connect requires --node address@wsURL")
		return
	}
	parts := strings.SplitN(*node, "@", 2)
	if len(parts) != 2 {
		pterm.Warning.Println("--node must be address@wsURL")
		return
	}
	remote, err := account.ParseAddress(parts[0])
	if err != nil {
		pterm.Warning.Println(fmt.Sprintf("invalid address: %v", err))
		return
	}
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("connecting...")
	if _, err := mgr.ConnectToNode(ctx, remote, parts[1]); err != nil {
		spinner.Fail(fmt.Sprintf("connect failed: %v", err))
		return
	}
	spinner.Success("channel negotiation started")
}

// printStatus renders the standard one-shot table; kept separate from
// runStream which refreshes the same kind of table on a tick.
func printStatus(mgr *manager.ChannelManager) {
	printList(mgr, true, true, 0, 0)
}

func runStream(ctx context.Context, mgr *manager.ChannelManager) {
	area, _ := pterm.DefaultArea.WithRemoveWhenDone(false).Start()
	defer area.Stop()

	ticker := fixedTicker(100)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			area.Update(renderTable(mgr, true, true, 0, 0))
		}
	}
}
