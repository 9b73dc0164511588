// Package cli implements the interactive operator console: lobby roster,
// recent matches, leaderboards and runtime configuration commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/game"
	"github.com/quadrelay-project/quadrelay/internal/lobby"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	store    *db.Store
	lobbySv  *lobby.Server
	gameSv   *game.Server
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, store *db.Store, lobbySv *lobby.Server, gameSv *game.Server) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		store:    store,
		lobbySv:  lobbySv,
		gameSv:   gameSv,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nQuadrelay CLI ready. Type 'help' for available commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("quadrelay> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "lobby", "l":
		c.printLobby()
	case "recent", "r":
		return c.printRecent(ctx)
	case "ranking":
		return c.printRanking(ctx, args)
	case "motd":
		return c.cmdMotd(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down Quadrelay...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println()
	fmt.Println("  status                Show server and host status")
	fmt.Println("  lobby                 Show the lobby roster")
	fmt.Println("  recent                Show recently finished matches")
	fmt.Println("  ranking [year month]  Show the monthly leaderboard")
	fmt.Println("  motd <text>           Set the lobby message of the day")
	fmt.Println("  quit                  Shutdown Quadrelay")
	fmt.Println("  help                  Show this help message")
	fmt.Println()
}

// printStatus displays server population and host resource usage.
func (c *CLI) printStatus() {
	sysInfo := util.GetSystemInfo()
	serverCfg := c.cfg.GetServer()

	fmt.Printf("\n  Lobby port:    %d (%d players)\n", serverCfg.LobbyPort, c.lobbySv.PlayerCount())
	fmt.Printf("  Game port:     %d (%d matches, %d players)\n",
		serverCfg.GamePort, c.gameSv.MatchCount(), c.gameSv.PlayerCount())
	fmt.Printf("  Host:          %s (%s)\n", sysInfo.Hostname, sysInfo.OS)

	if cpu, err := util.GetCPUUsage(); err == nil {
		fmt.Printf("  CPU usage:     %.1f%%\n", cpu)
	}
	if memUsage, err := util.GetMemoryUsage(); err == nil {
		fmt.Printf("  Memory:        %d/%d MB (%.1f%%)\n",
			memUsage.Used, memUsage.Total, memUsage.UsedPercent)
	}
	fmt.Println()
}

// printLobby displays the lobby roster in a formatted table.
func (c *CLI) printLobby() {
	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Slot", "Username", "Comment"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for idx, p := range c.lobbySv.Players() {
		if p == nil {
			tw.Append([]string{fmt.Sprintf("%d", idx), "-", ""})
			continue
		}
		tw.Append([]string{fmt.Sprintf("%d", idx), p.Username, p.Comment})
	}

	tw.Render()
	fmt.Println()
}

// printRecent displays the latest finished matches.
func (c *CLI) printRecent(ctx context.Context) error {
	matches, err := c.store.RecentMatches(ctx, 15)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No matches recorded yet")
		return nil
	}

	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Winner", "Loser", "Score", "Moves", "Finished"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, m := range matches {
		tw.Append([]string{
			m.Winner,
			m.Loser,
			fmt.Sprintf("%d-%d", m.WinnerScore, m.LoserScore),
			fmt.Sprintf("%d", m.Moves),
			m.Finished.Format("2006-01-02 15:04"),
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

// printRanking displays the leaderboard for a month, defaulting to the
// current one.
func (c *CLI) printRanking(ctx context.Context, args []string) error {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	if len(args) >= 2 {
		var err error
		if year, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid year: %s", args[0])
		}
		if month, err = strconv.Atoi(args[1]); err != nil || month < 1 || month > 12 {
			return fmt.Errorf("invalid month: %s", args[1])
		}
	}

	lb := c.cfg.GetLeaderboards()
	rows, err := c.store.Ranking(ctx, year, month, lb.RankedOnly, lb.IncludeVoid)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No ranked matches for %d-%02d\n", year, month)
		return nil
	}

	fmt.Println()

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"#", "Username", "Wins", "Games"})
	tw.SetBorder(true)

	for i, r := range rows {
		tw.Append([]string{
			fmt.Sprintf("%d", i+1),
			r.Username,
			fmt.Sprintf("%d", r.Wins),
			fmt.Sprintf("%d", r.Games),
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

// cmdMotd updates the lobby message of the day.
func (c *CLI) cmdMotd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: motd <text>")
	}

	lobbyCfg := c.cfg.GetLobby()
	lobbyCfg.MOTD = strings.Join(args, " ")
	c.cfg.SetLobby(lobbyCfg)

	if err := c.cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("MOTD updated: %s\n", lobbyCfg.MOTD)
	return nil
}
