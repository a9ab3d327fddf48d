// Command bbctl is a read-only admin CLI for a node agent: it can either
// load the same burst_buffer*.conf file the daemon would (show-config) or
// query a running nodeagentd's /allocs and /users endpoints (list-allocs,
// list-users). Table rendering follows the same jedib0t/go-pretty/v6/table
// idiom cmd/cacct uses for its own read-only queries against a running
// server.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ctld/nodeagent/pkg/burstbuffer"
)

var app = kingpin.New(os.Args[0], "Inspect node agent burst-buffer bookkeeping state.").UsageWriter(os.Stdout)

func main() {
	showConfigCmd := app.Command("show-config", "Print the resolved burst-buffer config.")
	bbType := showConfigCmd.Flag("type", "Burst buffer plugin type.").Default("generic").String()

	listAllocsCmd := app.Command("list-allocs", "List burst-buffer allocations known to a running nodeagentd.")
	allocsServer := listAllocsCmd.Flag("server", "Base URL of a running nodeagentd's status server.").Default("http://localhost:8080").String()
	allocsUser := listAllocsCmd.Flag("user", "Restrict to one user's allocations (0 means all).").Default("0").Uint32()

	listUsersCmd := app.Command("list-users", "List burst-buffer users known to a running nodeagentd.")
	usersServer := listUsersCmd.Flag("server", "Base URL of a running nodeagentd's status server.").Default("http://localhost:8080").String()

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse CLI flags: %s\n", err)
		os.Exit(1)
	}

	switch cmd {
	case showConfigCmd.FullCommand():
		err = showConfig(*bbType)
	case listAllocsCmd.FullCommand():
		err = listAllocs(*allocsServer, *allocsUser)
	case listUsersCmd.FullCommand():
		err = listUsers(*usersServer)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func showConfig(bbType string) error {
	cfg, err := burstbuffer.LoadConfig(bbType, log.NewNopLogger())
	if err != nil {
		return fmt.Errorf("loading burst buffer config: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Key", "Value"})

	t.AppendRow(table.Row{"GetSysState", cfg.GetSysState})
	t.AppendRow(table.Row{"Granularity", cfg.Granularity})
	t.AppendRow(table.Row{"JobSizeLimit", cfg.JobSizeLimit})
	t.AppendRow(table.Row{"UserSizeLimit", cfg.UserSizeLimit})
	t.AppendRow(table.Row{"PrioBoostAlloc", cfg.PrioBoostAlloc})
	t.AppendRow(table.Row{"PrioBoostUse", cfg.PrioBoostUse})
	t.AppendRow(table.Row{"StageInTimeout", cfg.StageInTimeout})
	t.AppendRow(table.Row{"StageOutTimeout", cfg.StageOutTimeout})
	t.AppendRow(table.Row{"AllowUsers", cfg.AllowUsersStr})
	t.AppendRow(table.Row{"DenyUsers", cfg.DenyUsersStr})

	t.Render()

	if len(cfg.GRES) > 0 {
		gt := table.NewWriter()
		gt.SetOutputMirror(os.Stdout)
		gt.AppendHeader(table.Row{"GRES", "Available"})

		for _, g := range cfg.GRES {
			gt.AppendRow(table.Row{g.Name, g.AvailCnt})
		}

		gt.Render()
	}

	return nil
}

func listAllocs(server string, userID uint32) error {
	url := fmt.Sprintf("%s/allocs?user=%d", server, userID)

	var allocs []burstbuffer.Allocation
	if err := fetchJSON(url, &allocs); err != nil {
		return fmt.Errorf("fetching allocations from %s: %w", server, err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"JobID", "Name", "UserID", "Size", "State", "StateTime"})

	for _, a := range allocs {
		t.AppendRow(table.Row{a.JobID, a.Name, a.UserID, a.Size, a.State, a.StateTime.Format(time.RFC3339)})
	}

	t.Render()

	return nil
}

func listUsers(server string) error {
	url := server + "/users"

	var users []burstbuffer.User
	if err := fetchJSON(url, &users); err != nil {
		return fmt.Errorf("fetching users from %s: %w", server, err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"UserID", "Size"})

	for _, u := range users {
		t.AppendRow(table.Row{u.UserID, u.Size})
	}

	t.Render()

	return nil
}

func fetchJSON(url string, out any) error {
	client := http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
