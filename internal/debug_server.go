package internal

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// RosterRow is one group in the debug roster.
type RosterRow struct {
	Name    string
	Type    string
	Admin   string
	Members int
	Waiting int
	Muted   int
}

// RosterProvider supplies the live roster on each request.
type RosterProvider func() []RosterRow

// StartDebugServer exposes GET /roster, an operator-facing plain text
// table of the live groups. It is best effort and never blocks startup.
func StartDebugServer(log *slog.Logger, port int, provider RosterProvider) {
	mux := http.NewServeMux()
	mux.HandleFunc("/roster", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		RenderRoster(w, provider())
	})

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info("debug roster available", "addr", addr, "path", "/roster")
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("debug server stopped", "err", err)
		}
	}()
}

// RenderRoster writes the roster as an ASCII table.
func RenderRoster(w io.Writer, rows []RosterRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"GROUP", "TYPE", "ADMIN", "MEMBERS", "WAITING", "MUTED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, row := range rows {
		table.Append([]string{
			row.Name,
			row.Type,
			row.Admin,
			strconv.Itoa(row.Members),
			strconv.Itoa(row.Waiting),
			strconv.Itoa(row.Muted),
		})
	}
	table.Render()
}
