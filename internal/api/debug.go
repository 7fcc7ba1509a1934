package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachDebug mounts the admin debugging routes on mux: the tsweb debug
// index and a tailsql console over the run history database. tsweb only
// admits loopback and tailnet clients.
func AttachDebug(mux *http.ServeMux, db *sql.DB) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://canopy.db", db, &tailsql.DBOptions{
		Label: "Canopy runs",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}
