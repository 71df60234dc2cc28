//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"net/url"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// initDB opens the studio database with the pure Go driver. The config's
// DSN uses the cgo driver's underscore parameters so one DatabasePath works
// under both build modes; this driver wants them in _pragma form instead.
func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite", rewriteDSN(dataSource))
}

// rewriteDSN converts parameters like _journal_mode=WAL into
// _pragma=journal_mode(WAL). Parameters without the underscore prefix pass
// through untouched.
func rewriteDSN(dataSource string) string {
	path, query, found := strings.Cut(dataSource, "?")
	if !found {
		return dataSource
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return dataSource
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := url.Values{}
	for _, key := range keys {
		for _, val := range values[key] {
			if pragma, ok := strings.CutPrefix(key, "_"); ok && pragma != "pragma" {
				out.Add("_pragma", pragma+"("+val+")")
			} else {
				out.Add(key, val)
			}
		}
	}
	return path + "?" + out.Encode()
}
