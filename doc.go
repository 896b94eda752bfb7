// Package mockphone bulk-generates synthetic mobile phone numbers
// and loads them into a SQLite database as fast as possible.
//
// The work is split into one quota per CPU by Plan.
// Each producer goroutine generates its whole quota into a single Batch
// and sends it, exactly once, into a Funnel sized to hold every batch,
// so producers never wait on the database.
// A single writer goroutine owns the database: it opens a Sink,
// drains the Funnel and inserts every value inside one transaction,
// committing once after the Funnel is closed.
// The Funnel is closed by Run only after every producer has returned,
// and closing it with a batch missing is a panic rather than silent data loss.
//
// Two storage engines implement Sink.
// The sqlite engine (package sqlstore) goes through database/sql with
// PRAGMAs that trade durability for speed, and appends to an existing table.
// The raw engine (package rawstore) writes the SQLite file format directly
// into a temporary file and renames it into place at commit;
// it is faster but can only create new files.
//
// Either way rows are all-or-nothing: nothing from a run is visible
// until the single commit, and any failure abandons the whole run.
package mockphone
