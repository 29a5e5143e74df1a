package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sqlite2json/dbexport"
)

// openReader is a package-level variable to allow test injection.
var openReader = dbexport.Open

// withReader opens src for the duration of fn. SIGINT and SIGTERM cancel the
// context handed to fn; the connection is closed once fn returns.
func withReader(ctx context.Context, src source, fn func(ctx context.Context, r *dbexport.Reader) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := openReader(ctx, src.Path, src.Dialect)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(ctx, r)
}
