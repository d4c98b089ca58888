package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	// gorm.io/driver/sqlite registers this too; the explicit import pins the cgo driver
	// the sqlite dialect is built against.
	_ "github.com/mattn/go-sqlite3"

	_ "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm/sqlite"
)

// embeddedConfig embeds the default YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(embeddedConfig).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
