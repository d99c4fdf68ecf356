// reindex rebuilds the similarity index from the task database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"taskflow-ai/internal/config"
	"taskflow-ai/internal/di"
	"taskflow-ai/internal/tasks"
)

func main() {
	owner := flag.Int64("owner", 0, "Only reindex this owner's tasks (0 for all owners)")
	task := flag.Int64("task", 0, "Only reindex this task id")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, scope{OwnerID: *owner, TaskID: *task}, os.Stdout); err != nil {
		cancel()
		log.Fatalf("Reindex failed: %v", err)
	}
}

// scope selects what to reindex. TaskID wins over OwnerID.
type scope struct {
	OwnerID int64
	TaskID  int64
}

func run(ctx context.Context, cfg *config.Config, sc scope, out io.Writer, opts ...di.Option) error {
	container, err := di.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	if container.TaskSource == nil {
		return errors.New("DATABASE_URL must point at the task database")
	}

	if sc.TaskID > 0 {
		written, err := container.Syncer.ReindexTask(ctx, sc.TaskID)
		if err != nil {
			return err
		}
		printTask(out, sc.TaskID, written)
		return nil
	}

	result, err := container.Syncer.Reindex(ctx, sc.OwnerID)
	printResult(out, sc.OwnerID, result)
	return err
}

func printTask(out io.Writer, taskID int64, written bool) {
	if written {
		fmt.Fprintf(out, "Task %d: %s\n", taskID, color.GreenString("indexed"))
		return
	}
	fmt.Fprintf(out, "Task %d: %s\n", taskID, color.YellowString("not indexed"))
}

func printResult(out io.Writer, ownerID int64, r tasks.ReindexResult) {
	scope := "all owners"
	if ownerID > 0 {
		scope = fmt.Sprintf("owner %d", ownerID)
	}
	fmt.Fprintf(out, "Reindexed %s: %s, %s, %s\n",
		scope,
		color.GreenString("%d indexed", r.Indexed),
		color.YellowString("%d skipped", r.Skipped),
		color.RedString("%d failed", r.Failed),
	)
}
