package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/config"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
)

const usage = `usage: console <command> [flags]

commands:
  list   [-limit N] [-offset N]
  show   <id>
  status [-force] [-delivered-at RFC3339] <id> <pending|accepted|delivered|rejected>
  amend  [-comment TEXT] [-delivered-at RFC3339] <id>
  delete <id>`

func main() {
	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stderr, "console", cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	sess, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		logger.Error("AUTH_TOKEN is missing or invalid", "error", err)
		os.Exit(1)
	}
	if !sess.IsAdmin() {
		logger.Warn("token has no admin role; the order service will refuse changes", "user_id", sess.UserID)
	}

	api := ord.NewClient(cfg.OrderSvcBaseURL, &http.Client{Timeout: cfg.HTTPTimeout})
	app := &app{console: ord.NewConsole(api, logger), sess: sess, out: os.Stdout}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
	defer cancel()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	console *ord.Console
	sess    *auth.Session
	out     io.Writer
}

var errUsage = errors.New(usage)

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list, err := a.console.Refresh(ctx, a.sess, *limit, *offset)
		if err != nil {
			return err
		}
		return a.printList(list)

	case "show":
		if len(args) != 1 {
			return errUsage
		}
		o, err := a.console.Load(ctx, a.sess, args[0])
		if err != nil {
			return err
		}
		return a.printOrder(o)

	case "status":
		fs := flag.NewFlagSet("status", flag.ContinueOnError)
		force := fs.Bool("force", false, "confirm a change outside pending→accepted→delivered / pending→rejected")
		deliveredAt := fs.String("delivered-at", "", "actual delivery time (RFC3339)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errUsage
		}
		at, err := parseTime(*deliveredAt)
		if err != nil {
			return err
		}
		id, status := fs.Arg(0), ord.Status(fs.Arg(1))
		if _, err := a.console.Load(ctx, a.sess, id); err != nil {
			return err
		}
		o, err := a.console.ChangeStatus(ctx, a.sess, id, ord.Change{Status: status, ActualDeliveryTime: at, Confirmed: *force})
		if errors.Is(err, ord.ErrInvalidTransition) && !*force {
			return fmt.Errorf("%w (re-run with -force to confirm)", err)
		}
		if err != nil {
			return err
		}
		return a.printOrder(o)

	case "amend":
		fs := flag.NewFlagSet("amend", flag.ContinueOnError)
		comment := fs.String("comment", "", "order comment")
		deliveredAt := fs.String("delivered-at", "", "actual delivery time (RFC3339)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		var c *string
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "comment" {
				c = comment
			}
		})
		at, err := parseTime(*deliveredAt)
		if err != nil {
			return err
		}
		if c == nil && at == nil {
			return errors.New("amend needs -comment or -delivered-at")
		}
		if at != nil {
			if _, err := a.console.Load(ctx, a.sess, fs.Arg(0)); err != nil {
				return err
			}
		}
		o, err := a.console.Amend(ctx, a.sess, fs.Arg(0), c, at)
		if err != nil {
			return err
		}
		return a.printOrder(o)

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		if err := a.console.Delete(ctx, a.sess, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s\n", args[0])
		return nil
	}
	return errUsage
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid -delivered-at: %w", err)
	}
	return &t, nil
}

func (a *app) printList(list []ord.Order) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tRESTAURANT\tSTATUS\tFINAL\tCREATED")
	for _, o := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", o.ID, o.UserID, o.RestaurantID, o.Status, o.FinalPrice, o.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *app) printOrder(o *ord.Order) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}
