// Command smartmark is the terminal client: it drives the dashboard
// controller against a smartmarkd server, or purely against local storage
// in guest mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartmark/smartmark/internal/apiclient"
	"github.com/smartmark/smartmark/internal/clientconfig"
	"github.com/smartmark/smartmark/internal/dashboard"
	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/localstore"
	"github.com/smartmark/smartmark/internal/logger"
)

const usage = `usage: smartmark [-config path] <command> [args]

commands:
  list              print bookmarks (server list when a token is configured)
  add <title> <url> add a bookmark
  rm <id>           delete a bookmark
  sync              push unsynced local bookmarks to the server
  watch             follow realtime changes until interrupted
  onboard [skip]    complete onboarding (default: prepare for sign-in)
`

func main() {
	configPath := flag.String("config", clientconfig.DefaultPath(), "config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "smartmark: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	cfg, err := clientconfig.Load(configPath)
	if err != nil {
		return err
	}

	local, err := localstore.New(cfg.StateDir)
	if err != nil {
		return err
	}

	log := logger.New("warn", true)
	defer func() { _ = log.Sync() }()

	ctrl := dashboard.New(local, log)
	if err := ctrl.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A configured token means the OAuth dance already happened elsewhere.
	if cfg.Token != "" {
		api := apiAdapter{apiclient.New(cfg.Server, cfg.Token)}
		if err := ctrl.SignIn(ctx, api); err != nil {
			return err
		}
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		return list(ctrl)
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("add needs a title and a url")
		}
		return report(ctrl, ctrl.Add(ctx, rest[0], rest[1]))
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("rm needs a bookmark id")
		}
		return report(ctrl, ctrl.Delete(ctx, rest[0]))
	case "sync":
		return report(ctrl, ctrl.SyncLocal(ctx))
	case "watch":
		return watch(ctx, ctrl)
	case "onboard":
		skip := len(rest) > 0 && rest[0] == "skip"
		return ctrl.CompleteOnboarding(!skip)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(ctrl *dashboard.Controller) error {
	bookmarks := ctrl.Bookmarks()
	if len(bookmarks) == 0 {
		fmt.Println("no bookmarks yet")
		return nil
	}
	for _, b := range bookmarks {
		fmt.Printf("%s  %s  %s  (%s)\n",
			b.CreatedAt.Format("2006-01-02 15:04"), b.ID, b.Title, b.URL)
	}
	if pending := ctrl.Pending(); pending > 0 {
		fmt.Printf("%d local bookmark(s) pending sync - run 'smartmark sync'\n", pending)
	}
	return nil
}

func watch(ctx context.Context, ctrl *dashboard.Controller) error {
	if ctrl.State() != dashboard.StateAuthenticated {
		return fmt.Errorf("watch needs a configured token")
	}
	ctrl.OnEvent(func(event domain.ChangeEvent) {
		switch {
		case event.New != nil:
			fmt.Printf("%s  %s  %s\n", event.Kind, event.New.ID, event.New.Title)
		case event.Old != nil:
			fmt.Printf("%s  %s  %s\n", event.Kind, event.Old.ID, event.Old.Title)
		}
	})
	fmt.Printf("connection: %s - press Ctrl-C to stop\n", ctrl.Connection())
	<-ctx.Done()
	return ctrl.SignOut()
}

// report prints the controller's status line, which carries both success
// summaries and user-facing failure messages.
func report(ctrl *dashboard.Controller, err error) error {
	if status := ctrl.Status(); status != "" {
		fmt.Println(status)
		// The status already explains the failure to the user.
		if err != nil {
			os.Exit(1)
		}
	}
	return err
}

// apiAdapter bridges *apiclient.Client to the controller's API interface:
// SubscribeChanges must return the interface type.
type apiAdapter struct {
	*apiclient.Client
}

func (a apiAdapter) SubscribeChanges(ctx context.Context) (dashboard.Subscription, error) {
	stream, err := a.Client.SubscribeChanges(ctx)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
