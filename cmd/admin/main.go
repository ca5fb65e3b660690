// Command admin runs administrative actions against the AuthKeeper store
// with the server's configuration:
//
//	admin deactivate <user-id>
//	admin purge
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
)

// valuedFlags are the server flags that take a value; their values are not
// positional arguments.
var valuedFlags = []string{"-c", "-config", "-a", "-w", "-k", "-d", "-s", "-x", "-t", "-r", "-b", "-l", "-e"}

type adminService interface {
	Deactivate(ctx context.Context, userID string) error
	PurgeTokens(ctx context.Context) (int64, error)
}

func run(ctx context.Context, svc adminService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: admin deactivate <user-id> | admin purge")
	}

	switch args[0] {
	case "deactivate":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin deactivate <user-id>")
		}
		if err := svc.Deactivate(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "user %s deactivated\n", args[1])
	case "purge":
		n, err := svc.PurgeTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "purged %d refresh tokens\n", n)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer app.Close()

	if err := run(ctx, app.UserService(), flagx.Positional(os.Args[1:], valuedFlags), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		app.Close()
		os.Exit(1)
	}
}
