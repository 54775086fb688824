package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"sendermap/internal/config"
)

func registerSignOut(app *cli.App, cfg *config.Config) {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "signout",
		Usage: "Forget the OAuth token and the cached counts (display settings are kept)",
		Action: func(c *cli.Context) error {
			e, err := setup(c, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.svc.SignOut(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Signed out.")
			return nil
		},
	})
}
