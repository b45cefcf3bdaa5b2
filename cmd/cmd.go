// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the JSON API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the health endpoint in a browser once listening",
			},
			&cli.BoolFlag{
				Name:  "no-probe",
				Usage: "Disable periodic radio station probing",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand initializes config and schema
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write the default config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the resolved configuration instead of writing a file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// usersCommand manages accounts
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage user accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an account with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Password (at least 8 characters)",
						Required: true,
						Sources:  cli.EnvVars("ZYLOFM_PASSWORD"),
					},
					&cli.StringFlag{
						Name:  "role",
						Usage: "listener, dj or admin",
						Value: "listener",
					},
				},
				Action: r.UsersCreate,
			},
			{
				Name:  "list",
				Usage: "List accounts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "Only list this role",
					},
					&cli.StringFlag{
						Name:  "search",
						Usage: "Match name or email",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of users to return",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.UsersList,
			},
			{
				Name:  "role",
				Usage: "Change a user's role",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
					&cli.StringArg{Name: "role"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "as",
						Usage: "Email of the admin making the change",
					},
				},
				Action: r.UsersRole,
			},
		},
	}
}

// mixesCommand reviews and maintains mixes
func mixesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mixes",
		Usage: "Review and maintain mixes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List mixes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "pending, approved or rejected",
					},
					&cli.StringFlag{
						Name:  "search",
						Usage: "Match title",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of mixes to return",
						Value: 100,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.MixesList,
			},
			{
				Name:  "approve",
				Usage: "Approve a pending mix",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "as",
						Usage: "Email of the reviewing admin",
					},
				},
				Action: r.MixesApprove,
			},
			{
				Name:  "reject",
				Usage: "Reject a pending mix",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Reason shown to the DJ",
					},
					&cli.StringFlag{
						Name:  "as",
						Usage: "Email of the reviewing admin",
					},
				},
				Action: r.MixesReject,
			},
			{
				Name:  "feature",
				Usage: "Feature an approved mix on the home page",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "off",
						Usage: "Remove the mix from the featured list",
					},
				},
				Action: r.MixesFeature,
			},
			{
				Name:  "purge",
				Usage: "Delete media of mixes rejected long ago",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Minimum time since rejection",
						Value: 30 * 24 * time.Hour,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "List candidates without deleting anything",
					},
				},
				Action: r.MixesPurge,
			},
		},
	}
}

// stationsCommand checks radio streams
func stationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stations",
		Usage: "Radio station operations",
		Commands: []*cli.Command{
			{
				Name:  "probe",
				Usage: "Check every station stream and record its status",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep probing on stations.probe_interval until interrupted",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.StationsProbe,
			},
		},
	}
}

// exportCommand writes reports
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export reports",
		Commands: []*cli.Command{
			{
				Name:  "mixes",
				Usage: "Export mixes as CSV, Markdown or text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "pending, approved or rejected",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, markdown or text",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (defaults to mixes.<ext>, - for stdout)",
					},
				},
				Action: r.ExportMixes,
			},
		},
	}
}

// moderateCommand opens the review console
func moderateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "moderate",
		Usage: "Review pending mixes and DJ requests in an interactive console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "as",
				Usage:    "Email of the reviewing admin",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where console activity is logged",
				Value: "tmp/zylofm-moderate.log",
			},
		},
		Action: r.Moderate,
	}
}
