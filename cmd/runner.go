package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

const version = "0.1.0"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sqlx.DB
	ownsDB     bool
	store      *repositories.Store
	storage    services.MediaStorage
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	openURL    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A DB is used as is; without one the runner opens the configured database on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sqlx.DB
	Storage    services.MediaStorage
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		storage:    opts.Storage,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    shared.OpenBrowser,
	}
	if opts.DB != nil {
		r.store = repositories.NewStore(opts.DB)
	}
	return r
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "zylofm",
		Usage:   "Serve and administer the ZyloFM mix and radio platform",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("ZYLOFM_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.loadConfig,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, usersCommand, mixesCommand, stationsCommand, exportCommand, moderateCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig replaces the runner's config with the file named by --config when it exists.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	r.configPath = path
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.logger.Debug("loaded config", "path", path)
	return ctx, nil
}

// database returns the store, opening the configured database on first use.
func (r *Runner) database() (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	r.logger.Debug("opening database", "driver", r.config.Database.Driver, "dsn", r.config.Database.DSN)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.ownsDB = true
	r.store = repositories.NewStore(db)
	return r.store, nil
}

// migratedStore returns the store after applying pending migrations.
func (r *Runner) migratedStore() (*repositories.Store, error) {
	store, err := r.database()
	if err != nil {
		return nil, err
	}
	applied, err := shared.RunMigrations(store.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		r.logger.Info("applied migrations", "count", applied)
	}
	return store, nil
}

func (r *Runner) mediaStorage() (services.MediaStorage, error) {
	if r.storage != nil {
		return r.storage, nil
	}
	storage, err := services.NewMediaStorage(r.config.Storage, r.httpClient)
	if err != nil {
		return nil, err
	}
	r.storage = storage
	return storage, nil
}

// reviewer resolves --as to an admin account. An empty email acts without a reviewer.
func (r *Runner) reviewer(store *repositories.Store, email string) (*models.User, error) {
	if email == "" {
		return nil, nil
	}
	user, err := store.Users.GetByEmail(shared.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: %s is not an admin", shared.ErrForbidden, user.Email)
	}
	return user, nil
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.ownsDB && r.db != nil {
		err := r.db.Close()
		r.db = nil
		r.store = nil
		return err
	}
	return nil
}

// printProgress writes updates until progress is closed; the returned channel closes after the last write.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
