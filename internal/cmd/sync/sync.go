package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/happytube/tmdbsync/internal"
	"github.com/happytube/tmdbsync/internal/config"
	"github.com/happytube/tmdbsync/internal/local"
	"github.com/happytube/tmdbsync/internal/s3"
	"github.com/happytube/tmdbsync/internal/syncer"
	"github.com/happytube/tmdbsync/internal/tmdb"
)

func NewCommand() *cobra.Command {
	var configPath string
	var output string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refreshes the TMDB listing snapshots. Payloads are fetched and preserved with a run summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c := config.Default()
			if configPath != "" {
				var err error
				c, err = config.NewFromFile(configPath)
				if err != nil {
					return err
				}
			}
			if output != "" {
				c.Sync.Output = output
			}

			logger, err := newLogger(c.Global.Logger.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("tmdbsync.sync")

			// Credentials are checked before anything touches the network.
			apiKey := viper.GetString("api_key")
			bearerToken := viper.GetString("bearer_token")
			if apiKey == "" || bearerToken == "" {
				return errors.New("missing TMDB credentials: TMDB_API_KEY and TMDB_BEARER_TOKEN must be set")
			}

			rid := uuid.Must(uuid.NewUUID())
			l = l.With(zap.String("run_id", rid.String()))
			l.Info("starting sync!", zap.String("output", c.Sync.Output))

			client := tmdb.NewClient(
				bearerToken,
				tmdb.WithBaseURL(c.Sync.BaseURL),
				tmdb.WithLanguage(c.Sync.Language),
				tmdb.WithPage(c.Sync.Page),
				tmdb.WithTimeout(time.Duration(c.Sync.Timeout)),
				tmdb.WithLogger(l),
			)

			repositories := []internal.Repository{
				local.New(c.Sync.Output, local.WithLogger(l)),
			}

			if c.Mirror != nil {
				switch c.Mirror.Type {
				case "s3":
					repositories = append(repositories, s3.New(
						s3.WithLogger(l),
						s3.WithRegion(c.Mirror.S3.Region),
						s3.WithBucket(c.Mirror.S3.Bucket),
						s3.WithPrefix(c.Mirror.S3.Prefix),
						s3.WithEndpoint(c.Mirror.S3.Endpoint),
						s3.WithForcePathStyle(c.Mirror.S3.ForcePathStyle),
					))
				default:
					return fmt.Errorf("unknown mirror type: %s", c.Mirror.Type)
				}
			}

			s := syncer.New(
				syncer.WithLogger(l),
				syncer.WithClient(client),
				syncer.WithRepositories(repositories...),
			)

			sum, err := s.Run(ctx)
			if err != nil {
				return err
			}

			l.Info("sync complete",
				zap.Int("success_files", sum.SuccessFiles),
				zap.Int("total_files", sum.TotalFiles),
				zap.Int("total_records", sum.TotalRecords),
			)

			if sum.SuccessFiles == 0 {
				return errors.New("all endpoints failed")
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory, overrides the config file")

	viper.BindEnv("api_key", "TMDB_API_KEY")
	viper.BindEnv("bearer_token", "TMDB_BEARER_TOKEN")

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
