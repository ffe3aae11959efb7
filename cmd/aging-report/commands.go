package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/auth"
	"complaint-analytics-service/internal/config"
	"complaint-analytics-service/internal/db"
	"complaint-analytics-service/internal/export"
	"complaint-analytics-service/internal/ingest"
	"complaint-analytics-service/internal/logger"
	"complaint-analytics-service/internal/model"
	"complaint-analytics-service/internal/repository"
	"complaint-analytics-service/internal/service"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("AGING")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "aging-report",
		Short:         "Aging reports over complaint CSV exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.String("lob", "bbdaily-b2c", "keep only rows of this line of business; empty keeps everything")
	flags.String("from", "", "range start, YYYY-MM-DD (default: earliest date in the data)")
	flags.String("to", "", "range end, YYYY-MM-DD (default: latest date in the data)")
	flags.String("anchor", "", "bucket anchor date, YYYY-MM-DD (default: range end)")
	flags.StringP("out", "o", "", "write to this file instead of stdout")
	flags.StringP("format", "f", "csv", "output format: csv, xlsx or json")
	flags.BoolP("verbose", "v", false, "verbose logging to stderr")

	root.AddCommand(newReportCommand(v), newWatchlistCommand(v), newTokenCommand(v))
	return root
}

func newReportCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report FILE...",
		Short: "Group complaints and count them per aging bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd, v, args)
			if err != nil {
				return err
			}
			report, err := session.reports.GenerateReport(cmd.Context(), session.principal, session.dataset.ID, service.ReportRequest{
				GroupKeys:   v.GetStringSlice("group"),
				Buckets:     v.GetString("buckets"),
				Daily:       v.GetBool("daily"),
				EntityField: v.GetString("entity"),
				TotalLabel:  v.GetString("total-label"),
				Sort:        v.GetString("sort"),
				Filter:      session.filter,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), v, report, "aging")
		},
	}

	cmd.Flags().StringSliceP("group", "g", []string{model.FieldCity, model.FieldHub}, "group key columns")
	cmd.Flags().StringP("buckets", "b", aging.PresetAging, "bucket preset (aging, cumulative, refund), label:start:end list, or none")
	cmd.Flags().Bool("daily", false, "add one column per day of the range")
	cmd.Flags().String("entity", "", "collect distinct values of this column per row")
	cmd.Flags().String("total-label", aging.DefaultTotalLabel, "name of the range total column")
	cmd.Flags().String("sort", "total", "row order: keys, total, or a bucket label")
	return cmd
}

func newWatchlistCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watchlist FILE...",
		Short: "Rank customers by refund incidents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd, v, args)
			if err != nil {
				return err
			}
			watchlist, err := session.reports.CustomerWatchlist(cmd.Context(), session.principal, session.dataset.ID, session.filter)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), v, watchlist, "watchlist")
		},
	}
}

func newTokenCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("secret")
			if secret == "" {
				return fmt.Errorf("--secret or JWT_ACCESS_SECRET is required")
			}
			userID := uuid.New()
			if raw := v.GetString("user"); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = parsed
			}
			principal := model.Principal{UserID: userID, Role: model.Role(strings.ToUpper(v.GetString("role")))}
			token, err := auth.NewParser(secret).Issue(principal, v.GetDuration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().String("secret", "", "HS256 signing secret")
	cmd.Flags().String("user", "", "user id (default: random)")
	cmd.Flags().String("role", string(model.RoleAnalyst), "role claim: ANALYST or ADMIN")
	cmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	_ = v.BindEnv("secret", "JWT_ACCESS_SECRET")
	return cmd
}

type session struct {
	reports   *service.ReportService
	principal model.Principal
	dataset   model.Dataset
	filter    model.ReportFilter
}

// openSession loads the files into a throwaway in-memory store so the command
// runs the same pipeline as the service.
func openSession(cmd *cobra.Command, v *viper.Viper, paths []string) (*session, error) {
	log := logger.NewConsole(cmd.ErrOrStderr(), v.GetBool("verbose"))

	filter, err := parseFilter(v)
	if err != nil {
		return nil, err
	}

	database, err := db.New(&config.Config{Environment: "cli"}, log)
	if err != nil {
		return nil, err
	}
	reports := service.NewReportService(repository.NewDatasetRepository(database), service.Options{
		Segment:        strings.TrimSpace(v.GetString("lob")),
		DefaultBuckets: aging.PresetAging,
	}, log)

	sources := make([]ingest.Source, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sources = append(sources, ingest.Source{Name: filepath.Base(path), Body: f})
	}

	principal := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dataset, err := reports.Upload(ctx, principal, "cli", sources)
	if err != nil {
		return nil, err
	}
	logIngest(log, dataset)

	return &session{reports: reports, principal: principal, dataset: dataset, filter: filter}, nil
}

func logIngest(log zerolog.Logger, dataset model.Dataset) {
	if dataset.Ingest == nil {
		return
	}
	for _, fe := range dataset.Ingest.FileErrors {
		log.Warn().Str("file", fe.File).Msg(fe.Error)
	}
	log.Debug().
		Int("rows_read", dataset.Ingest.RowsRead).
		Int("rows_kept", dataset.Ingest.RowsKept).
		Str("from", dataset.Available.From.Format(model.DateLayout)).
		Str("to", dataset.Available.To.Format(model.DateLayout)).
		Msg("dataset loaded")
}

func parseFilter(v *viper.Viper) (model.ReportFilter, error) {
	var filter model.ReportFilter
	targets := []struct {
		key string
		dst *time.Time
	}{
		{"from", &filter.Range.From},
		{"to", &filter.Range.To},
		{"anchor", &filter.Anchor},
	}
	for _, t := range targets {
		raw := strings.TrimSpace(v.GetString(t.key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return filter, fmt.Errorf("--%s must be YYYY-MM-DD: %w", t.key, err)
		}
		*t.dst = parsed
	}
	return filter, nil
}

func writeOutput(stdout io.Writer, v *viper.Viper, table export.Tabular, sheet string) error {
	format, err := export.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	out := stdout
	if path := v.GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	} else if format == export.FormatXLSX {
		return fmt.Errorf("xlsx output needs --out")
	}

	if format == export.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}
	return export.Write(out, format, table, sheet)
}
