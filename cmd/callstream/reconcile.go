package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"conversation-stream/internal/evaluagent"
	"conversation-stream/internal/exportlog"
	"conversation-stream/internal/ledger"
	"conversation-stream/internal/reconcile"
)

func (a *app) reconcileCmd() *cobra.Command {
	var (
		poll    time.Duration
		window  time.Duration
		fromLog bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Copy published evaluation outcomes into the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Database.URL == "" {
				return fmt.Errorf("DB_URL not set")
			}
			ctx := cmd.Context()
			db := ledger.New(a.cfg.Database.URL, a.cfg.Database.Key, a.log.Entry)

			keys := map[string]string{"default": a.cfg.Evaluagent.Key}
			if fromLog {
				var err error
				if keys, err = a.contractKeys(); err != nil {
					return err
				}
			}

			for contract, key := range keys {
				if key == "" {
					return fmt.Errorf("no API key for %s", contract)
				}
				log := a.log.WithField("contract", contract)
				r := reconcile.New(db, evaluagent.New(a.cfg.Evaluagent.URL, key, a.log.Entry), window, log)

				var res reconcile.Result
				var err error
				if poll > 0 {
					res, err = r.Poll(ctx, reconcile.Schedule(poll))
				} else {
					res, err = r.Once(ctx)
				}
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", contract, err)
				}
				log.WithFields(logrus.Fields{
					"updated":   res.Updated,
					"remaining": res.Remaining,
				}).Info("reconciled")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 0, "keep polling for up to this long while outcomes are pending")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "how far back to look for published evaluations")
	cmd.Flags().BoolVar(&fromLog, "from-export-log", false, "reconcile every contract with a missing outcome in the export log")
	return cmd
}

// contractKeys resolves an API key for each contract the export log has
// missing outcomes for.
func (a *app) contractKeys() (map[string]string, error) {
	rows, err := exportlog.Load(a.cfg.Paths.ExportLog)
	if err != nil {
		return nil, err
	}
	contracts := exportlog.MissingOutcomes(rows)
	a.log.WithField("contracts", len(contracts)).Info("contracts with missing outcomes")
	kf, err := exportlog.LoadKeyFile(a.cfg.Paths.KeyFile)
	if err != nil {
		return nil, err
	}
	keys := map[string]string{}
	for _, c := range contracts {
		k, err := kf.Lookup(c)
		if err != nil {
			a.log.WithError(err).Warn("skipping contract")
			continue
		}
		keys[c] = k
	}
	return keys, nil
}
