package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"conversation-stream/internal/transcript"
)

func (a *app) ttsCmd() *cobra.Command {
	var cleanFailed bool
	cmd := &cobra.Command{
		Use:   "tts [ticket.json ...]",
		Short: "Render ticket transcripts into stereo call recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			tickets := args
			if len(tickets) == 0 {
				var err error
				tickets, err = transcript.List(a.cfg.Paths.Tickets)
				if err != nil {
					return err
				}
			}
			if len(tickets) == 0 {
				return fmt.Errorf("no tickets found in %s", a.cfg.Paths.Tickets)
			}
			a.log.WithField("tickets", len(tickets)).Info("got list of tickets")

			p := a.pipeline(a.transcoder())
			for _, t := range tickets {
				run, err := p.Execute(cmd.Context(), t)
				if err != nil {
					if run != nil {
						if cleanFailed {
							_ = run.Cleanup()
						} else {
							a.log.WithField("work_dir", run.WorkDir).Warn("intermediate clips kept for inspection")
						}
					}
					return fmt.Errorf("failed to process %s: %w", t, err)
				}
				a.log.WithFields(logrus.Fields{"ticket": t, "output": run.OutputPath}).Info("generated audio")
				if err := run.Cleanup(); err != nil {
					a.log.WithError(err).Warn("work dir cleanup failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanFailed, "clean-failed", false, "remove the working directory of a failed run")
	return cmd
}
