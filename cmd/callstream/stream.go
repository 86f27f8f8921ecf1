package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"conversation-stream/internal/contact"
	"conversation-stream/internal/evaluagent"
	"conversation-stream/internal/ledger"
	"conversation-stream/internal/media"
	"conversation-stream/internal/transcript"
	"conversation-stream/internal/types"
)

func (a *app) streamCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Send synthetic chat and call contacts to the evaluation platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Evaluagent.Key == "" {
				return fmt.Errorf("EVALUAGENT_API_KEY not set")
			}
			if !a.cfg.Stream.Tickets && !a.cfg.Stream.Calls {
				return fmt.Errorf("nothing to stream: enable tickets or calls")
			}
			ctx := cmd.Context()
			ea := evaluagent.New(a.cfg.Evaluagent.URL, a.cfg.Evaluagent.Key, a.log.Entry)
			agents, err := ea.Agents(ctx)
			if err != nil {
				return err
			}
			tickets, err := transcript.List(a.cfg.Paths.Tickets)
			if err != nil {
				return err
			}
			if len(tickets) == 0 {
				return fmt.Errorf("no tickets found in %s", a.cfg.Paths.Tickets)
			}

			var db *ledger.Client
			if a.cfg.Database.URL != "" {
				db = ledger.New(a.cfg.Database.URL, a.cfg.Database.Key, a.log.Entry)
			} else {
				a.log.Warn("DB_URL not set, contacts will not be recorded in the ledger")
			}

			rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
			for i := 0; i < count; i++ {
				ticket := tickets[rnd.IntN(len(tickets))]
				agent, err := contact.PickAgent(agents, rnd)
				if err != nil {
					return err
				}
				if a.cfg.Stream.Tickets {
					if err := a.sendChat(ctx, ea, db, agent, ticket); err != nil {
						return err
					}
				}
				if a.cfg.Stream.Calls {
					if err := a.sendCall(ctx, ea, db, agent, ticket); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of tickets to stream")
	return cmd
}

func (a *app) sendChat(ctx context.Context, ea *evaluagent.Client, db *ledger.Client, agent types.Agent, ticket string) error {
	utts, err := transcript.Read(ticket)
	if err != nil {
		return err
	}
	c := contact.Chat(agent, ticket, utts, time.Now())
	return a.send(ctx, ea, db, c)
}

func (a *app) sendCall(ctx context.Context, ea *evaluagent.Client, db *ledger.Client, agent types.Agent, ticket string) error {
	tc := a.transcoder()
	run, err := a.pipeline(tc).Execute(ctx, ticket)
	if err != nil {
		return err
	}
	if err := run.Cleanup(); err != nil {
		a.log.WithError(err).Warn("work dir cleanup failed")
	}

	seconds, err := handlingTime(ctx, tc, run.OutputPath)
	if err != nil {
		return err
	}
	storagePath, err := ea.UploadAudio(ctx, run.OutputPath)
	if err != nil {
		return err
	}
	c := contact.Call(agent, ticket, run.Utterances, storagePath, seconds, time.Now())
	a.log.WithFields(logrus.Fields{"handling_time": seconds, "responses": len(c.Data.Responses)}).Info("call contact built")
	return a.send(ctx, ea, db, c)
}

func handlingTime(ctx context.Context, p media.Prober, path string) (float64, error) {
	s, err := p.Duration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("audio length: %w", err)
	}
	return s, nil
}

func (a *app) send(ctx context.Context, ea *evaluagent.Client, db *ledger.Client, c contact.Contact) error {
	log := a.log.WithFields(logrus.Fields{
		"reference": c.Data.Reference,
		"filename":  c.Data.Metadata.Filename,
		"agent":     c.Data.AgentEmail,
		"channel":   c.Data.Channel,
	})
	res, err := ea.SendContact(ctx, c)
	if err != nil {
		return err
	}
	log.WithField("message", res.Message).Info("contact sent")
	if db == nil {
		return nil
	}
	if _, err := db.Insert(ctx, c.Record()); err != nil {
		return fmt.Errorf("ledger insert: %w", err)
	}
	return nil
}
