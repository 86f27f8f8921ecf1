package main

import (
	"os"

	"github.com/spf13/cobra"

	"conversation-stream/internal/config"
	"conversation-stream/internal/logger"
	"conversation-stream/internal/media"
	"conversation-stream/internal/pipeline"
	"conversation-stream/internal/tts"
)

type app struct {
	cfgPath string
	cfg     *config.Root
	log     *logger.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "callstream",
		Short:         "Generate synthetic chat and call contacts for evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to config.yaml (default config/$CONFIG_ENV/config.yaml)")
	root.AddCommand(a.ttsCmd(), a.streamCmd(), a.reconcileCmd())

	if err := root.Execute(); err != nil {
		log := a.log
		if log == nil {
			log = logger.New()
		}
		log.WithError(err).Error("callstream failed")
		os.Exit(1)
	}
}

func (a *app) init() error {
	a.log = logger.New()
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log.SetLevel(cfg.LogLevel)
	a.log.WithField("service", "callstream").WithField("environment", cfg.Environment).Debug("config loaded")
	return nil
}

func (a *app) transcoder() *media.FFmpeg {
	return media.NewFFmpeg(a.cfg.Media.FFmpeg, a.cfg.Media.FFprobe, a.log.Entry)
}

func (a *app) pipeline(tc pipeline.Transcoder) *pipeline.Pipeline {
	c := a.cfg
	synth := tts.New(c.TTS.URL, c.TTS.RatePerSecond, config.DurSeconds(c.TTS.TimeoutSeconds), a.log.Entry)
	return pipeline.New(pipeline.Options{
		WorkRoot:      c.Paths.Work,
		OutputDir:     c.Paths.Output,
		AgentVoice:    tts.Voice{Name: "agent", Language: c.Voices.Agent},
		CustomerVoice: tts.Voice{Name: "customer", Language: c.Voices.Customer},
		Concurrency:   c.TTS.Concurrency,
	}, synth, tc, a.log)
}
