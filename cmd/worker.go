/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/userhub/apiserver/config"
	"github.com/userhub/apiserver/internal/logger"
	"github.com/userhub/apiserver/internal/mq"
	"github.com/userhub/apiserver/internal/notify"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the email delivery worker",
	Long: `Runs the email delivery worker. It consumes queued email jobs
published by the API server and delivers them over SMTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var backend mq.Backend
		var err error
		switch cfg.Notifier.Backend {
		case "rabbitmq":
			backend, err = mq.NewRabbitMQClient(cfg.RabbitMQ)
		case "pubsub":
			backend, err = mq.NewPubSubClient(ctx, cfg.PubSub)
		default:
			return errors.New("NOTIFIER_BACKEND must be rabbitmq or pubsub")
		}
		if err != nil {
			return err
		}

		queue := mq.New(backend)
		defer func() {
			_ = queue.Close()
		}()

		sender := notify.NewSMTPSender(cfg.SMTP)
		log.Info("email worker started", "channel", cfg.Notifier.Channel)

		err = queue.Subscribe(ctx, cfg.Notifier.Channel, func(ctx context.Context, msg mq.Message) error {
			var email notify.Email
			if err := json.Unmarshal(msg.Data, &email); err != nil {
				// Undecodable jobs are dropped, not retried.
				log.Error("failed to decode email job", "message_id", msg.ID, "error", err.Error())
				return nil
			}
			if err := sender.Deliver(email); err != nil {
				log.Error("failed to deliver email",
					"message_id", msg.ID,
					"kind", email.Kind,
					"error", err.Error())
				return err
			}
			log.Info("email delivered", "message_id", msg.ID, "kind", email.Kind)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
