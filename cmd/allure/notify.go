package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/queue"
)

func notifyCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Consume domain events and log them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			h := queue.LogHandler(e.log)
			ev := e.cfg.Events
			switch ev.Driver {
			case config.EventsRabbitMQ:
				e.log.Info().Str("queue", ev.Queue).Msg("consuming rabbitmq")
				return queue.ConsumeRabbit(ctx, ev.RabbitMQURL, ev.Queue, h, e.log)
			case config.EventsKafka:
				e.log.Info().Str("topic", ev.KafkaTopic).Str("group", group).Msg("consuming kafka")
				return queue.ConsumeKafka(ctx, ev.KafkaBroker, ev.KafkaTopic, group, h, e.log)
			default:
				return fmt.Errorf("notify needs EVENTS_DRIVER=rabbitmq or kafka, got %q", ev.Driver)
			}
		},
	}
	cmd.Flags().StringVar(&group, "group", "allure-notify", "kafka consumer group")
	return cmd
}
