package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"recruitment/internal/config"
	"recruitment/internal/metrics"
	"recruitment/internal/notify"
	"recruitment/internal/queue"
	"recruitment/internal/store"
)

// Worker drains the mail queue and delivers over SMTP. Delivery is
// best-effort: a failed job is logged and dropped, never retried.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "recruitment:mail")
	}

	sender := notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.MailSkip)
	if cfg.MailSkip {
		log.Println("MAIL_SKIP set, mail jobs will be logged instead of delivered")
	}

	payloads, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for mail jobs...")
	for payload := range payloads {
		var job notify.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			log.Printf("bad mail job payload: %v", err)
			continue
		}
		if err := sender.Send(ctx, job.To, job.Subject, job.Body); err != nil {
			metrics.MailsFailed.Inc()
			log.Printf("mail to %s failed: %v", job.To, err)
			continue
		}
		metrics.MailsSent.Inc()
		log.Printf("mail to %s sent", job.To)
	}

	log.Println("worker stopped")
}
