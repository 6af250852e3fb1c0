package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"studio-backend/internal/bootstrap"
	"studio-backend/internal/shared/config"
	"studio-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	settler  *workerproc.Settler
)

func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	settler = workerproc.NewSettler(app.BalanceService, app.RunsRepo)
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		msg, _, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			// Unparseable records can never settle; reporting them as
			// handled removes them from the queue.
			log.Printf("drop unparseable record %s: %v", record.MessageId, err)
			continue
		}
		if err := settler.Settle(ctx, msg); err != nil {
			var settleErr workerproc.ErrSettle
			if errors.As(err, &settleErr) && settleErr.Retryable {
				failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
				continue
			}
			log.Printf("terminal settlement failure for %s: %v", msg.UsageID, err)
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
