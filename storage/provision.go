package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

// Provision creates the given tables and queues. Existing ones are left alone;
// empty names are skipped.
func Provision(ctx context.Context, connStr string, tables, queues []string, logger *log.Logger) error {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if err := createTables(ctx, connStr, tables, logger); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := createQueues(ctx, connStr, queues, logger); err != nil {
		return fmt.Errorf("create queues: %w", err)
	}
	return nil
}

type tableCreator interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

type queueCreator interface {
	Create(ctx context.Context, options *azqueue.CreateOptions) (azqueue.CreateResponse, error)
}

func createTables(ctx context.Context, connStr string, names []string, logger *log.Logger) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := ensureTable(ctx, svc.NewClient(name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.WithField("table", name).Info("table ready")
	}
	return nil
}

func ensureTable(ctx context.Context, c tableCreator) error {
	_, err := c.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string, logger *log.Logger) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if err := ensureQueue(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.WithField("queue", name).Info("queue ready")
	}
	return nil
}

func ensureQueue(ctx context.Context, q queueCreator) error {
	_, err := q.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}
