package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

type tableClient interface {
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Tables persists tasks in Azure Table Storage, one partition per board scope.
type Tables struct {
	tasks  tableClient
	events queueClient
	logger *log.Logger
	now    func() time.Time
}

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// NewTables connects to the tasks table and, when eventsQueue is set, the task
// events queue.
func NewTables(connStr, tasksTable, eventsQueue string, logger *log.Logger) (*Tables, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, fmt.Errorf("tables client: %w", err)
	}
	var events queueClient
	if eventsQueue != "" {
		queueClientOptions := azqueue.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries:    5,
					TryTimeout:    time.Minute * 5,
					RetryDelay:    time.Second * 1,
					MaxRetryDelay: time.Second * 60,
					StatusCodes:   retryStatusCodes,
				},
			},
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
		if err != nil {
			return nil, fmt.Errorf("queue client: %w", err)
		}
		events = q
	}
	return newTables(svc.NewClient(tasksTable), events, logger), nil
}

func newTables(tasks tableClient, events queueClient, logger *log.Logger) *Tables {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Tables{tasks: tasks, events: events, logger: logger, now: time.Now}
}

func partitionFilter(scope string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(scope, "'", "''") + "'"
}

// ListTasks returns every task of the scope in storage order.
func (s *Tables) ListTasks(ctx context.Context, scope string) ([]domain.Task, error) {
	filter := partitionFilter(scope)
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, fmt.Errorf("decode task entity: %w", err)
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// InsertTask adds the task row. Tasks without an id get a new one.
func (s *Tables) InsertTask(ctx context.Context, scope string, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.UserID = scope
	payload, err := sonic.ConfigStd.Marshal(newTaskEntity(scope, t))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.tasks.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	s.publishEvent(ctx, TaskEvent{Type: EventTaskCreated, UserID: scope, TaskID: t.ID, ColumnID: t.ColumnID, Position: t.Position})
	return t, nil
}

// PatchTask merges the set fields of p into the row.
func (s *Tables) PatchTask(ctx context.Context, scope, id string, p domain.Patch) error {
	payload, err := sonic.ConfigStd.Marshal(newTaskUpdate(scope, id, p))
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("patch %s: %w", id, domain.ErrTaskNotFound)
		}
		return err
	}
	ev := TaskEvent{Type: EventTaskUpdated, UserID: scope, TaskID: id}
	if p.ColumnID != nil {
		ev.ColumnID = *p.ColumnID
	}
	if p.Position != nil {
		ev.Position = *p.Position
	}
	s.publishEvent(ctx, ev)
	return nil
}

// DeleteTask removes the row. Deleting a missing row succeeds.
func (s *Tables) DeleteTask(ctx context.Context, scope, id string) error {
	if _, err := s.tasks.DeleteEntity(ctx, scope, id, nil); err != nil && !isNotFound(err) {
		return err
	}
	s.publishEvent(ctx, TaskEvent{Type: EventTaskDeleted, UserID: scope, TaskID: id})
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
