package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/orrn/printfair/internal/db"
)

type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	Signature string      `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID         int64   `json:"job_id"`
	UserID        string  `json:"user_id"`
	Status        string  `json:"status"`
	ReceiptNumber string  `json:"receipt_number,omitempty"`
	RawCost       float64 `json:"raw_cost"`
	PriorityScore float64 `json:"priority_score,omitempty"`
	AdminNotes    string  `json:"admin_notes,omitempty"`
}

type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	webhookID int64
	event     string
	payload   *Payload
	attempt   int
}

// Sender fans job lifecycle events out to the registered webhooks from a
// small worker pool, with retry on server-side failures.
type Sender struct {
	webhooks    *db.WebhookOperations
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *task
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewSender(webhooks *db.WebhookOperations, config Config) *Sender {
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	return &Sender{
		webhooks: webhooks,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryCount:  config.RetryCount,
		retryDelay:  config.RetryDelay,
		workerCount: config.WorkerCount,
		queue:       make(chan *task, config.QueueSize),
		stopCh:      make(chan struct{}),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// SendJobEvent enqueues one delivery per webhook subscribed to the event.
// It never blocks: when the queue is full the delivery is dropped and
// logged.
func (s *Sender) SendJobEvent(event string, job *db.PrintJob) {
	data := &JobEventData{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		ReceiptNumber: job.ReceiptNumber,
		RawCost:       job.RawCost,
		PriorityScore: job.PriorityScore,
		AdminNotes:    job.AdminNotes,
	}

	hooks, err := s.webhooks.ListActiveWebhooksForEvent(context.Background(), event)
	if err != nil {
		log.Printf("[webhook] failed to get webhooks for event %s: %v", event, err)
		return
	}

	for _, hook := range hooks {
		t := &task{
			webhookID: hook.ID,
			event:     event,
			payload: &Payload{
				Event:     event,
				Timestamp: time.Now(),
				Data:      data,
			},
		}

		select {
		case s.queue <- t:
		default:
			log.Printf("[webhook] queue full, dropping webhook %d for event %s", hook.ID, event)
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				log.Printf("[webhook worker %d] failed to send webhook %d for event %s after %d attempts: %v",
					id, t.webhookID, t.event, t.attempt, err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	hook, err := s.webhooks.GetWebhookByID(context.Background(), t.webhookID)
	if err != nil {
		return fmt.Errorf("get webhook: %w", err)
	}

	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(hook, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			log.Printf("[webhook] client error for webhook %d, not retrying: %v", hook.ID, err)
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			log.Printf("[webhook] retry %d/%d for webhook %d in %v: %v",
				t.attempt, s.retryCount, hook.ID, backoff, err)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(hook *db.Webhook, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if hook.Secret != "" {
		payload.Signature = signPayload(dataBytes, hook.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", hook.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}
