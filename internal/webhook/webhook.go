// Package webhook exposes the task/event registry over HTTP as an
// alternative front-end (spec.md §6), following the teacher's
// gin.Context-handler-per-route style (internal/api/task.go) rather than
// owning its own transport framework.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/gin-gonic/gin"
)

// IncomingRemoteEvent is the body shape of a remotely published event,
// per spec.md §6.
type IncomingRemoteEvent struct {
	ID   string          `json:"id"`
	Name string          `json:"n"`
	Data json.RawMessage `json:"d"`
}

// IncomingRemoteTask is the body shape of a remotely invoked task, per
// spec.md §6.
type IncomingRemoteTask struct {
	ID            string          `json:"id"`
	TaskName      string          `json:"tn"`
	Data          json.RawMessage `json:"d"`
	ExpireSeconds float64         `json:"es"`
	RetriesSoFar  int             `json:"r"`
	Trigger       models.Trigger  `json:"tr"`
}

type incomingBody struct {
	IsTask  bool            `json:"t,omitempty"`
	IsEvent bool            `json:"e,omitempty"`
	Body    json.RawMessage `json:"b"`
}

// Publisher is the subset of bus behavior the webhook handler needs to act
// on an incoming remote invocation: it either runs the task inline and
// reports the outcome (direct task), or records an event for fanout.
type Publisher interface {
	InvokeRemoteTask(header http.Header, task IncomingRemoteTask) (any, error)
	PublishRemoteEvent(header http.Header, event IncomingRemoteEvent) error
}

// Handler binds a Registry behind an HTTP handler, optionally verifying an
// HMAC-SHA256 signature over the raw request body. saltKey is a random,
// process-local key mixed into the comparison so the constant-time check
// never compares attacker-influenced bytes directly against a value
// derived solely from the shared signing secret.
type Handler struct {
	registry *registry.Registry
	signKey  []byte
	saltKey  []byte
}

// NewHandler builds a webhook Handler. signKey may be nil/empty to disable
// signature verification.
func NewHandler(reg *registry.Registry, signKey []byte) *Handler {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		panic("webhook: failed to generate salt key: " + err.Error())
	}
	return &Handler{registry: reg, signKey: signKey, saltKey: salt}
}

// Register mounts the webhook route on r, in the teacher's
// one-route-per-concern gin style.
func (h *Handler) Register(r gin.IRouter, path string, publisher Publisher) {
	r.POST(path, func(c *gin.Context) {
		h.serve(c, publisher)
	})
}

func (h *Handler) serve(c *gin.Context, publisher Publisher) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown body"})
		return
	}

	if len(h.signKey) > 0 {
		sig := c.GetHeader("x-body-signature")
		if sig == "" {
			c.String(http.StatusForbidden, "forbidden: missing x-body-signature")
			return
		}
		if !h.verifySignature(raw, sig) {
			c.String(http.StatusForbidden, "forbidden: invalid signature")
			return
		}
	}

	var body incomingBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown body"})
		return
	}

	switch {
	case body.IsTask:
		var task IncomingRemoteTask
		if err := json.Unmarshal(body.Body, &task); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unknown body"})
			return
		}
		result, err := publisher.InvokeRemoteTask(c.Request.Header, task)
		if err != nil {
			slog.Error("webhook task invocation failed", "task_name", task.TaskName, "error", err)
		}
		c.JSON(http.StatusOK, mapCompletionDataArg(result))

	case body.IsEvent:
		var event IncomingRemoteEvent
		if err := json.Unmarshal(body.Body, &event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unknown body"})
			return
		}
		if err := publisher.PublishRemoteEvent(c.Request.Header, event); err != nil {
			slog.Error("webhook event publish failed", "name", event.Name, "error", err)
		}
		c.JSON(http.StatusOK, mapCompletionDataArg(nil))

	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown body"})
	}
}

// mapCompletionDataArg wraps a handler's result into the JSON body returned
// to the webhook caller, the same flattening FlattenOutput applies to a
// task's stored output.
func mapCompletionDataArg(result any) any {
	if result == nil {
		return gin.H{}
	}
	return registry.FlattenOutput(result)
}

// verifySignature re-HMACs both the expected and the presented signature
// under a process-local random key before comparing, so the final compare
// never touches attacker-controlled bytes directly.
func (h *Handler) verifySignature(body []byte, headerSig string) bool {
	presented, err := hex.DecodeString(headerSig)
	if err != nil {
		return false
	}

	expected := hmac.New(sha256.New, h.signKey)
	expected.Write(body)

	saltedExpected := hmac.New(sha256.New, h.saltKey)
	saltedExpected.Write(expected.Sum(nil))

	saltedPresented := hmac.New(sha256.New, h.saltKey)
	saltedPresented.Write(presented)

	return hmac.Equal(saltedExpected.Sum(nil), saltedPresented.Sum(nil))
}
