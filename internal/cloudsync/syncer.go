// Package cloudsync pushes cloud-flagged variables and lists to blob
// storage. Pushes are best-effort: every snapshot overwrites the previous
// one and failures are logged, never surfaced to the mutation that
// triggered them.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"blockcore/internal/core"
	blobcore "blockcore/internal/infra/blob/core"
	"blockcore/pkg/domain"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// Payload is the JSON document written per push.
type Payload struct {
	ProjectID string            `json:"project_id"`
	SyncID    string            `json:"sync_id"`
	PushedAt  time.Time         `json:"pushed_at"`
	Variables []domain.Variable `json:"variables"`
	Lists     []domain.Variable `json:"lists"`
}

// Syncer implements the service's cloud sync collaborator over a blob
// store.
type Syncer struct {
	store     blobcore.Store
	projectID string
	logger    core.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// New constructs a syncer writing under projects/<projectID>/.
func New(store blobcore.Store, projectID string, logger core.Logger) *Syncer {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &Syncer{
		store:     store,
		projectID: projectID,
		logger:    logger,
		timeout:   defaultTimeout,
	}
}

// Key returns the blob key the syncer writes to.
func (s *Syncer) Key() string {
	return "projects/" + s.projectID + "/cloud-variables.json"
}

// Push serializes the entities and writes them in a detached goroutine.
// The caller's context is not used: the push must survive the mutation
// returning and must never block it.
func (s *Syncer) Push(_ context.Context, variables, lists []domain.Variable) {
	payload := Payload{
		ProjectID: s.projectID,
		SyncID:    uuid.NewString(),
		PushedAt:  time.Now().UTC(),
		Variables: variables,
		Lists:     lists,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		raw, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("cloud sync encode failed", "sync_id", payload.SyncID, "error", err.Error())
			return
		}
		_, err = s.store.Put(ctx, s.Key(), bytes.NewReader(raw), blobcore.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"sync_id": payload.SyncID},
		})
		if err != nil {
			s.logger.Warn("cloud sync push failed", "sync_id", payload.SyncID, "error", err.Error())
			return
		}
		s.logger.Debug("cloud sync pushed", "sync_id", payload.SyncID,
			"variables", len(payload.Variables), "lists", len(payload.Lists))
	}()
}

// Wait blocks until in-flight pushes finish. Test hook.
func (s *Syncer) Wait() { s.wg.Wait() }
