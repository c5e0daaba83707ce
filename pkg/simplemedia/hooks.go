package simplemedia

import (
	"context"
	"log/slog"
)

// Hooks holds lifecycle callbacks registered on the Service. Hooks run
// synchronously on the goroutine performing the mutation, in registration
// order.
type Hooks struct {
	// BeforeUpdate runs after the last committed record is loaded and before
	// the proposed record overwrites it.
	BeforeUpdate []BeforeUpdateHook

	// BeforeDelete runs before a record is removed.
	BeforeDelete []BeforeDeleteHook

	// AfterWrite runs once a create or update is durable.
	AfterWrite []AfterWriteHook

	// OnError receives failures from AfterWrite hooks and absorbed lifecycle errors.
	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]interface{} // Custom metadata passed between hooks and back to the caller
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]interface{}),
	}
}

// MetadataThumbnail is the HookContext metadata key under which the thumbnail
// generator stores its ThumbnailResult.
const MetadataThumbnail = "thumbnail_result"

// BeforeUpdateHook is called with the last committed record and the proposed replacement
type BeforeUpdateHook func(hctx *HookContext, persisted, proposed Record) error

// BeforeDeleteHook is called before a record is removed
type BeforeDeleteHook func(hctx *HookContext, record Record) error

// AfterWriteHook is called after a create or update is durable
type AfterWriteHook func(hctx *HookContext, record Record) error

// ErrorHook is called when an error occurs
type ErrorHook func(hctx *HookContext, operation string, err error)

// OnBeforeUpdate registers hook.
func (h *Hooks) OnBeforeUpdate(hook BeforeUpdateHook) {
	h.BeforeUpdate = append(h.BeforeUpdate, hook)
}

// OnBeforeDelete registers hook.
func (h *Hooks) OnBeforeDelete(hook BeforeDeleteHook) {
	h.BeforeDelete = append(h.BeforeDelete, hook)
}

// OnAfterWrite registers hook.
func (h *Hooks) OnAfterWrite(hook AfterWriteHook) {
	h.AfterWrite = append(h.AfterWrite, hook)
}

// OnFailure registers hook.
func (h *Hooks) OnFailure(hook ErrorHook) {
	h.OnError = append(h.OnError, hook)
}

// Merge appends every hook of other after the hooks already in h.
func (h *Hooks) Merge(other *Hooks) {
	if other == nil {
		return
	}
	h.BeforeUpdate = append(h.BeforeUpdate, other.BeforeUpdate...)
	h.BeforeDelete = append(h.BeforeDelete, other.BeforeDelete...)
	h.AfterWrite = append(h.AfterWrite, other.AfterWrite...)
	h.OnError = append(h.OnError, other.OnError...)
}

// Hook execution helpers

func (h *Hooks) executeBeforeUpdate(ctx context.Context, persisted, proposed Record) error {
	if len(h.BeforeUpdate) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeUpdate {
		if err := hook(hctx, persisted, proposed); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeBeforeDelete(ctx context.Context, record Record) error {
	if len(h.BeforeDelete) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeDelete {
		if err := hook(hctx, record); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

// executeAfterWrite runs the AfterWrite chain. The write is already durable,
// so hook failures go to OnError and the remaining hooks still run.
func (h *Hooks) executeAfterWrite(ctx context.Context, record Record) *HookContext {
	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterWrite {
		if err := hook(hctx, record); err != nil {
			h.executeOnError(ctx, "after_write", err)
		}
		if hctx.StopChain {
			break
		}
	}
	return hctx
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	if len(h.OnError) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
	}
}

// LoggingHooks logs every lifecycle point at debug level and hook failures
// at error level.
func LoggingHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		BeforeUpdate: []BeforeUpdateHook{
			func(hctx *HookContext, persisted, proposed Record) error {
				logger.DebugContext(hctx.Context, "record update", "kind", proposed.RecordKind(), "id", proposed.RecordID())
				return nil
			},
		},
		BeforeDelete: []BeforeDeleteHook{
			func(hctx *HookContext, record Record) error {
				logger.DebugContext(hctx.Context, "record delete", "kind", record.RecordKind(), "id", record.RecordID())
				return nil
			},
		},
		AfterWrite: []AfterWriteHook{
			func(hctx *HookContext, record Record) error {
				logger.DebugContext(hctx.Context, "record written", "kind", record.RecordKind(), "id", record.RecordID())
				return nil
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				logger.ErrorContext(hctx.Context, "lifecycle error", "operation", operation, "error", err)
			},
		},
	}
}
