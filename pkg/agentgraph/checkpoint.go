package agentgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/observability"
)

// SaveCheckpoint writes state and the current node statuses as JSON to
// <dir>/<workflow>/<name>.json and returns the file path.
//
// Example:
//
//	state, err := g.Run(ctx, input)
//	if err != nil {
//	    path, _ := g.SaveCheckpoint(ctx, "after-failure", state, "./checkpoints")
//	    log.Printf("resume from %s", path)
//	}
func (g *Graph) SaveCheckpoint(ctx context.Context, name string, state map[string]any, dir string) (string, error) {
	store := checkpoint.NewFileStore(dir, checkpoint.FormatJSON)
	defer store.Close()
	return g.SaveCheckpointTo(ctx, store, name, state)
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
// It fails with ErrCheckpointNotFound if the file is absent or corrupt.
func (g *Graph) LoadCheckpoint(ctx context.Context, name, dir string) (*checkpoint.Checkpoint, error) {
	store := checkpoint.NewFileStore(dir, checkpoint.FormatJSON)
	defer store.Close()
	return g.LoadCheckpointFrom(ctx, store, name)
}

// SaveCheckpointTo saves state and the current node statuses to store,
// or to the graph's default store if store is nil. Values that cannot be
// serialized, such as functions, are replaced by "<unserializable T>"
// markers and logged.
func (g *Graph) SaveCheckpointTo(ctx context.Context, store checkpoint.Store, name string, state map[string]any) (string, error) {
	store, err := g.storeOr(store)
	if err != nil {
		return "", g.checkpointErr("save", name, err)
	}

	clean, dropped := checkpoint.Sanitize(state)
	observability.LogUnserializable(g.logger, name, dropped)

	cp := checkpoint.New(g.name, name, clean, g.statuses())
	location, size, err := checkpoint.Save(ctx, store, cp)
	if err != nil {
		return "", g.checkpointErr("save", name, err)
	}

	g.metrics.RecordCheckpoint(ctx, g.name, int64(size))
	observability.LogCheckpoint(g.logger, name, location, size)
	return location, nil
}

// LoadCheckpointFrom loads a checkpoint of this workflow from store, or
// from the graph's default store if store is nil. Pass the result to Run
// with WithResume.
func (g *Graph) LoadCheckpointFrom(ctx context.Context, store checkpoint.Store, name string) (*checkpoint.Checkpoint, error) {
	store, err := g.storeOr(store)
	if err != nil {
		return nil, g.checkpointErr("load", name, err)
	}

	cp, err := checkpoint.Load(ctx, store, g.name, name)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return nil, g.checkpointErr("load", name, ErrCheckpointNotFound)
	case errors.Is(err, checkpoint.ErrCorrupt):
		return nil, g.checkpointErr("load", name, fmt.Errorf("%w: %w", ErrCheckpointCorrupt, err))
	case err != nil:
		return nil, g.checkpointErr("load", name, err)
	}

	if cp.Workflow != g.name {
		return nil, g.checkpointErr("load", name,
			fmt.Errorf("%w: belongs to workflow %q", ErrCheckpointCorrupt, cp.Workflow))
	}
	return cp, nil
}

// ListCheckpoints lists this workflow's checkpoints in store (or the
// default store), ordered by name.
func (g *Graph) ListCheckpoints(ctx context.Context, store checkpoint.Store) ([]checkpoint.Info, error) {
	store, err := g.storeOr(store)
	if err != nil {
		return nil, g.checkpointErr("list", "", err)
	}
	infos, err := store.List(ctx, g.name)
	if err != nil {
		return nil, g.checkpointErr("list", "", err)
	}
	return infos, nil
}

// DeleteCheckpoint removes a checkpoint of this workflow. Deleting a
// missing checkpoint is not an error.
func (g *Graph) DeleteCheckpoint(ctx context.Context, store checkpoint.Store, name string) error {
	store, err := g.storeOr(store)
	if err != nil {
		return g.checkpointErr("delete", name, err)
	}
	if err := store.Delete(ctx, g.name, name); err != nil {
		return g.checkpointErr("delete", name, err)
	}
	return nil
}

func (g *Graph) storeOr(store checkpoint.Store) (checkpoint.Store, error) {
	if store != nil {
		return store, nil
	}
	if g.store != nil {
		return g.store, nil
	}
	return nil, ErrNoCheckpointStore
}

func (g *Graph) checkpointErr(op, name string, err error) error {
	observability.LogCheckpointError(g.logger, name, op, err)
	return &CheckpointError{Workflow: g.name, Name: name, Op: op, Err: err}
}
