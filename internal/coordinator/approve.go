package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/prime30/synapse-sub013/internal/filestore"
)

const writeConcurrency = 8

// ApplyApproved writes the final file contents of st to store, checking each
// file's version against the one the execution started from. Files already
// written are skipped. The returned state carries the new versions and a
// version_conflict error for every file that changed in the meantime; it is
// completed when every file was written.
func ApplyApproved(ctx context.Context, store filestore.Store, st ExecutionState) (ExecutionState, error) {
	out := st.clone()
	switch st.Status {
	case StatusAwaitingApproval, StatusCompleted:
	default:
		return out, fmt.Errorf("cannot apply changes of a %s execution", st.Status)
	}

	var todo []FileResult
	var idx []int
	for i, f := range out.Files {
		if f.Version == "" {
			todo = append(todo, f)
			idx = append(idx, i)
		}
	}
	written, ferrs := writeFiles(ctx, store, todo)
	for j, i := range idx {
		out.Files[i] = written[j]
	}
	// Write errors from an earlier attempt are replaced by this one's.
	out.FileErrors = slices.DeleteFunc(out.FileErrors, func(fe FileError) bool { return fe.TaskID == "" })
	out.FileErrors = append(out.FileErrors, ferrs...)
	if len(ferrs) > 0 {
		return out, fmt.Errorf("%d of %d file(s) not written", len(ferrs), len(todo))
	}
	out.Status = StatusCompleted
	return out, nil
}

// writeFiles writes files concurrently. Failures are reported per file and
// never stop the other writes.
func writeFiles(ctx context.Context, store filestore.Store, files []FileResult) ([]FileResult, []FileError) {
	out := slices.Clone(files)
	errs := make([]*FileError, len(files))

	var g errgroup.Group
	g.SetLimit(writeConcurrency)
	for i, f := range files {
		g.Go(func() error {
			v, err := store.Write(ctx, f.ID, f.Content, f.BaseVersion)
			if err != nil {
				kind := FileWriteFailed
				if errors.Is(err, filestore.ErrVersionConflict) {
					kind = FileVersionConflict
				}
				errs[i] = &FileError{FileID: f.ID, Kind: kind, Message: err.Error(), PatchIndex: -1}
				return nil
			}
			out[i].Version = v
			return nil
		})
	}
	_ = g.Wait()

	var ferrs []FileError
	for _, fe := range errs {
		if fe != nil {
			ferrs = append(ferrs, *fe)
		}
	}
	return out, ferrs
}
