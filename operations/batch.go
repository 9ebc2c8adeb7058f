package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/brettbedarf/shellstore/config"
	"github.com/brettbedarf/shellstore/internal/apartment"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
)

// Op names one kind of batch request.
type Op int

const (
	OpCopy Op = iota + 1
	OpMove
	OpDelete
	OpRename
	OpCreate
)

var opNames = map[Op]string{
	OpCopy:   "copy",
	OpMove:   "move",
	OpDelete: "delete",
	OpRename: "rename",
	OpCreate: "create",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOp parses the lower-case name of an Op.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if strings.EqualFold(s, name) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// postKind is the event kind that reports the outcome of o.
func (o Op) postKind() Kind {
	switch o {
	case OpCopy:
		return ItemCopied
	case OpMove:
		return ItemMoved
	case OpDelete:
		return ItemDeleted
	case OpRename:
		return ItemRenamed
	case OpCreate:
		return ItemCreated
	}
	return 0
}

// Request is one item of a batch, expressed as plain paths so it can be
// built on any goroutine.
type Request struct {
	Op Op
	// Source is the item to copy, move, delete or rename.
	Source string
	// Dest is the destination folder of a copy, move or create.
	Dest string
	// Name is the new name of a rename or create, or the optional target
	// name of a copy or move.
	Name string
	// Template seeds the content of a created file.
	Template string
	// Folder marks a created item, or a Source that no longer exists, as a
	// folder.
	Folder bool
}

// Result is the outcome of Perform.
type Result struct {
	// Status is the overall outcome: the first failure, or StatusOK.
	Status  native.Status
	Aborted bool
	// Items holds one entry per request, including requests that could not
	// be queued.
	Items []ItemResult
}

// Perform runs batch as a single transaction on a fresh apartment thread.
// Handlers see every engine event as it happens. Requests that cannot be
// queued are reported in the result and do not stop the others. The error
// is non-nil only if the transaction could not run at all.
func Perform(ctx context.Context, cfg *config.Config, batch []Request, handlers ...Handler) (*Result, error) {
	return apartment.Do(ctx, func() (*Result, error) {
		engine, st := NewEngine(cfg)
		if st.Failed() {
			return nil, fmt.Errorf("failed to create engine: %w", st)
		}
		defer engine.Close()
		for _, h := range handlers {
			engine.OnAny(h)
		}

		var rejected []ItemResult
		for _, req := range batch {
			if st := queue(engine, req); st.Failed() {
				rejected = append(rejected, ItemResult{
					Kind:   req.Op.postKind(),
					Source: req.Source,
					Dest:   req.Dest,
					Name:   req.Name,
					Status: st,
				})
			}
		}

		res := &Result{Status: engine.PerformAllContext(ctx)}
		res.Aborted = engine.AnyOperationsAborted()
		res.Items = append(rejected, engine.Results()...)
		if res.Status.Succeeded() && len(rejected) > 0 {
			res.Status = rejected[0].Status
		}
		return res, nil
	})
}

// queue resolves req and adds it to engine. Resolved storables are closed
// once queued; the engine holds its own references.
func queue(engine *Engine, req Request) native.Status {
	logger := util.GetLogger("operations.Perform")

	var dest *storage.Folder
	if req.Op == OpCopy || req.Op == OpMove || req.Op == OpCreate {
		s, ok := storage.TryParse(req.Dest)
		if !ok {
			return native.StatusPathNotFound
		}
		defer s.Close()
		f, ok := s.(*storage.Folder)
		if !ok {
			return native.StatusInvalidArg
		}
		dest = f
	}

	var src storage.Storable
	if req.Op != OpCreate {
		s, ok := storage.TryParse(req.Source)
		if !ok {
			// Missing sources still reach the engine so the failure is
			// reported through its events.
			logger.Debug().Str("path", req.Source).Msg("source not found")
			if s, ok = storage.ParseSimple(req.Source, req.Folder); !ok {
				return native.StatusInvalidArg
			}
		}
		defer s.Close()
		src = s
	}

	switch req.Op {
	case OpCopy:
		return engine.QueueCopy(src, dest, req.Name)
	case OpMove:
		return engine.QueueMove(src, dest, req.Name)
	case OpDelete:
		return engine.QueueDelete(src)
	case OpRename:
		return engine.QueueRename(src, req.Name)
	case OpCreate:
		attrs := native.FileAttributeNormal
		if req.Folder {
			attrs = native.FileAttributeDirectory
		}
		return engine.QueueCreate(dest, attrs, req.Name, req.Template)
	}
	return native.StatusInvalidArg
}
