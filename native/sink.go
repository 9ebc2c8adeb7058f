package native

import "github.com/google/uuid"

// Interface identities understood by QueryInterface.
var (
	IIDUnknown                   = uuid.MustParse("00000000-0000-0000-c000-000000000046")
	IIDFileOperationProgressSink = uuid.MustParse("04b0f1a7-9490-44bc-96e1-4296a31252e2")
)

// TransferFlags describe how the engine treats one item.
type TransferFlags uint32

const (
	TransferNormal                  TransferFlags = 0x0000
	TransferRenameExist             TransferFlags = 0x0001
	TransferOverwriteExist          TransferFlags = 0x0002
	TransferAllowDecryption         TransferFlags = 0x0004
	TransferNoSecurity              TransferFlags = 0x0008
	TransferCopyCreationTime        TransferFlags = 0x0010
	TransferCopyWriteTime           TransferFlags = 0x0020
	TransferUseFullAccess           TransferFlags = 0x0040
	TransferDeleteRecycleIfPossible TransferFlags = 0x0080
)

// FileAttributes are the attributes requested for a newly created item.
type FileAttributes uint32

const (
	FileAttributeReadOnly  FileAttributes = 0x0001
	FileAttributeHidden    FileAttributes = 0x0002
	FileAttributeDirectory FileAttributes = 0x0010
	FileAttributeNormal    FileAttributes = 0x0080
)

// ProgressSink is the header every progress sink starts with. The engine
// only ever sees this header and calls through Vtbl, passing the header
// back as this. Items handed to hooks are borrowed for the duration of the
// call; a hook that keeps one must AddRef it.
type ProgressSink struct {
	Vtbl *ProgressSinkVtbl
}

// ProgressSinkVtbl is the fixed, ordered function table of a progress sink.
type ProgressSinkVtbl struct {
	QueryInterface func(this *ProgressSink, iid uuid.UUID, out **ProgressSink) Status
	AddRef         func(this *ProgressSink) uint32
	Release        func(this *ProgressSink) uint32

	StartOperations  func(this *ProgressSink) Status
	FinishOperations func(this *ProgressSink, result Status) Status
	PreRenameItem    func(this *ProgressSink, flags TransferFlags, item *Item, newName string) Status
	PostRenameItem   func(this *ProgressSink, flags TransferFlags, item *Item, newName string, result Status, created *Item) Status
	PreMoveItem      func(this *ProgressSink, flags TransferFlags, item, dest *Item, newName string) Status
	PostMoveItem     func(this *ProgressSink, flags TransferFlags, item, dest *Item, newName string, result Status, created *Item) Status
	PreCopyItem      func(this *ProgressSink, flags TransferFlags, item, dest *Item, newName string) Status
	PostCopyItem     func(this *ProgressSink, flags TransferFlags, item, dest *Item, newName string, result Status, created *Item) Status
	PreDeleteItem    func(this *ProgressSink, flags TransferFlags, item *Item) Status
	PostDeleteItem   func(this *ProgressSink, flags TransferFlags, item *Item, result Status, recycled *Item) Status
	PreNewItem       func(this *ProgressSink, flags TransferFlags, dest *Item, newName string) Status
	PostNewItem      func(this *ProgressSink, flags TransferFlags, dest *Item, newName, templateName string, attrs FileAttributes, result Status, created *Item) Status
	UpdateProgress   func(this *ProgressSink, workTotal, workSoFar uint32) Status
	ResetTimer       func(this *ProgressSink) Status
	PauseTimer       func(this *ProgressSink) Status
	ResumeTimer      func(this *ProgressSink) Status
}

// VtblEntries is the number of entries in ProgressSinkVtbl.
const VtblEntries = 19
