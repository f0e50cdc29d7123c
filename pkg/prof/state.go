package prof

import (
	"time"
)

// Proc is a processor and the entries recorded on it.
type Proc struct {
	ID       ProcID
	ProcKind uint32
	Entries  []ProcEntry
}

// ProcEntryKind discriminates what a processor entry represents.
type ProcEntryKind int

const (
	EntryTask ProcEntryKind = iota
	EntryMapperCall
	EntryRuntimeCall
)

// ProcEntry is one timed entry on a processor: a task or a profiled call.
type ProcEntry struct {
	EntryKind ProcEntryKind
	Op        OpID
	Label     string
	Range     TimeRange
}

// Mem is a memory and the instances placed in it.
type Mem struct {
	ID       MemID
	MemKind  uint32
	Capacity uint64
}

// ChannelKey identifies a data-movement lane. Fills use the zero Src.
type ChannelKey struct {
	Src MemID
	Dst MemID
}

// ChanEntryKind discriminates channel entries.
type ChanEntryKind int

const (
	EntryCopy ChanEntryKind = iota
	EntryFill
)

// ChanEntry is one timed data movement assigned to a channel.
type ChanEntry struct {
	EntryKind ChanEntryKind
	FEvent    EventID
	Op        OpID
	Size      uint64
	Range     TimeRange
}

// Channel is a logical data-movement lane between memories. Channels only
// exist after the fill/copy attachment passes have run.
type Channel struct {
	Key     ChannelKey
	Entries []ChanEntry
}

// Operation is a node in the operation hierarchy. Parent is zero for roots.
type Operation struct {
	ID         OpID
	Parent     OpID
	OpKind     string
	Provenance string
}

// Copy is a reconstructed copy. SrcInst and DstInst are zero until
// LinkInstances resolves them.
type Copy struct {
	FEvent  EventID
	Op      OpID
	Src     MemID
	Dst     MemID
	Size    uint64
	Range   TimeRange
	SrcInst InstUID
	DstInst InstUID
}

// Fill is a reconstructed fill. DstInst is zero until LinkInstances resolves it.
type Fill struct {
	FEvent  EventID
	Op      OpID
	Dst     MemID
	Size    uint64
	Range   TimeRange
	DstInst InstUID
}

// Instance is a physical instance reconstructed from the log. Name is the
// application-assigned name, empty when the instance was never named. Reads
// and Writes hold the finish events of copies/fills touching the instance,
// populated by LinkInstances.
type Instance struct {
	UID     InstUID
	InstID  uint64
	Mem     MemID
	Op      OpID
	Size    uint64
	Create  Timestamp
	Ready   Timestamp
	Destroy Timestamp
	Name    string
	Reads   []EventID
	Writes  []EventID
}

// State is the in-memory reconstruction of one execution trace. It is
// populated by a Deserializer through the Callbacks mechanism, then
// normalized by the post-processing passes. A State belongs to exactly one
// verification run and is never shared.
type State struct {
	callThreshold time.Duration

	Procs      map[ProcID]*Proc
	Mems       map[MemID]*Mem
	Channels   map[ChannelKey]*Channel
	Operations map[OpID]*Operation
	Copies     map[EventID]*Copy
	Fills      map[EventID]*Fill
	Instances  map[InstUID]*Instance

	// Buffered cross-references, consumed by the post-processing passes.
	pendingNames     map[InstUID]string
	pendingCopyLinks []CopyInstInfo
	pendingFillLinks []FillInstInfo
}

// NewState creates an empty State. Mapper and runtime calls shorter than
// callThreshold are dropped at ingestion; zero disables the filter.
func NewState(callThreshold time.Duration) *State {
	return &State{
		callThreshold: callThreshold,
		Procs:         make(map[ProcID]*Proc),
		Mems:          make(map[MemID]*Mem),
		Channels:      make(map[ChannelKey]*Channel),
		Operations:    make(map[OpID]*Operation),
		Copies:        make(map[EventID]*Copy),
		Fills:         make(map[EventID]*Fill),
		Instances:     make(map[InstUID]*Instance),
		pendingNames:  make(map[InstUID]string),
	}
}

// Callbacks is the record-application surface a State hands to a
// Deserializer. Each field applies one record kind to the owning State.
type Callbacks struct {
	ProcDesc         func(ProcDesc) error
	MemDesc          func(MemDesc) error
	OpDesc           func(OpDesc) error
	TaskInfo         func(TaskInfo) error
	MapperCallInfo   func(MapperCallInfo) error
	RuntimeCallInfo  func(RuntimeCallInfo) error
	CopyInfo         func(CopyInfo) error
	CopyInstInfo     func(CopyInstInfo) error
	FillInfo         func(FillInfo) error
	FillInstInfo     func(FillInstInfo) error
	InstTimelineInfo func(InstTimelineInfo) error
	InstanceNameInfo func(InstanceNameInfo) error
}

// Callbacks returns the record handlers bound to this State.
func (s *State) Callbacks() *Callbacks {
	return &Callbacks{
		ProcDesc:         s.applyProcDesc,
		MemDesc:          s.applyMemDesc,
		OpDesc:           s.applyOpDesc,
		TaskInfo:         s.applyTaskInfo,
		MapperCallInfo:   s.applyMapperCallInfo,
		RuntimeCallInfo:  s.applyRuntimeCallInfo,
		CopyInfo:         s.applyCopyInfo,
		CopyInstInfo:     s.applyCopyInstInfo,
		FillInfo:         s.applyFillInfo,
		FillInstInfo:     s.applyFillInstInfo,
		InstTimelineInfo: s.applyInstTimelineInfo,
		InstanceNameInfo: s.applyInstanceNameInfo,
	}
}

// Apply dispatches a record to the matching handler. Deserializers that
// already hold a typed record may call the Callbacks field directly instead.
func (c *Callbacks) Apply(r Record) error {
	switch rec := r.(type) {
	case ProcDesc:
		return c.ProcDesc(rec)
	case MemDesc:
		return c.MemDesc(rec)
	case OpDesc:
		return c.OpDesc(rec)
	case TaskInfo:
		return c.TaskInfo(rec)
	case MapperCallInfo:
		return c.MapperCallInfo(rec)
	case RuntimeCallInfo:
		return c.RuntimeCallInfo(rec)
	case CopyInfo:
		return c.CopyInfo(rec)
	case CopyInstInfo:
		return c.CopyInstInfo(rec)
	case FillInfo:
		return c.FillInfo(rec)
	case FillInstInfo:
		return c.FillInstInfo(rec)
	case InstTimelineInfo:
		return c.InstTimelineInfo(rec)
	case InstanceNameInfo:
		return c.InstanceNameInfo(rec)
	default:
		return errUnknownRecord(r)
	}
}

func (s *State) proc(id ProcID) *Proc {
	p, ok := s.Procs[id]
	if !ok {
		p = &Proc{ID: id}
		s.Procs[id] = p
	}
	return p
}

func (s *State) applyProcDesc(rec ProcDesc) error {
	p := s.proc(rec.Proc)
	p.ProcKind = rec.ProcKind
	return nil
}

func (s *State) applyMemDesc(rec MemDesc) error {
	s.Mems[rec.Mem] = &Mem{ID: rec.Mem, MemKind: rec.MemKind, Capacity: rec.Capacity}
	return nil
}

func (s *State) applyOpDesc(rec OpDesc) error {
	s.Operations[rec.Op] = &Operation{
		ID:         rec.Op,
		Parent:     rec.Parent,
		OpKind:     rec.OpKind,
		Provenance: rec.Provenance,
	}
	return nil
}

func (s *State) applyTaskInfo(rec TaskInfo) error {
	p := s.proc(rec.Proc)
	p.Entries = append(p.Entries, ProcEntry{
		EntryKind: EntryTask,
		Op:        rec.Op,
		Range:     rec.Range,
	})
	return nil
}

func (s *State) applyMapperCallInfo(rec MapperCallInfo) error {
	if s.belowCallThreshold(rec.Start, rec.Stop) {
		return nil
	}
	p := s.proc(rec.Proc)
	p.Entries = append(p.Entries, ProcEntry{
		EntryKind: EntryMapperCall,
		Op:        rec.Op,
		Label:     rec.CallKind,
		Range:     TimeRange{Start: rec.Start, Stop: rec.Stop},
	})
	return nil
}

func (s *State) applyRuntimeCallInfo(rec RuntimeCallInfo) error {
	if s.belowCallThreshold(rec.Start, rec.Stop) {
		return nil
	}
	p := s.proc(rec.Proc)
	p.Entries = append(p.Entries, ProcEntry{
		EntryKind: EntryRuntimeCall,
		Label:     rec.CallKind,
		Range:     TimeRange{Start: rec.Start, Stop: rec.Stop},
	})
	return nil
}

func (s *State) belowCallThreshold(start, stop Timestamp) bool {
	return s.callThreshold > 0 && stop.Sub(start) < s.callThreshold
}

func (s *State) applyCopyInfo(rec CopyInfo) error {
	s.Copies[rec.FEvent] = &Copy{
		FEvent: rec.FEvent,
		Op:     rec.Op,
		Src:    rec.Src,
		Dst:    rec.Dst,
		Size:   rec.Size,
		Range:  rec.Range,
	}
	return nil
}

func (s *State) applyCopyInstInfo(rec CopyInstInfo) error {
	s.pendingCopyLinks = append(s.pendingCopyLinks, rec)
	return nil
}

func (s *State) applyFillInfo(rec FillInfo) error {
	s.Fills[rec.FEvent] = &Fill{
		FEvent: rec.FEvent,
		Op:     rec.Op,
		Dst:    rec.Dst,
		Size:   rec.Size,
		Range:  rec.Range,
	}
	return nil
}

func (s *State) applyFillInstInfo(rec FillInstInfo) error {
	s.pendingFillLinks = append(s.pendingFillLinks, rec)
	return nil
}

func (s *State) applyInstTimelineInfo(rec InstTimelineInfo) error {
	inst, ok := s.Instances[rec.InstUID]
	if !ok {
		inst = &Instance{UID: rec.InstUID}
		s.Instances[rec.InstUID] = inst
	}
	inst.InstID = rec.InstID
	inst.Mem = rec.Mem
	inst.Op = rec.Op
	inst.Size = rec.Size
	inst.Create = rec.Create
	inst.Ready = rec.Ready
	inst.Destroy = rec.Destroy
	return nil
}

func (s *State) applyInstanceNameInfo(rec InstanceNameInfo) error {
	// The runtime may rename an instance; the last record wins. Resolution
	// onto the instance happens in LinkInstances.
	s.pendingNames[rec.InstUID] = rec.Name
	return nil
}
