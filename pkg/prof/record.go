package prof

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProcID identifies a processor. The owning node occupies the top bits.
type ProcID uint64

// MemID identifies a memory. Same node encoding as ProcID.
type MemID uint64

// OpID identifies an operation in the operation hierarchy. Zero means "no
// operation" and is never a valid key.
type OpID uint64

// InstUID is the unique id of a physical instance. Uniqueness is by UID, not
// by name: several instances may share a name or carry none.
type InstUID uint64

// EventID identifies the finish event of a copy or fill, used to link
// per-instance records back to the owning data movement.
type EventID uint64

// NodeID identifies a node of the distributed runtime.
type NodeID uint32

// Node returns the node that owns this processor.
func (p ProcID) Node() NodeID { return NodeID(p >> 40) }

// Node returns the node that owns this memory.
func (m MemID) Node() NodeID { return NodeID(m >> 40) }

// NodeSet restricts ingestion to a subset of nodes. A nil NodeSet admits
// every node.
type NodeSet map[NodeID]struct{}

// Contains reports whether the set admits node n. A nil set admits all nodes.
func (s NodeSet) Contains(n NodeID) bool {
	if s == nil {
		return true
	}
	_, ok := s[n]
	return ok
}

// ParseNodeSet parses a comma-separated list of node ids ("0,2,5"). An empty
// string yields a nil set, meaning no restriction.
func ParseNodeSet(spec string) (NodeSet, error) {
	if spec == "" {
		return nil, nil
	}
	set := make(NodeSet)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q: %w", part, err)
		}
		set[NodeID(n)] = struct{}{}
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}

// Timestamp is a point in time recorded by the profiler, in microseconds
// since runtime start.
type Timestamp uint64

// Sub returns the duration elapsed from earlier to t. Returns zero if the
// timestamps are out of order (clock skew in merged node logs).
func (t Timestamp) Sub(earlier Timestamp) time.Duration {
	if earlier > t {
		return 0
	}
	return time.Duration(t-earlier) * time.Microsecond
}

// TimeRange is the lifecycle of a profiled event. Create and Ready may be
// zero for record kinds that only track execution.
type TimeRange struct {
	Create Timestamp
	Ready  Timestamp
	Start  Timestamp
	Stop   Timestamp
}

// RecordKind discriminates the record variants a log can carry.
type RecordKind int

const (
	KindProcDesc RecordKind = iota
	KindMemDesc
	KindOpDesc
	KindTaskInfo
	KindMapperCallInfo
	KindRuntimeCallInfo
	KindCopyInfo
	KindCopyInstInfo
	KindFillInfo
	KindFillInstInfo
	KindInstTimelineInfo
	KindInstanceNameInfo
)

var recordKindNames = map[RecordKind]string{
	KindProcDesc:         "Proc Desc",
	KindMemDesc:          "Mem Desc",
	KindOpDesc:           "Op Desc",
	KindTaskInfo:         "Task Info",
	KindMapperCallInfo:   "Mapper Call Info",
	KindRuntimeCallInfo:  "Runtime Call Info",
	KindCopyInfo:         "Copy Info",
	KindCopyInstInfo:     "Copy Inst Info",
	KindFillInfo:         "Fill Info",
	KindFillInstInfo:     "Fill Inst Info",
	KindInstTimelineInfo: "Inst Timeline",
	KindInstanceNameInfo: "Instance Name",
}

func (k RecordKind) String() string {
	if name, ok := recordKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RecordKind(%d)", int(k))
}

// Record is a single deserialized log record, before it is applied to a
// State. FilterInput predicates operate on this interface.
type Record interface {
	Kind() RecordKind
}

// ProcDesc declares a processor.
type ProcDesc struct {
	Proc     ProcID
	ProcKind uint32
}

// MemDesc declares a memory.
type MemDesc struct {
	Mem      MemID
	MemKind  uint32
	Capacity uint64
}

// OpDesc declares an operation and its parent in the operation hierarchy.
// Parent is zero for root operations.
type OpDesc struct {
	Op         OpID
	Parent     OpID
	OpKind     string
	Provenance string
}

// TaskInfo records one task execution on a processor.
type TaskInfo struct {
	Op    OpID
	Proc  ProcID
	Range TimeRange
}

// MapperCallInfo records a mapper call on a processor. Calls shorter than the
// state's call threshold are dropped at ingestion.
type MapperCallInfo struct {
	Proc     ProcID
	Op       OpID
	CallKind string
	Start    Timestamp
	Stop     Timestamp
}

// RuntimeCallInfo records an internal runtime call on a processor. Subject to
// the same call threshold as mapper calls.
type RuntimeCallInfo struct {
	Proc     ProcID
	CallKind string
	Start    Timestamp
	Stop     Timestamp
}

// CopyInfo records a data copy between two memories.
type CopyInfo struct {
	FEvent EventID
	Op     OpID
	Src    MemID
	Dst    MemID
	Size   uint64
	Range  TimeRange
}

// CopyInstInfo links a copy to its source and destination instances.
type CopyInstInfo struct {
	FEvent EventID
	Src    InstUID
	Dst    InstUID
}

// FillInfo records a fill of a destination memory.
type FillInfo struct {
	FEvent EventID
	Op     OpID
	Dst    MemID
	Size   uint64
	Range  TimeRange
}

// FillInstInfo links a fill to the instance it wrote.
type FillInstInfo struct {
	FEvent EventID
	Dst    InstUID
}

// InstTimelineInfo records the lifetime of a physical instance in a memory.
type InstTimelineInfo struct {
	InstUID InstUID
	InstID  uint64
	Mem     MemID
	Op      OpID
	Size    uint64
	Create  Timestamp
	Ready   Timestamp
	Destroy Timestamp
}

// InstanceNameInfo attaches an application-assigned name to an instance.
// Names may be logged before the instance's timeline record; they are only
// resolved onto instances by LinkInstances.
type InstanceNameInfo struct {
	InstUID InstUID
	Name    string
}

func (ProcDesc) Kind() RecordKind         { return KindProcDesc }
func (MemDesc) Kind() RecordKind          { return KindMemDesc }
func (OpDesc) Kind() RecordKind           { return KindOpDesc }
func (TaskInfo) Kind() RecordKind         { return KindTaskInfo }
func (MapperCallInfo) Kind() RecordKind   { return KindMapperCallInfo }
func (RuntimeCallInfo) Kind() RecordKind  { return KindRuntimeCallInfo }
func (CopyInfo) Kind() RecordKind         { return KindCopyInfo }
func (CopyInstInfo) Kind() RecordKind     { return KindCopyInstInfo }
func (FillInfo) Kind() RecordKind         { return KindFillInfo }
func (FillInstInfo) Kind() RecordKind     { return KindFillInstInfo }
func (InstTimelineInfo) Kind() RecordKind { return KindInstTimelineInfo }
func (InstanceNameInfo) Kind() RecordKind { return KindInstanceNameInfo }

// recordNode returns the node a record belongs to, for VisibleNodes
// filtering. Records with no node affinity (pure descriptions and
// cross-reference links) report ok=false and are always admitted.
func recordNode(r Record) (NodeID, bool) {
	switch rec := r.(type) {
	case TaskInfo:
		return rec.Proc.Node(), true
	case MapperCallInfo:
		return rec.Proc.Node(), true
	case RuntimeCallInfo:
		return rec.Proc.Node(), true
	case CopyInfo:
		return rec.Dst.Node(), true
	case FillInfo:
		return rec.Dst.Node(), true
	case InstTimelineInfo:
		return rec.Mem.Node(), true
	default:
		return 0, false
	}
}
