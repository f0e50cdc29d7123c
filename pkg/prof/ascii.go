package prof

import (
	"bufio"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ASCIIDeserializer parses the legacy text log format: one record per line,
// "Prof <Record Name> <fields...>", whitespace separated. A record whose
// final field is a free-form name keeps everything after the last numeric
// field verbatim.
type ASCIIDeserializer struct {
	state *State
}

// NewASCIIDeserializer creates an ASCII deserializer bound to a State.
func NewASCIIDeserializer(s *State) *ASCIIDeserializer {
	return &ASCIIDeserializer{state: s}
}

func init() {
	RegisterDeserializer(FileTypeASCII, func(s *State) Deserializer {
		return NewASCIIDeserializer(s)
	})
}

// Parse reads the log at path line by line and applies every admitted record
// to the State. The reader strips a leading byte order mark so logs written
// on BOM-prepending platforms still parse.
func (d *ASCIIDeserializer) Parse(path string, opts ParseOptions) error {
	r, err := openLog(path)
	if err != nil {
		return fmt.Errorf("ascii parse %s: %w", path, err)
	}
	defer r.Close()

	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	cbs := d.state.Callbacks()
	applied := 0
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := parseASCIILine(line)
		if err != nil {
			return fmt.Errorf("ascii parse %s: line %d: %w", path, lineno, err)
		}
		if !opts.admits(rec) {
			continue
		}
		if err := cbs.Apply(rec); err != nil {
			return fmt.Errorf("ascii parse %s: line %d: %w", path, lineno, err)
		}
		applied++
		if opts.Verbose {
			slog.Debug("applied record", "kind", rec.Kind().String(), "line", lineno)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ascii parse %s: %w", path, err)
	}
	if opts.Verbose {
		slog.Debug("ascii parse complete", "path", path, "records", applied)
	}
	return nil
}

// asciiParsers maps record names to line parsers. Longer names must precede
// names they share a prefix with ("Copy Inst Info" before "Copy Info").
var asciiParsers = []struct {
	name  string
	parse func(args string) (Record, error)
}{
	{"Copy Inst Info", parseASCIICopyInstInfo},
	{"Copy Info", parseASCIICopyInfo},
	{"Fill Inst Info", parseASCIIFillInstInfo},
	{"Fill Info", parseASCIIFillInfo},
	{"Proc Desc", parseASCIIProcDesc},
	{"Mem Desc", parseASCIIMemDesc},
	{"Op Desc", parseASCIIOpDesc},
	{"Task Info", parseASCIITaskInfo},
	{"Mapper Call Info", parseASCIIMapperCallInfo},
	{"Runtime Call Info", parseASCIIRuntimeCallInfo},
	{"Inst Timeline", parseASCIIInstTimeline},
	{"Instance Name", parseASCIIInstanceName},
}

func parseASCIILine(line string) (Record, error) {
	body, ok := strings.CutPrefix(line, asciiPrefix)
	if !ok {
		return nil, fmt.Errorf("malformed record line %q", line)
	}
	for _, p := range asciiParsers {
		if args, ok := strings.CutPrefix(body, p.name+" "); ok {
			return p.parse(strings.TrimSpace(args))
		}
	}
	return nil, fmt.Errorf("unknown record name in line %q", line)
}

// nextField splits off the next whitespace-separated field.
func nextField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimLeft(s[i:], " \t")
	}
	return s, ""
}

// numericFields parses exactly n leading numeric fields and returns whatever
// follows them, preserving internal spacing of a trailing free-form field.
func numericFields(args string, n int) ([]uint64, string, error) {
	nums := make([]uint64, 0, n)
	rest := args
	for i := 0; i < n; i++ {
		var field string
		field, rest = nextField(rest)
		if field == "" {
			return nil, "", fmt.Errorf("expected %d numeric fields, got %d", n, i)
		}
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("field %d: %w", i+1, err)
		}
		nums = append(nums, v)
	}
	return nums, rest, nil
}

// exactFields is numericFields for records with no trailing text.
func exactFields(args string, n int) ([]uint64, error) {
	nums, rest, err := numericFields(args, n)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, fmt.Errorf("trailing fields %q", rest)
	}
	return nums, nil
}

func parseASCIIProcDesc(args string) (Record, error) {
	f, err := exactFields(args, 2)
	if err != nil {
		return nil, err
	}
	return ProcDesc{Proc: ProcID(f[0]), ProcKind: uint32(f[1])}, nil
}

func parseASCIIMemDesc(args string) (Record, error) {
	f, err := exactFields(args, 3)
	if err != nil {
		return nil, err
	}
	return MemDesc{Mem: MemID(f[0]), MemKind: uint32(f[1]), Capacity: f[2]}, nil
}

func parseASCIIOpDesc(args string) (Record, error) {
	f, rest, err := numericFields(args, 2)
	if err != nil {
		return nil, err
	}
	kind, provenance := nextField(rest)
	if kind == "" {
		return nil, fmt.Errorf("missing operation kind")
	}
	return OpDesc{
		Op:         OpID(f[0]),
		Parent:     OpID(f[1]),
		OpKind:     kind,
		Provenance: strings.TrimSpace(provenance),
	}, nil
}

func parseASCIITaskInfo(args string) (Record, error) {
	f, err := exactFields(args, 6)
	if err != nil {
		return nil, err
	}
	return TaskInfo{
		Op:   OpID(f[0]),
		Proc: ProcID(f[1]),
		Range: TimeRange{
			Create: Timestamp(f[2]),
			Ready:  Timestamp(f[3]),
			Start:  Timestamp(f[4]),
			Stop:   Timestamp(f[5]),
		},
	}, nil
}

func parseASCIIMapperCallInfo(args string) (Record, error) {
	f, rest, err := numericFields(args, 2)
	if err != nil {
		return nil, err
	}
	kind, rest := nextField(rest)
	if kind == "" {
		return nil, fmt.Errorf("missing call kind")
	}
	times, err := exactFields(rest, 2)
	if err != nil {
		return nil, err
	}
	return MapperCallInfo{
		Proc:     ProcID(f[0]),
		Op:       OpID(f[1]),
		CallKind: kind,
		Start:    Timestamp(times[0]),
		Stop:     Timestamp(times[1]),
	}, nil
}

func parseASCIIRuntimeCallInfo(args string) (Record, error) {
	f, rest, err := numericFields(args, 1)
	if err != nil {
		return nil, err
	}
	kind, rest := nextField(rest)
	if kind == "" {
		return nil, fmt.Errorf("missing call kind")
	}
	times, err := exactFields(rest, 2)
	if err != nil {
		return nil, err
	}
	return RuntimeCallInfo{
		Proc:     ProcID(f[0]),
		CallKind: kind,
		Start:    Timestamp(times[0]),
		Stop:     Timestamp(times[1]),
	}, nil
}

func parseASCIICopyInfo(args string) (Record, error) {
	f, err := exactFields(args, 9)
	if err != nil {
		return nil, err
	}
	return CopyInfo{
		FEvent: EventID(f[0]),
		Op:     OpID(f[1]),
		Src:    MemID(f[2]),
		Dst:    MemID(f[3]),
		Size:   f[4],
		Range: TimeRange{
			Create: Timestamp(f[5]),
			Ready:  Timestamp(f[6]),
			Start:  Timestamp(f[7]),
			Stop:   Timestamp(f[8]),
		},
	}, nil
}

func parseASCIICopyInstInfo(args string) (Record, error) {
	f, err := exactFields(args, 3)
	if err != nil {
		return nil, err
	}
	return CopyInstInfo{FEvent: EventID(f[0]), Src: InstUID(f[1]), Dst: InstUID(f[2])}, nil
}

func parseASCIIFillInfo(args string) (Record, error) {
	f, err := exactFields(args, 8)
	if err != nil {
		return nil, err
	}
	return FillInfo{
		FEvent: EventID(f[0]),
		Op:     OpID(f[1]),
		Dst:    MemID(f[2]),
		Size:   f[3],
		Range: TimeRange{
			Create: Timestamp(f[4]),
			Ready:  Timestamp(f[5]),
			Start:  Timestamp(f[6]),
			Stop:   Timestamp(f[7]),
		},
	}, nil
}

func parseASCIIFillInstInfo(args string) (Record, error) {
	f, err := exactFields(args, 2)
	if err != nil {
		return nil, err
	}
	return FillInstInfo{FEvent: EventID(f[0]), Dst: InstUID(f[1])}, nil
}

func parseASCIIInstTimeline(args string) (Record, error) {
	f, err := exactFields(args, 8)
	if err != nil {
		return nil, err
	}
	return InstTimelineInfo{
		InstUID: InstUID(f[0]),
		InstID:  f[1],
		Mem:     MemID(f[2]),
		Op:      OpID(f[3]),
		Size:    f[4],
		Create:  Timestamp(f[5]),
		Ready:   Timestamp(f[6]),
		Destroy: Timestamp(f[7]),
	}, nil
}

func parseASCIIInstanceName(args string) (Record, error) {
	f, rest, err := numericFields(args, 1)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(rest)
	if name == "" {
		return nil, fmt.Errorf("missing instance name")
	}
	return InstanceNameInfo{InstUID: InstUID(f[0]), Name: name}, nil
}
