package prof

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Binary record ids, in preamble order. These values are part of the wire
// format and must never be renumbered.
const (
	recProcDesc uint32 = iota
	recMemDesc
	recOpDesc
	recTaskInfo
	recMapperCallInfo
	recRuntimeCallInfo
	recCopyInfo
	recCopyInstInfo
	recFillInfo
	recFillInstInfo
	recInstTimelineInfo
	recInstanceNameInfo
)

// supportedBinaryMajor is the newest binary format major version this
// deserializer understands. Minor revisions only append record kinds and are
// accepted.
const supportedBinaryMajor = 1

// BinaryDeserializer parses the binary log format: a preamble line followed
// by records of a little-endian record id and fixed-width fields, with
// NUL-terminated strings.
type BinaryDeserializer struct {
	state *State
}

// NewBinaryDeserializer creates a binary deserializer bound to a State.
func NewBinaryDeserializer(s *State) *BinaryDeserializer {
	return &BinaryDeserializer{state: s}
}

func init() {
	RegisterDeserializer(FileTypeBinary, func(s *State) Deserializer {
		return NewBinaryDeserializer(s)
	})
}

// Parse reads the log at path and applies every admitted record to the
// State. Truncated or malformed input fails with a wrapped error; the State
// must then be discarded.
func (d *BinaryDeserializer) Parse(path string, opts ParseOptions) error {
	r, err := openLog(path)
	if err != nil {
		return fmt.Errorf("binary parse %s: %w", path, err)
	}
	defer r.Close()

	br := bufio.NewReader(r)
	version, err := readPreamble(br)
	if err != nil {
		return fmt.Errorf("binary parse %s: %w", path, err)
	}
	if version.Major > supportedBinaryMajor {
		return fmt.Errorf("binary parse %s: unsupported format version %s", path, version)
	}

	cbs := d.state.Callbacks()
	applied := 0
	for index := 0; ; index++ {
		id, err := readU32(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("binary parse %s: record %d: %w", path, index, err)
		}
		rec, err := decodeBinaryRecord(br, id)
		if err != nil {
			return fmt.Errorf("binary parse %s: record %d: %w", path, index, err)
		}
		if !opts.admits(rec) {
			continue
		}
		if err := cbs.Apply(rec); err != nil {
			return fmt.Errorf("binary parse %s: record %d: %w", path, index, err)
		}
		applied++
		if opts.Verbose {
			slog.Debug("applied record", "kind", rec.Kind().String(), "index", index)
		}
	}
	if opts.Verbose {
		slog.Debug("binary parse complete", "path", path, "records", applied)
	}
	return nil
}

func readPreamble(br *bufio.Reader) (Version, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return Version{}, fmt.Errorf("reading preamble: %w", err)
	}
	m := binaryPreamble.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Version{}, fmt.Errorf("malformed preamble %q", line)
	}
	var v Version
	fmt.Sscanf(m[1], "%d", &v.Major)
	fmt.Sscanf(m[2], "%d", &v.Minor)
	return v, nil
}

func decodeBinaryRecord(br *bufio.Reader, id uint32) (Record, error) {
	switch id {
	case recProcDesc:
		var rec ProcDesc
		err := readFields(br, (*uint64)(&rec.Proc), &rec.ProcKind)
		return rec, err
	case recMemDesc:
		var rec MemDesc
		err := readFields(br, (*uint64)(&rec.Mem), &rec.MemKind, &rec.Capacity)
		return rec, err
	case recOpDesc:
		var rec OpDesc
		if err := readFields(br, (*uint64)(&rec.Op), (*uint64)(&rec.Parent)); err != nil {
			return nil, err
		}
		var err error
		if rec.OpKind, err = readCString(br); err != nil {
			return nil, err
		}
		rec.Provenance, err = readCString(br)
		return rec, err
	case recTaskInfo:
		var rec TaskInfo
		err := readFields(br, (*uint64)(&rec.Op), (*uint64)(&rec.Proc),
			(*uint64)(&rec.Range.Create), (*uint64)(&rec.Range.Ready),
			(*uint64)(&rec.Range.Start), (*uint64)(&rec.Range.Stop))
		return rec, err
	case recMapperCallInfo:
		var rec MapperCallInfo
		if err := readFields(br, (*uint64)(&rec.Proc), (*uint64)(&rec.Op)); err != nil {
			return nil, err
		}
		var err error
		if rec.CallKind, err = readCString(br); err != nil {
			return nil, err
		}
		err = readFields(br, (*uint64)(&rec.Start), (*uint64)(&rec.Stop))
		return rec, err
	case recRuntimeCallInfo:
		var rec RuntimeCallInfo
		if err := readFields(br, (*uint64)(&rec.Proc)); err != nil {
			return nil, err
		}
		var err error
		if rec.CallKind, err = readCString(br); err != nil {
			return nil, err
		}
		err = readFields(br, (*uint64)(&rec.Start), (*uint64)(&rec.Stop))
		return rec, err
	case recCopyInfo:
		var rec CopyInfo
		err := readFields(br, (*uint64)(&rec.FEvent), (*uint64)(&rec.Op),
			(*uint64)(&rec.Src), (*uint64)(&rec.Dst), &rec.Size,
			(*uint64)(&rec.Range.Create), (*uint64)(&rec.Range.Ready),
			(*uint64)(&rec.Range.Start), (*uint64)(&rec.Range.Stop))
		return rec, err
	case recCopyInstInfo:
		var rec CopyInstInfo
		err := readFields(br, (*uint64)(&rec.FEvent),
			(*uint64)(&rec.Src), (*uint64)(&rec.Dst))
		return rec, err
	case recFillInfo:
		var rec FillInfo
		err := readFields(br, (*uint64)(&rec.FEvent), (*uint64)(&rec.Op),
			(*uint64)(&rec.Dst), &rec.Size,
			(*uint64)(&rec.Range.Create), (*uint64)(&rec.Range.Ready),
			(*uint64)(&rec.Range.Start), (*uint64)(&rec.Range.Stop))
		return rec, err
	case recFillInstInfo:
		var rec FillInstInfo
		err := readFields(br, (*uint64)(&rec.FEvent), (*uint64)(&rec.Dst))
		return rec, err
	case recInstTimelineInfo:
		var rec InstTimelineInfo
		err := readFields(br, (*uint64)(&rec.InstUID), &rec.InstID,
			(*uint64)(&rec.Mem), (*uint64)(&rec.Op), &rec.Size,
			(*uint64)(&rec.Create), (*uint64)(&rec.Ready), (*uint64)(&rec.Destroy))
		return rec, err
	case recInstanceNameInfo:
		var rec InstanceNameInfo
		if err := readFields(br, (*uint64)(&rec.InstUID)); err != nil {
			return nil, err
		}
		var err error
		rec.Name, err = readCString(br)
		return rec, err
	default:
		return nil, fmt.Errorf("unknown binary record id %d", id)
	}
}

func readU32(br *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// readFields reads consecutive little-endian fields. Accepts *uint32 and
// *uint64 destinations. A short read inside a record is a truncation error.
func readFields(br *bufio.Reader, fields ...any) error {
	for _, field := range fields {
		var width int
		switch field.(type) {
		case *uint32:
			width = 4
		case *uint64:
			width = 8
		default:
			return fmt.Errorf("unsupported field type %T", field)
		}
		buf := make([]byte, width)
		if _, err := io.ReadFull(br, buf); err != nil {
			return truncated(err)
		}
		switch dst := field.(type) {
		case *uint32:
			*dst = binary.LittleEndian.Uint32(buf)
		case *uint64:
			*dst = binary.LittleEndian.Uint64(buf)
		}
	}
	return nil
}

// readCString reads a NUL-terminated string field.
func readCString(br *bufio.Reader) (string, error) {
	s, err := br.ReadString(0)
	if err != nil {
		return "", truncated(err)
	}
	return strings.TrimSuffix(s, "\x00"), nil
}

// truncated normalizes a short read inside a record body: hitting EOF there
// means the log was cut off mid-record.
func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("truncated log: %w", io.ErrUnexpectedEOF)
	}
	return err
}
