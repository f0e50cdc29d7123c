package prof

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// FileType classifies the serialization format of a profiler log.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeBinary
	FileTypeASCII
)

func (t FileType) String() string {
	switch t {
	case FileTypeBinary:
		return "binary"
	case FileTypeASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// Version is the format version declared in a binary log's preamble. ASCII
// logs carry no version marker and report the zero Version.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// ErrUnknownFormat is returned when a log's header matches no known format.
var ErrUnknownFormat = errors.New("unrecognized log format")

var binaryPreamble = regexp.MustCompile(`^FileType: BinaryLogFormat, Version: (\d+)\.(\d+)$`)

// asciiPrefix opens every record line of an ASCII log.
const asciiPrefix = "Prof "

// maxHeaderLen bounds how much of a file DetectFileType will read.
const maxHeaderLen = 256

// DetectFileType classifies a log file by its header without reading the
// whole file. Gzip-compressed logs are detected by magic bytes and sniffed
// through the decompressor. An unreadable file or an unrecognized header is
// an error; detection never defaults to a format.
func DetectFileType(path string) (FileType, Version, error) {
	r, err := openLog(path)
	if err != nil {
		return FileTypeUnknown, Version{}, err
	}
	defer r.Close()

	br := bufio.NewReader(io.LimitReader(r, maxHeaderLen))
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return FileTypeUnknown, Version{}, fmt.Errorf("reading header of %s: %w", path, err)
	}
	line = strings.TrimRight(line, "\r\n")

	if m := binaryPreamble.FindStringSubmatch(line); m != nil {
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		return FileTypeBinary, Version{Major: major, Minor: minor}, nil
	}
	if strings.HasPrefix(line, asciiPrefix) {
		return FileTypeASCII, Version{}, nil
	}
	return FileTypeUnknown, Version{}, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// gzipReadCloser closes both the decompressor and the underlying file.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// openLog opens a log file for reading, transparently decompressing gzip
// output from runtimes built with compressed logging.
func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	magic := make([]byte, 2)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %s: %w", path, err)
	}

	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip log %s: %w", path, err)
		}
		return &gzipReadCloser{Reader: gz, file: f}, nil
	}
	return f, nil
}
