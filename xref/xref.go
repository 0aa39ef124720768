// Package xref implements the cross-reference engine. A Table owns every
// registered indirect object, drives the full-document pass into one
// sink, then emits whichever index encoding the format version selects:
// the classic plain-text table or a binary cross-reference stream.
package xref

import (
	"fmt"
	"sort"
	"strings"

	"pdfemit/obj"
	"pdfemit/sink"
)

// EntryType is the slot state recorded for one object.
type EntryType int

const (
	Free EntryType = iota
	InUse
	Compressed
)

// Entry maps one object identity to its byte offset. Entries are built
// transiently during output and consumed by the trailer writer;
// Container names the holding object stream for Compressed entries and
// is unused by the writer paths here.
type Entry struct {
	Ref       obj.ObjectRef
	Offset    int64
	Type      EntryType
	Container int
}

func (e Entry) String() string {
	kind := "n"
	if e.Type == Free {
		kind = "f"
	}
	return fmt.Sprintf("%d %d obj %s at %d", e.Ref.Num, e.Ref.Gen, kind, e.Offset)
}

// binaryMarker follows the version header so naive text tools treat the
// file as binary-capable.
var binaryMarker = []byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'}

const producer = "generated with pdfemit"

// Table holds the working set of objects in registration order and the
// trailer dictionary mutated along the write pass.
type Table struct {
	objects []obj.IndirectObject
	members map[obj.ObjectRef]bool
	trailer *obj.DictObj
	floor   int
}

func NewTable() *Table {
	return &Table{
		members: make(map[obj.ObjectRef]bool),
		trailer: obj.NewDict(),
	}
}

// Add registers an object for emission. Registration order is preserved;
// an identity already present is ignored.
func (t *Table) Add(o obj.IndirectObject) {
	if t.members[o.Ref()] {
		return
	}
	t.members[o.Ref()] = true
	t.objects = append(t.objects, o)
}

// Trailer exposes the trailer dictionary for callers that need to add
// entries such as /Info or /ID before output.
func (t *Table) Trailer() *obj.DictObj { return t.trailer }

// Objects returns the registered objects in registration order.
func (t *Table) Objects() []obj.IndirectObject { return t.objects }

// SetSizeFloor raises the minimum total object count recorded in the
// index, for documents that reserve serials beyond the registered set.
func (t *Table) SetSizeFloor(n int) { t.floor = n }

// Output writes the entire document: header, every registered object,
// the cross-reference section for the configured version, and the
// startxref epilogue. root is the document catalog; its identity becomes
// the trailer /Root entry.
func (t *Table) Output(root *obj.Frame, buf *sink.Buffer) error {
	settings := root.Settings()

	if err := buf.PutString(fmt.Sprintf("%%PDF-%s\n", settings.Version)); err != nil {
		return err
	}
	buf.PutBytes(binaryMarker)
	if err := buf.PutComment(producer); err != nil {
		return err
	}

	entries := make([]Entry, 0, len(t.objects))
	for _, o := range t.objects {
		off, err := o.Output(buf)
		if err != nil {
			return fmt.Errorf("write object %d: %w", o.Ref().Num, err)
		}
		entries = append(entries, Entry{Ref: o.Ref(), Offset: off, Type: InUse})
	}

	if settings.Verbose {
		var sb strings.Builder
		sb.WriteString("cross-reference entries:\n")
		for _, e := range entries {
			sb.WriteString(e.String())
			sb.WriteByte('\n')
		}
		if err := buf.PutComment(sb.String()); err != nil {
			return err
		}
	}

	t.trailer.Set("Root", root.Reference())

	var startOff int64
	var err error
	if settings.Version.UseXrefStream() {
		startOff, err = t.outputStream(root, buf, entries)
	} else {
		startOff, err = t.outputClassic(root, buf, entries)
	}
	if err != nil {
		return err
	}

	if settings.Verbose {
		if err := buf.PutComment(strings.Repeat("-", 78)); err != nil {
			return err
		}
	}
	return buf.PutString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", startOff))
}

// trailerContext strips the encryption transform: trailer strings and
// the cross-reference stream itself are never encrypted.
func trailerContext(root *obj.Frame) (*obj.Frame, *obj.Settings) {
	stripped := *root.Settings()
	stripped.Encrypt = nil
	return obj.NewFrame(root.Ref(), &stripped, nil), &stripped
}

func sortEntries(entries []Entry) []Entry {
	sorted := append([]Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ref.Num < sorted[j].Ref.Num })
	return sorted
}

func maxSerial(sorted []Entry) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1].Ref.Num
}

// withFreeZero prepends the mandatory free entry for serial 0. Both
// encodings synthesize it so run partitioning always covers object 0.
func withFreeZero(sorted []Entry) []Entry {
	out := make([]Entry, 0, len(sorted)+1)
	out = append(out, Entry{Ref: obj.ObjectRef{Num: 0, Gen: 65535}, Type: Free})
	return append(out, sorted...)
}

// runs partitions sorted entries into maximal blocks of consecutive
// serials and returns (firstSerial, count) pairs.
func runs(sorted []Entry) [][2]int {
	var out [][2]int
	for i := 0; i < len(sorted); {
		first := sorted[i].Ref.Num
		count := 1
		for i+count < len(sorted) && sorted[i+count].Ref.Num == first+count {
			count++
		}
		out = append(out, [2]int{first, count})
		i += count
	}
	return out
}

func (t *Table) outputClassic(root *obj.Frame, buf *sink.Buffer, entries []Entry) (int64, error) {
	sorted := sortEntries(entries)
	size := maxSerial(sorted) + 1
	if t.floor > size {
		size = t.floor
	}
	full := withFreeZero(sorted)

	startOff := buf.Offset()
	if err := buf.PutString("xref\n"); err != nil {
		return 0, err
	}
	blocks := runs(full)
	i := 0
	for _, blk := range blocks {
		if err := buf.PutString(fmt.Sprintf("%d %d\n", blk[0], blk[1])); err != nil {
			return 0, err
		}
		for n := 0; n < blk[1]; n++ {
			e := full[i]
			i++
			kind := byte('n')
			if e.Type == Free {
				kind = 'f'
			}
			if err := buf.PutString(fmt.Sprintf("%010d %05d %c \n", e.Offset, e.Ref.Gen, kind)); err != nil {
				return 0, err
			}
		}
	}

	if err := buf.PutString("trailer\n"); err != nil {
		return 0, err
	}
	t.trailer.Set("Size", obj.Integer(int64(size)))
	tctx, settings := trailerContext(root)
	indent := -1
	if settings.Verbose {
		indent = 0
	}
	if err := t.trailer.Write(tctx, buf, indent); err != nil {
		return 0, err
	}
	buf.PutByte('\n')
	return startOff, nil
}

func (t *Table) outputStream(root *obj.Frame, buf *sink.Buffer, entries []Entry) (int64, error) {
	sorted := sortEntries(entries)
	id := maxSerial(sorted)
	if t.floor > id {
		id = t.floor
	}
	id++
	size := id + 1

	selfOffset := buf.Offset()
	full := withFreeZero(sorted)
	full = append(full, Entry{Ref: obj.ObjectRef{Num: id}, Offset: selfOffset, Type: InUse})

	blocks := runs(full)
	maxOff := int64(0)
	for _, e := range full {
		if e.Offset > maxOff {
			maxOff = e.Offset
		}
	}
	offWidth := bytesFor(maxOff)

	records := make([]byte, 0, len(full)*(2+offWidth))
	for _, e := range full {
		records = append(records, byte(e.Type))
		for shift := (offWidth - 1) * 8; shift >= 0; shift -= 8 {
			records = append(records, byte(e.Offset>>shift))
		}
		records = append(records, byte(e.Ref.Gen))
	}

	dict := obj.NewDict()
	dict.Set("Type", obj.NameLiteral("XRef"))
	dict.Set("Size", obj.Integer(int64(size)))
	dict.Set("W", obj.NewArray(obj.Integer(1), obj.Integer(int64(offWidth)), obj.Integer(1)))
	if !(len(blocks) == 1 && blocks[0][0] == 0 && blocks[0][1] == size) {
		index := obj.NewArray()
		for _, blk := range blocks {
			index.Append(obj.Integer(int64(blk[0])))
			index.Append(obj.Integer(int64(blk[1])))
		}
		dict.Set("Index", index)
	}
	dict.Merge(t.trailer)

	stream := obj.NewStream(dict, records)
	stream.IsBinary = true
	// Cross-reference streams are never compressed here and never
	// encrypted: a reader needs them before it can locate /Encrypt.
	_, settings := trailerContext(root)
	frame := obj.NewFrame(obj.ObjectRef{Num: id}, settings, stream)
	frame.DebugReserve = -1
	return frame.Output(buf)
}

// bytesFor returns the minimum big-endian byte count representing v.
func bytesFor(v int64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}
