package xref

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"pdfemit/obj"
	"pdfemit/sink"
)

func frame(num int, settings *obj.Settings, v obj.Object) *obj.Frame {
	return obj.NewFrame(obj.ObjectRef{Num: num}, settings, v)
}

func output(t *testing.T, table *Table, root *obj.Frame) []byte {
	t.Helper()
	buf := sink.New()
	if err := table.Output(root, buf); err != nil {
		t.Fatalf("table output: %v", err)
	}
	return buf.Output()
}

func startxref(t *testing.T, out []byte) int64 {
	t.Helper()
	idx := bytes.LastIndex(out, []byte("startxref\n"))
	if idx < 0 {
		t.Fatalf("startxref missing")
	}
	rest := string(out[idx+len("startxref\n"):])
	line := rest[:strings.IndexByte(rest, '\n')]
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		t.Fatalf("startxref value %q: %v", line, err)
	}
	return v
}

func TestHeaderAndMarker(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	out := output(t, table, root)

	if !bytes.HasPrefix(out, []byte("%PDF-1.4\n")) {
		t.Fatalf("missing version header: %q", out[:16])
	}
	if !bytes.Contains(out[:32], []byte{0xE2, 0xE3, 0xCF, 0xD3}) {
		t.Fatalf("missing binary marker comment")
	}
	if !bytes.HasSuffix(out, []byte("%%EOF\n")) {
		t.Fatalf("missing EOF line")
	}
}

func TestClassicBlockPartitioning(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	table.Add(frame(2, settings, obj.Null))
	table.Add(frame(4, settings, obj.Null))
	out := output(t, table, root)

	// First occurrence: "startxref" further down also contains the
	// keyword.
	xrefIdx := bytes.Index(out, []byte("xref\n"))
	section := string(out[xrefIdx:])

	// Serials {0,1,2} and {4} give exactly two blocks.
	if !strings.Contains(section, "xref\n0 3\n") {
		t.Fatalf("first block header wrong:\n%s", section)
	}
	if !strings.Contains(section, "4 1\n") {
		t.Fatalf("second block header wrong:\n%s", section)
	}
	if !strings.Contains(section, "0000000000 65535 f \n") {
		t.Fatalf("synthetic free entry missing:\n%s", section)
	}
	if strings.Count(section, " n \n") != 3 {
		t.Fatalf("expected three in-use entries:\n%s", section)
	}
	if !strings.Contains(section, "/Size 5") {
		t.Fatalf("size must be maxSerial+1:\n%s", section)
	}
	if !strings.Contains(section, "/Root 1 0 R") {
		t.Fatalf("trailer root missing:\n%s", section)
	}

	if got := startxref(t, out); got != int64(xrefIdx) {
		t.Fatalf("startxref = %d, want offset of xref keyword %d", got, xrefIdx)
	}
}

func TestClassicOffsetsMatchObjects(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	table.Add(frame(2, settings, obj.Integer(7)))
	out := output(t, table, root)

	xrefIdx := bytes.Index(out, []byte("xref\n"))
	lines := strings.Split(string(out[xrefIdx:]), "\n")
	// lines[0]="xref", lines[1]="0 3", then the three entries.
	for i, serial := range []int{1, 2} {
		entry := lines[3+i]
		off, err := strconv.ParseInt(entry[:10], 10, 64)
		if err != nil {
			t.Fatalf("entry %q: %v", entry, err)
		}
		want := []byte(fmt.Sprintf("%d 0 obj\n", serial))
		if !bytes.HasPrefix(out[off:], want) {
			t.Fatalf("offset %d for serial %d points at %q", off, serial, out[off:off+10])
		}
	}
}

func TestClassicSizeFloor(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14}
	table := NewTable()
	table.SetSizeFloor(40)
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	out := output(t, table, root)
	if !bytes.Contains(out, []byte("/Size 40")) {
		t.Fatalf("size floor ignored:\n%s", out)
	}
}

func TestStreamXrefSelfEntry(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF15}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	table.Add(frame(2, settings, obj.Null))
	table.Add(frame(3, settings, obj.Null))
	out := output(t, table, root)

	if !bytes.HasPrefix(out, []byte("%PDF-1.5\n")) {
		t.Fatalf("version header: %q", out[:16])
	}
	// The table itself takes serial 4 and size covers it.
	idx := bytes.Index(out, []byte("4 0 obj\n"))
	if idx < 0 {
		t.Fatalf("cross-reference stream object missing:\n%s", out)
	}
	if got := startxref(t, out); got != int64(idx) {
		t.Fatalf("startxref = %d, want %d", got, idx)
	}
	section := string(out[idx:])
	if !strings.Contains(section, "/Type /XRef") || !strings.Contains(section, "/Size 5") {
		t.Fatalf("xref stream dictionary wrong:\n%s", section)
	}
	// Serials 0..4 form the single run (0, size): /Index must be omitted.
	if strings.Contains(section, "/Index") {
		t.Fatalf("single-run index must be omitted:\n%s", section)
	}
	if !strings.Contains(section, "/Root 1 0 R") {
		t.Fatalf("trailer entries must be merged into the stream dictionary:\n%s", section)
	}
	if !strings.Contains(section, "/Filter /ASCII85Decode") {
		t.Fatalf("binary records must be text-safe:\n%s", section)
	}
}

func TestStreamXrefIndexForGaps(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF15}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	table.Add(frame(3, settings, obj.Null))
	out := output(t, table, root)

	// Serials {0,1} {3,4(self)} give two runs.
	if !bytes.Contains(out, []byte("/Index [0 2 3 2]")) {
		t.Fatalf("expected two-run index:\n%s", out)
	}
}

func TestStreamXrefOffsetWidth(t *testing.T) {
	if bytesFor(300) != 2 {
		t.Fatalf("bytesFor(300) = %d, want 2", bytesFor(300))
	}
	if bytesFor(255) != 1 || bytesFor(256) != 2 || bytesFor(0) != 1 {
		t.Fatalf("width boundaries wrong")
	}

	// Small document: every offset fits one byte.
	settings := &obj.Settings{Version: obj.PDF15}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	out := output(t, table, root)
	if !bytes.Contains(out, []byte("/W [1 1 1]")) {
		t.Fatalf("one-byte offsets expected:\n%s", out)
	}

	// Pad past 255 bytes so the widest offset needs two bytes.
	big := NewTable()
	bigRoot := frame(1, settings, obj.NewDict())
	big.Add(bigRoot)
	big.Add(frame(2, settings, obj.Str(bytes.Repeat([]byte{'a'}, 300))))
	out = output(t, big, bigRoot)
	if !bytes.Contains(out, []byte("/W [1 2 1]")) {
		t.Fatalf("two-byte offsets expected:\n%s", out)
	}
}

func TestStreamXrefNeverEncrypted(t *testing.T) {
	calls := 0
	settings := &obj.Settings{
		Version: obj.PDF15,
		Encrypt: func(data []byte, owner obj.ObjectRef) ([]byte, error) {
			calls++
			return data, nil
		},
	}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	stream := obj.NewStream(nil, []byte("content"))
	stream.Encrypt = true
	table.Add(frame(2, settings, stream))
	output(t, table, root)

	// Only the content stream may hit the encryption transform; the
	// cross-reference stream and trailer strings must not.
	if calls != 1 {
		t.Fatalf("encryption transform ran %d times, want 1", calls)
	}
}

func TestDuplicateRegistrationIgnored(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	table.Add(root)
	if len(table.Objects()) != 1 {
		t.Fatalf("duplicate registration must be ignored")
	}
}

func TestVerboseOutputStaysParsable(t *testing.T) {
	settings := &obj.Settings{Version: obj.PDF14, Verbose: true}
	table := NewTable()
	root := frame(1, settings, obj.NewDict())
	table.Add(root)
	out := output(t, table, root)

	if !bytes.Contains(out, []byte("% cross-reference entries:")) {
		t.Fatalf("verbose entry listing missing")
	}
	if got := startxref(t, out); !bytes.HasPrefix(out[got:], []byte("xref\n")) {
		t.Fatalf("startxref must still point at the xref keyword")
	}
}
