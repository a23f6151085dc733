package export

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-pdf/fpdf"
	pdf "github.com/ledongthuc/pdf"

	"github.com/kalambet/frontdesk/internal/scenario"
)

//go:embed fonts/*.ttf
var fontFS embed.FS

const transcriptFont = "DejaVu"

// PDFContentType is served with scenario transcripts.
const PDFContentType = "application/pdf"

// TranscriptFilename returns the download name of a scenario transcript.
func TranscriptFilename(studentID string, id scenario.ID) string {
	return fmt.Sprintf("Transcript_%s_%s.pdf", studentID, id)
}

// Transcript is one scenario's notes and the latest mentor feedback on them.
type Transcript struct {
	StudentID string
	Scenario  scenario.ID
	Notes     string
	Feedback  string
	Date      time.Time
}

// WriteTranscriptPDF renders t as a single A4 document.
func WriteTranscriptPDF(w io.Writer, t Transcript) error {
	info := t.Scenario.Info()

	doc := fpdf.New("P", "mm", "A4", "")
	if err := addTranscriptFonts(doc); err != nil {
		return err
	}
	doc.SetTitle("Front Desk Operations Transcript", true)
	doc.SetCreator("frontdesk", true)
	doc.SetMargins(20, 20, 20)
	doc.AddPage()

	doc.SetFont(transcriptFont, "B", 16)
	doc.CellFormat(0, 10, bmp("Front Desk Operations: "+info.Title), "", 1, "L", false, 0, "")

	doc.SetFont(transcriptFont, "", 10)
	doc.CellFormat(0, 6, bmp("Student ID: "+t.StudentID), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, "Date: "+t.Date.Format("2 January 2006"), "", 1, "L", false, 0, "")
	if info.Outcome != "" {
		doc.CellFormat(0, 6, bmp("Learning outcome: "+info.Outcome), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont(transcriptFont, "B", 12)
	doc.CellFormat(0, 8, bmp(info.Logbook), "", 1, "L", false, 0, "")
	doc.SetFont(transcriptFont, "", 11)
	notes := t.Notes
	if notes == "" {
		notes = noEntryRecorded
	}
	doc.MultiCell(0, 6, bmp(notes), "", "L", false)
	doc.Ln(4)

	if t.Feedback != "" {
		doc.SetFont(transcriptFont, "B", 12)
		doc.CellFormat(0, 8, "Mentor Feedback", "", 1, "L", false, 0, "")
		doc.SetFont(transcriptFont, "I", 11)
		doc.MultiCell(0, 6, bmp(t.Feedback), "", "L", false)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}

func addTranscriptFonts(doc *fpdf.Fpdf) error {
	for style, file := range map[string]string{
		"":  "DejaVuSansCondensed.ttf",
		"B": "DejaVuSansCondensed-Bold.ttf",
		"I": "DejaVuSansCondensed-Oblique.ttf",
	} {
		b, err := fontFS.ReadFile("fonts/" + file)
		if err != nil {
			return fmt.Errorf("loading font %s: %w", file, err)
		}
		doc.AddUTF8FontFromBytes(transcriptFont, style, b)
	}
	return doc.Error()
}

// bmp replaces runes outside the Basic Multilingual Plane, which the PDF
// writer cannot encode, with U+FFFD.
func bmp(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return '\uFFFD'
		}
		return r
	}, s)
}

// ReadTranscriptText extracts the text of a PDF document, one line per text
// object. Type0 fonts with Identity-H encoding are decoded as UTF-16BE.
func ReadTranscriptText(data []byte) (text string, err error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("pdf content: %v", p)
		}
	}()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		pageText(&b, r.Page(i))
	}
	return b.String(), nil
}

func pageText(b *strings.Builder, p pdf.Page) {
	if p.V.IsNull() || p.V.Key("Contents").Kind() == pdf.Null {
		return
	}
	fonts := make(map[string]pdf.Font)
	for _, name := range p.Fonts() {
		fonts[name] = p.Font(name)
	}

	decode := func(s string) string { return s }
	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tf":
			if n == 2 {
				decode = fontDecoder(fonts[args[0].Name()])
			}
		case "Tj", "'", "\"":
			if n > 0 {
				b.WriteString(decode(args[n-1].RawString()))
			}
		case "TJ":
			if n == 0 {
				return
			}
			for i := 0; i < args[0].Len(); i++ {
				if v := args[0].Index(i); v.Kind() == pdf.String {
					b.WriteString(decode(v.RawString()))
				}
			}
		case "ET":
			b.WriteByte('\n')
		}
	})
}

func fontDecoder(f pdf.Font) func(string) string {
	if f.V.Key("Subtype").Name() == "Type0" && f.V.Key("Encoding").Name() == "Identity-H" {
		return decodeUTF16BE
	}
	return f.Encoder().Decode
}

func decodeUTF16BE(s string) string {
	units := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		units = append(units, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(units))
}
