package media

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Offerte</w:t></w:r><w:r><w:t xml:space="preserve"> klant X</w:t></w:r></w:p>
<w:p><w:r><w:instrText>PAGE</w:instrText></w:r></w:p>
<w:p><w:r><w:t>Levering vrijdag</w:t></w:r></w:p>
</w:body>
</w:document>`

const odtBody = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>
<text:p>Notulen <text:span>overleg</text:span></text:p>
<text:p/>
<text:p>Actie:<text:s/>bellen</text:p>
</office:text></office:body>
</office:document-content>`

func writeZip(t *testing.T, name, member, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(member)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractDOCX(t *testing.T) {
	path := writeZip(t, "offerte.docx", "word/document.xml", docxBody)

	p, err := NewExtractor(ExtractorConfig{}).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, KindDOCX, p.Kind)
	assert.Equal(t, 2, p.Paragraphs)
	assert.Equal(t, "Offerte klant X\n\nLevering vrijdag", p.Text)
}

func TestExtractODT(t *testing.T) {
	path := writeZip(t, "notulen.odt", "content.xml", odtBody)

	p, err := NewExtractor(ExtractorConfig{}).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, KindODT, p.Kind)
	assert.Equal(t, 2, p.Paragraphs)
	assert.Equal(t, "Notulen overleg\n\nActie: bellen", p.Text)
}

func TestExtractTruncates(t *testing.T) {
	long := strings.Repeat("é", 50)
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + long + `</w:t></w:r></w:p></w:body></w:document>`
	path := writeZip(t, "lang.docx", "word/document.xml", body)

	p, err := NewExtractor(ExtractorConfig{MaxChars: 10}).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10)+TruncationMarker, p.Text)
}

func TestExtractErrors(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	_, err := e.ExtractText(context.Background(), "/tmp/plaatje.png")
	assert.ErrorIs(t, err, ErrUnsupported)

	missing := writeZip(t, "leeg.docx", "other.xml", "<x/>")
	_, err = e.ExtractText(context.Background(), missing)
	assert.Error(t, err)

	notZip := filepath.Join(t.TempDir(), "kapot.odt")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0o644))
	_, err = e.ExtractText(context.Background(), notZip)
	assert.Error(t, err)
}

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExtractPDFWithPageMarkers(t *testing.T) {
	dir := t.TempDir()
	info := writeTool(t, dir, "pdfinfo", `printf 'Title: x\nPages:          7\n'`)
	// page number is the third argument: -q -f N -l N file -
	text := writeTool(t, dir, "pdftotext", `if [ "$3" = "2" ]; then exit 0; fi; echo "tekst pagina $3"`)

	e := NewExtractor(ExtractorConfig{PDFInfo: info, PDFToText: text})
	p, err := e.ExtractText(context.Background(), filepath.Join(dir, "rapport.pdf"))
	require.NoError(t, err)

	assert.Equal(t, KindPDF, p.Kind)
	assert.Equal(t, 7, p.Pages)
	assert.Equal(t, "--- Pagina 1 ---\ntekst pagina 1\n\n--- Pagina 3 ---\ntekst pagina 3\n\n--- Pagina 4 ---\ntekst pagina 4\n\n--- Pagina 5 ---\ntekst pagina 5", p.Text)
	assert.NotContains(t, p.Text, "Pagina 6")
}

func TestExtractPDFInfoFailure(t *testing.T) {
	dir := t.TempDir()
	info := writeTool(t, dir, "pdfinfo", `exit 1`)
	e := NewExtractor(ExtractorConfig{PDFInfo: info})

	_, err := e.ExtractText(context.Background(), filepath.Join(dir, "kapot.pdf"))
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPDF, KindOf("A.PDF"))
	assert.Equal(t, KindDOCX, KindOf("x/y.docx"))
	assert.Equal(t, KindODT, KindOf("n.odt"))
	assert.Equal(t, "", KindOf("n.doc"))
	assert.True(t, IsHTML("index.HTM"))
	assert.False(t, IsHTML("index.txt"))
}

func TestWhisperTranscriber(t *testing.T) {
	dir := t.TempDir()
	// argv: -c script model path language
	python := writeTool(t, dir, "python", `echo "  $3|$5|$(basename $4)  "`)

	w := NewWhisperTranscriber(WhisperConfig{Python: python})
	out, err := w.Transcribe(context.Background(), filepath.Join(dir, "memo.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "base|nl|memo.ogg", out)
}

func TestWhisperTranscriberFailures(t *testing.T) {
	dir := t.TempDir()

	empty := NewWhisperTranscriber(WhisperConfig{Python: writeTool(t, dir, "empty", `exit 0`)})
	_, err := empty.Transcribe(context.Background(), "a.ogg")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	failing := NewWhisperTranscriber(WhisperConfig{Python: writeTool(t, dir, "fail", `echo "no module named whisper" >&2; exit 1`)})
	_, err = failing.Transcribe(context.Background(), "a.ogg")
	assert.Error(t, err)

	slow := NewWhisperTranscriber(WhisperConfig{Python: writeTool(t, dir, "slow", `exec sleep 10`)})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = slow.Transcribe(ctx, "a.ogg")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
