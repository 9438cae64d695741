package services

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Asha Rao</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Skills: </w:t></w:r><w:r><w:t>Go, PostgreSQL</w:t></w:r></w:p>
<w:p><w:r><w:t>Role</w:t><w:tab/><w:t>Backend intern &amp; mentor</w:t></w:r></w:p>
</w:body>
</w:document>`

func docxFixture(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`},
		{"word/document.xml", documentXML},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocumentMIME(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        string
	}{
		{"application/pdf", "cv", mimePDF},
		{"text/plain; charset=utf-8", "cv.bin", mimePlain},
		{"application/octet-stream", "CV.DOCX", mimeDOCX},
		{"", "cv.md", mimePlain},
		{"image/png", "cv.png", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentMIME(tt.contentType, tt.filename))
		})
	}
}

func TestExtractDocumentText(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		text, err := ExtractDocumentText(mimePlain, []byte("Asha Rao\nGo developer"))
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao\nGo developer", text)
	})

	t.Run("docx", func(t *testing.T) {
		text, err := ExtractDocumentText(mimeDOCX, docxFixture(t, resumeDocumentXML))
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao\nSkills: Go, PostgreSQL\nRole\tBackend intern & mentor", text)
		assert.NotContains(t, text, "<w:")
	})

	t.Run("docx without body", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		require.NoError(t, zw.Close())
		_, err := ExtractDocumentText(mimeDOCX, buf.Bytes())
		assert.Error(t, err)
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		_, err := ExtractDocumentText(mimePDF, []byte("not a pdf"))
		assert.Error(t, err)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := ExtractDocumentText("image/png", []byte{0x89})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}
