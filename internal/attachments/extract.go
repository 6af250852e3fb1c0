package attachments

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"

	// Reference text handed to the assistant is capped so one large
	// document cannot crowd out the rest of the context snapshot.
	maxReferenceChars = 8000
)

// CanExtract reports whether reference text can be pulled from the type.
func CanExtract(mediaType string) bool {
	switch normalizeMediaType(mediaType) {
	case mimePDF, mimeDOCX, mimeTXT:
		return true
	}
	return false
}

// ExtractReferenceText pulls plain text from an uploaded reference
// document so it can ground the assistant conversation. Unsupported
// types return an error; callers treat extraction as best-effort.
func ExtractReferenceText(data []byte, mediaType string) (string, error) {
	var (
		text string
		err  error
	)
	switch normalizeMediaType(mediaType) {
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX:
		text, err = extractDOCX(data)
	case mimeTXT:
		text = string(data)
	default:
		return "", fmt.Errorf("unsupported media type: %s", mediaType)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if len(text) > maxReferenceChars {
		text = text[:maxReferenceChars]
	}
	return text, nil
}

func normalizeMediaType(mediaType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx payload")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return flattenDocumentXML(raw), nil
	}
	return "", errors.New("document.xml not found")
}

func flattenDocumentXML(raw []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return string(raw)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
