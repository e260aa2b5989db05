package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"os"
	"path"
	"path/filepath"
	"strings"
	texttmpl "text/template"
	"time"

	"github.com/pkg/errors"
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// Templates holds the parsed email templates, keyed by name (without ext).
	Templates struct {
		frontendBaseURL string
		entries         map[string]*tmplCacheEntry
	}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

var templateFuncs = map[string]interface{}{
	"instant": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("Mon 02 Jan 2006 15:04")
	},
}

// ParseTemplates parses every "<name>.txt" and "<name>.gohtml" under `dir` of `fsys`,
// each one on top of the matching "_base" layout.
// Missing keys are errors in strict mode (debug & tests).
func ParseTemplates(fsys fs.FS, dir, frontendBaseURL string, strict bool) (*Templates, error) {
	tmpls := &Templates{frontendBaseURL: frontendBaseURL, entries: make(map[string]*tmplCacheEntry)}

	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := tmpls.entries[name]
		if !ok {
			entry = new(tmplCacheEntry)
			tmpls.entries[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.New("_base.txt").Funcs(texttmpl.FuncMap(templateFuncs)).ParseFS(fsys, path.Join(dir, "_base.txt"), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.New("_base.gohtml").Funcs(htmltmpl.FuncMap(templateFuncs)).ParseFS(fsys, path.Join(dir, "_base.gohtml"), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}
	return tmpls, nil
}

func (m *EmailMessage) renderText(tmpls *Templates, data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" || tmpls == nil {
		return nil
	}
	entry, ok := tmpls.entries[m.TemplateName]
	if !ok || entry.text == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.text.Execute(&buff, data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(tmpls *Templates, data ContextData) error {
	if m.TemplateName == "" || tmpls == nil {
		return nil
	}
	entry, ok := tmpls.entries[m.TemplateName]
	if !ok || entry.html == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := entry.html.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent & HTMLContent. `tmpls` may be nil for non-templated messages.
func (m *EmailMessage) Render(tmpls *Templates) error {
	data := ContextData{Data: m.TemplateData}
	if tmpls != nil {
		data.FrontendBaseURL = tmpls.frontendBaseURL
	}
	if err := m.renderText(tmpls, data); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	if err := m.renderHTML(tmpls, data); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	// base64 encode content
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	encoder.Close()

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }
