package util

import (
	"bytes"
	"text/template"
)

// RenderTemplate renders a Go text template with the given data.
func RenderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("template").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
