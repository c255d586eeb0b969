package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const (
	attachmentFilename    = "image.jpg"
	attachmentContentType = "image/jpeg"
)

// PostOptions holds caller-supplied post settings
type PostOptions struct {
	AltText string
	Tags    []string
}

// templateData is the data available to the post body template
type templateData struct {
	Title     string
	SourceURL string
	Licence   string
}

// PostComposer builds posts from image records
type PostComposer struct {
	tmpl *template.Template
	opts PostOptions
}

// NewPostComposer parses the body template
func NewPostComposer(body string, opts PostOptions) (*PostComposer, error) {
	tmpl, err := template.New("post").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing post template: %w", err)
	}
	return &PostComposer{tmpl: tmpl, opts: opts}, nil
}

// AltText returns the configured alt text
func (c *PostComposer) AltText() string {
	return c.opts.AltText
}

// Compose builds the post for record with the fetched image data. altText
// replaces the configured alt text when not empty.
func (c *PostComposer) Compose(record *ImageRecord, data []byte, altText string) (*Post, error) {
	var buf bytes.Buffer
	err := c.tmpl.Execute(&buf, templateData{
		Title:     record.Title,
		SourceURL: record.SourceURL,
		Licence:   record.Licence.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("executing post template: %w", err)
	}

	if altText == "" {
		altText = c.opts.AltText
	}

	tags := make([]string, len(c.opts.Tags))
	copy(tags, c.opts.Tags)

	return &Post{
		Headline: record.Title,
		Markdown: strings.TrimRight(buf.String(), "\n"),
		Attachments: []Attachment{{
			Data:        data,
			Filename:    attachmentFilename,
			ContentType: attachmentContentType,
			AltText:     altText,
		}},
		Tags: tags,
	}, nil
}
