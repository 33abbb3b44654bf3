package domain

// Media is an opaque generated payload. Either Data or URI is set.
type Media struct {
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
	URI      string `json:"uri,omitempty"`
}

type Content struct {
	Mode   Mode    `json:"mode"`
	Text   string  `json:"text,omitempty"`
	Media  []Media `json:"media,omitempty"`
	Prompt string  `json:"prompt"`
}
