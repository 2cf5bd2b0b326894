package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MediaPart is a base64-encoded media payload.
type MediaPart struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Bytes decodes the payload.
func (m MediaPart) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return b, nil
}

// Validate checks that the part carries a payload and a MIME type.
func (m MediaPart) Validate() error {
	if strings.TrimSpace(m.Data) == "" {
		return fmt.Errorf("media data is required")
	}
	if strings.TrimSpace(m.MIMEType) == "" {
		return fmt.Errorf("media mime_type is required")
	}
	return nil
}

// AspectRatio of a generated image.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectClassic   AspectRatio = "4:3"
	AspectTall      AspectRatio = "3:4"
)

// Valid reports whether a is one of the supported ratios. Empty is valid and
// selects AspectSquare.
func (a AspectRatio) Valid() bool {
	switch a {
	case "", AspectSquare, AspectLandscape, AspectPortrait, AspectClassic, AspectTall:
		return true
	default:
		return false
	}
}

// OrDefault returns a or AspectSquare when unset.
func (a AspectRatio) OrDefault() AspectRatio {
	if a == "" {
		return AspectSquare
	}
	return a
}

type ImageRequest struct {
	Prompt      string      `json:"prompt"`
	AspectRatio AspectRatio `json:"aspect_ratio,omitempty"`
}

type EditImageRequest struct {
	Prompt string    `json:"prompt"`
	Image  MediaPart `json:"image"`
}

type AnalyzeImageRequest struct {
	Prompt string    `json:"prompt"`
	Image  MediaPart `json:"image"`
}

// AnalyzeVideoRequest carries sampled frames of a video in playback order.
type AnalyzeVideoRequest struct {
	Prompt string      `json:"prompt"`
	Frames []MediaPart `json:"frames"`
}
